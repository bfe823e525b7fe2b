package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubService struct {
	startFn    func(ctx context.Context, sessionID string) (*TurnResult, error)
	replyFn    func(ctx context.Context, sessionID, text string) (*TurnResult, error)
	snapshotFn func(ctx context.Context, sessionID string) (*TurnResult, error)
}

func (s *stubService) Start(ctx context.Context, sessionID string) (*TurnResult, error) {
	return s.startFn(ctx, sessionID)
}

func (s *stubService) Reply(ctx context.Context, sessionID, text string) (*TurnResult, error) {
	return s.replyFn(ctx, sessionID, text)
}

func (s *stubService) Snapshot(ctx context.Context, sessionID string) (*TurnResult, error) {
	return s.snapshotFn(ctx, sessionID)
}

type stubTranscriber struct {
	text string
	err  error
}

func (s stubTranscriber) Transcribe(ctx context.Context, audioData []byte) (string, error) {
	return s.text, s.err
}

func newTestRouter(svc Service, stt Transcriber) http.Handler {
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		RegisterRoutes(r, NewHandler(svc, stt, nil))
	})
	return r
}

func turn(id, msg string) *TurnResult {
	return &TurnResult{
		SessionID:        id,
		AssistantMessage: &msg,
		State:            NewRecordView(PatientRecord{}),
		Phase:            LabelDemographics,
	}
}

func TestHandler_StartChat(t *testing.T) {
	var gotID string
	svc := &stubService{startFn: func(ctx context.Context, id string) (*TurnResult, error) {
		gotID = id
		return turn("generated", "Welcome!"), nil
	}}
	router := newTestRouter(svc, nil)

	for _, body := range []string{"", `{}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/chat/start", strings.NewReader(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code, "body %q", body)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Empty(t, gotID)

		var res map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, "generated", res["session_id"])
		assert.Equal(t, "Welcome!", res["assistant_message"])
		assert.Equal(t, false, res["is_complete"])
		state := res["state"].(map[string]any)
		assert.Equal(t, []any{}, state["main_symptoms"])
		assert.Nil(t, state["patient_name"])
	}
}

func TestHandler_ReplyStatusMapping(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
	}{
		{"ok", `{"session_id": "abc", "message": "hi"}`, nil, http.StatusOK},
		{"bad json", `{"session_id":`, nil, http.StatusBadRequest},
		{"missing session", `{"message": "hi"}`, nil, http.StatusBadRequest},
		{"unknown session", `{"session_id": "abc", "message": "hi"}`, fmt.Errorf("reply abc: %w", ErrSessionNotFound), http.StatusNotFound},
		{"empty reply", `{"session_id": "abc", "message": ""}`, ErrEmptyReply, http.StatusBadRequest},
		{"not awaiting", `{"session_id": "abc", "message": "hi"}`, ErrSessionNotAwaiting, http.StatusConflict},
		{"oracle down", `{"session_id": "abc", "message": "hi"}`, fmt.Errorf("x: %w", ErrOracleUnavailable), http.StatusServiceUnavailable},
		{"unexpected", `{"session_id": "abc", "message": "hi"}`, errors.New("disk full"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &stubService{replyFn: func(ctx context.Context, id, text string) (*TurnResult, error) {
				if tt.err != nil {
					return nil, tt.err
				}
				return turn(id, "echo: "+text), nil
			}}
			req := httptest.NewRequest(http.MethodPost, "/api/chat/reply", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			newTestRouter(svc, nil).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusServiceUnavailable {
				assert.NotEmpty(t, rec.Header().Get("Retry-After"))
			}
			if tt.wantStatus == http.StatusOK {
				assert.Contains(t, rec.Body.String(), `"assistant_message":"echo: hi"`)
			}
		})
	}
}

func TestHandler_GetSession(t *testing.T) {
	svc := &stubService{snapshotFn: func(ctx context.Context, id string) (*TurnResult, error) {
		if id != "abc" {
			return nil, ErrSessionNotFound
		}
		return &TurnResult{SessionID: id, Phase: LabelSymptoms}, nil
	}}
	router := newTestRouter(svc, nil)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chat/abc", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"phase":"Symptoms collection"`)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chat/zzz", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func audioRequest(t *testing.T, sessionID string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	require.NoError(t, mw.WriteField("session_id", sessionID))
	part, err := mw.CreateFormFile("audio", "reply.webm")
	require.NoError(t, err)
	_, err = part.Write([]byte("fake-audio"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/chat/reply/audio", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHandler_ReplyAudio(t *testing.T) {
	var gotText string
	svc := &stubService{replyFn: func(ctx context.Context, id, text string) (*TurnResult, error) {
		gotText = text
		return turn(id, "thanks"), nil
	}}

	t.Run("disabled without transcriber", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestRouter(svc, nil).ServeHTTP(rec, audioRequest(t, "abc"))
		assert.Equal(t, http.StatusNotImplemented, rec.Code)
	})

	t.Run("transcribed reply resumes session", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestRouter(svc, stubTranscriber{text: "I have a cough"}).ServeHTTP(rec, audioRequest(t, "abc"))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "I have a cough", gotText)

		var res map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
		assert.Equal(t, "I have a cough", res["text"])
		assert.Equal(t, "thanks", res["assistant_message"])
	})

	t.Run("silence does not resume", func(t *testing.T) {
		gotText = ""
		rec := httptest.NewRecorder()
		newTestRouter(svc, stubTranscriber{}).ServeHTTP(rec, audioRequest(t, "abc"))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, gotText)
		assert.JSONEq(t, `{"text": ""}`, rec.Body.String())
	})

	t.Run("transcription failure", func(t *testing.T) {
		rec := httptest.NewRecorder()
		newTestRouter(svc, stubTranscriber{err: errors.New("stt down")}).ServeHTTP(rec, audioRequest(t, "abc"))
		assert.Equal(t, http.StatusBadGateway, rec.Code)
	})
}
