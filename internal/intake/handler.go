package intake

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxAudioUpload = 10 << 20

// Transcriber turns a recorded reply into text.
type Transcriber interface {
	Transcribe(ctx context.Context, audioData []byte) (string, error)
}

type Handler struct {
	svc    Service
	stt    Transcriber
	logger *zap.Logger
}

// NewHandler builds the HTTP handler. stt may be nil, which disables audio replies.
func NewHandler(svc Service, stt Transcriber, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, stt: stt, logger: logger}
}

type StartRequest struct {
	SessionID string `json:"session_id"`
}

type ReplyRequest struct {
	SessionID string `json:"session_id"`
	Message   string `json:"message"`
}

type AudioReplyResponse struct {
	*TurnResult
	Text string `json:"text"`
}

func (h *Handler) StartChat(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	// An empty body starts a session with a generated id.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	res, err := h.svc.Start(r.Context(), req.SessionID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) Reply(w http.ResponseWriter, r *http.Request) {
	var req ReplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}
	if req.SessionID == "" {
		http.Error(w, "Missing session_id", http.StatusBadRequest)
		return
	}

	res, err := h.svc.Reply(r.Context(), req.SessionID, req.Message)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) ReplyAudio(w http.ResponseWriter, r *http.Request) {
	if h.stt == nil {
		http.Error(w, "Audio replies are not enabled", http.StatusNotImplemented)
		return
	}
	if err := r.ParseMultipartForm(maxAudioUpload); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	sessionID := r.FormValue("session_id")
	if sessionID == "" {
		http.Error(w, "Missing session_id", http.StatusBadRequest)
		return
	}

	file, _, err := r.FormFile("audio")
	if err != nil {
		http.Error(w, "Error retrieving audio file", http.StatusBadRequest)
		return
	}
	defer file.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, file); err != nil {
		http.Error(w, "Failed to read audio file", http.StatusInternalServerError)
		return
	}

	// 1. Transcribe
	text, err := h.stt.Transcribe(r.Context(), buf.Bytes())
	if err != nil {
		h.logger.Warn("transcription failed", zap.String("session_id", sessionID), zap.Error(err))
		http.Error(w, "Transcription failed", http.StatusBadGateway)
		return
	}

	// Silence: report it back without resuming the session
	if text == "" {
		writeJSON(w, http.StatusOK, AudioReplyResponse{Text: ""})
		return
	}

	// 2. Resume as if it was typed
	res, err := h.svc.Reply(r.Context(), sessionID, text)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, AudioReplyResponse{TurnResult: res, Text: text})
}

func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.Snapshot(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, ErrSessionNotFound):
		http.Error(w, "Session not found", http.StatusNotFound)
	case errors.Is(err, ErrSessionExists):
		http.Error(w, "Session already exists", http.StatusConflict)
	case errors.Is(err, ErrSessionNotAwaiting):
		http.Error(w, "Session is not awaiting a reply", http.StatusConflict)
	case errors.Is(err, ErrEmptyReply):
		http.Error(w, "Message is empty", http.StatusBadRequest)
	case errors.Is(err, ErrOracleUnavailable):
		w.Header().Set("Retry-After", "5")
		http.Error(w, "Assistant temporarily unavailable, please retry", http.StatusServiceUnavailable)
	default:
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		http.Error(w, "Processing failed", http.StatusInternalServerError)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func RegisterRoutes(r chi.Router, h *Handler) {
	r.Post("/chat/start", h.StartChat)
	r.Post("/chat/reply", h.Reply)
	r.Post("/chat/reply/audio", h.ReplyAudio)
	r.Get("/chat/{sessionID}", h.GetSession)
}
