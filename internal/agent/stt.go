package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"
)

// Local Whisper service, see the deployment's compose file.
const defaultSTTURL = "http://stt:8000/transcribe"

type WhisperClient struct {
	url        string
	httpClient *http.Client
}

// NewWhisperClient posts recordings to a Whisper-compatible /transcribe endpoint.
func NewWhisperClient(url string, timeout time.Duration) *WhisperClient {
	if url == "" {
		url = defaultSTTURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &WhisperClient{
		url:        url,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type sttResponse struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

// Transcribe returns the recognised text, or "" for silence.
func (c *WhisperClient) Transcribe(ctx context.Context, audioData []byte) (string, error) {
	if len(audioData) == 0 {
		return "", fmt.Errorf("no audio data")
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audioData); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		transcriptions.WithLabelValues("error").Inc()
		return "", fmt.Errorf("STT request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		transcriptions.WithLabelValues("error").Inc()
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("STT API error: %s - %s", resp.Status, string(respBody))
	}

	var result sttResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		transcriptions.WithLabelValues("error").Inc()
		return "", fmt.Errorf("failed to decode STT response: %w", err)
	}
	transcriptions.WithLabelValues("success").Inc()
	return strings.TrimSpace(result.Text), nil
}
