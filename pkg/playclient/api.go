package playclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
)

const headerParticipantToken = "x-participant-token"

// Session is the public projection served to anonymous participants
type Session struct {
	ID               string `json:"id"`
	SessionCode      string `json:"session_code"`
	DisplayName      string `json:"display_name"`
	Status           string `json:"status"`
	ParticipantCount int    `json:"participant_count"`
	CurrentStep      int    `json:"current_step"`
	CurrentPhase     int    `json:"current_phase"`
}

// Participant mirrors the server-side participant resource
type Participant struct {
	ID            string `json:"id"`
	SessionID     string `json:"session_id"`
	DisplayName   string `json:"display_name"`
	Role          string `json:"role"`
	Status        string `json:"status"`
	IsNextStarter bool   `json:"is_next_starter"`
	CurrentStep   int    `json:"current_step"`
	CurrentPhase  int    `json:"current_phase"`
}

// APIError is a non-2xx response from the play API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("play api: %d %s", e.StatusCode, e.Message)
}

// isNetworkError distinguishes transport failures from application
// rejections. Only transport failures are worth retrying.
func isNetworkError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return false
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

type transport struct {
	baseURL string
	http    *http.Client
}

type joinResponse struct {
	Token         string      `json:"token"`
	ParticipantID string      `json:"participant_id"`
	SessionID     string      `json:"session_id"`
	DisplayName   string      `json:"display_name"`
	Participant   Participant `json:"participant"`
}

type stateResponse struct {
	Participant Participant `json:"participant"`
	Session     Session     `json:"session"`
}

type heartbeatResponse struct {
	OK      bool    `json:"ok"`
	Session Session `json:"session"`
}

func (t *transport) join(ctx context.Context, code, displayName string) (*joinResponse, error) {
	var resp joinResponse
	err := t.do(ctx, http.MethodPost, "/api/play/join", "",
		map[string]string{"session_code": code, "display_name": displayName}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (t *transport) rejoin(ctx context.Context, code, token string) (*stateResponse, error) {
	var resp stateResponse
	err := t.do(ctx, http.MethodPost, "/api/play/rejoin", token,
		map[string]string{"session_code": code, "participant_token": token}, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (t *transport) me(ctx context.Context, code, token string) (*stateResponse, error) {
	var resp stateResponse
	err := t.do(ctx, http.MethodGet, "/api/play/me?code="+url.QueryEscape(code), token, nil, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (t *transport) heartbeat(ctx context.Context, code, token string) (*heartbeatResponse, error) {
	var resp heartbeatResponse
	err := t.do(ctx, http.MethodPost, "/api/play/heartbeat?code="+url.QueryEscape(code), token, nil, &resp)
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (t *transport) raiseSignal(ctx context.Context, token, channel string, payload json.RawMessage) error {
	body := map[string]interface{}{"channel": channel}
	if payload != nil {
		body["payload"] = payload
	}
	return t.do(ctx, http.MethodPost, "/api/play/signals", token, body, nil)
}

func (t *transport) do(ctx context.Context, method, path, token string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set(headerParticipantToken, token)
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&e)
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
