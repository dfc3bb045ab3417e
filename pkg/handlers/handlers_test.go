package handlers_test

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/JaimeStill/civic/pkg/handlers"
)

func TestRespondJSON(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		data       any
		wantStatus int
	}{
		{
			name:       "200 with map",
			status:     http.StatusOK,
			data:       map[string]string{"key": "value"},
			wantStatus: http.StatusOK,
		},
		{
			name:       "201 with struct",
			status:     http.StatusCreated,
			data:       struct{ ID int }{ID: 42},
			wantStatus: http.StatusCreated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handlers.RespondJSON(rec, tt.status, tt.data)

			res := rec.Result()
			defer res.Body.Close()

			if res.StatusCode != tt.wantStatus {
				t.Errorf("status: got %d, want %d", res.StatusCode, tt.wantStatus)
			}
			if ct := res.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("content-type: got %s", ct)
			}

			body, _ := io.ReadAll(res.Body)
			var parsed map[string]any
			if err := json.Unmarshal(body, &parsed); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
		})
	}
}

func TestRespondError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name    string
		status  int
		err     error
		wantMsg string
	}{
		{"client error passes message", http.StatusBadRequest, errors.New("invalid input"), "invalid input"},
		{"conflict passes message", http.StatusConflict, errors.New("state conflict"), "state conflict"},
		{"unavailable passes message", http.StatusServiceUnavailable, errors.New("collaborator unavailable"), "collaborator unavailable"},
		{"internal error is masked", http.StatusInternalServerError, errors.New("pq: connection reset"), "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handlers.RespondError(rec, logger, tt.status, tt.err)

			res := rec.Result()
			defer res.Body.Close()

			if res.StatusCode != tt.status {
				t.Errorf("status: got %d, want %d", res.StatusCode, tt.status)
			}
			if ct := res.Header.Get("Content-Type"); ct != "application/json" {
				t.Errorf("content-type: got %s", ct)
			}

			var parsed map[string]string
			if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
				t.Fatalf("unmarshal failed: %v", err)
			}
			if parsed["error"] != tt.wantMsg {
				t.Errorf("error: got %s, want %s", parsed["error"], tt.wantMsg)
			}
		})
	}
}
