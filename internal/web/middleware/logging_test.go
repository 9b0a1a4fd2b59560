package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/JonMunkholm/coach/internal/logging"
)

func TestLogger(t *testing.T) {
	prev := slog.Default()
	defer slog.SetDefault(prev)

	var buf bytes.Buffer
	logging.SetupWriter(&buf, "info", "json")

	h := chimw.RequestID(Logger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.Write([]byte("short and stout"))
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("status = %d, want 418", rec.Code)
	}

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("log is not JSON: %v (%q)", err, buf.String())
	}
	if entry["msg"] != "request" || entry["path"] != "/healthz" {
		t.Errorf("entry = %v", entry)
	}
	if entry["status"] != float64(http.StatusTeapot) || entry["bytes"] != float64(15) {
		t.Errorf("status/bytes = %v/%v", entry["status"], entry["bytes"])
	}
	if id, _ := entry["request_id"].(string); id == "" {
		t.Error("request_id missing")
	}
}

func TestResponseWriter_DefaultStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	ww := &responseWriter{ResponseWriter: rec, status: http.StatusOK}
	ww.Write([]byte("ok"))
	ww.WriteHeader(http.StatusInternalServerError)

	if ww.status != http.StatusOK || rec.Code != http.StatusOK {
		t.Errorf("status = %d/%d, want 200 after implicit header", ww.status, rec.Code)
	}
}
