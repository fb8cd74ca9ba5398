package middleware

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

type hijackRecorder struct {
	http.ResponseWriter
	hijackCalled bool
	hijackErr    error
}

func (h *hijackRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h.hijackCalled = true
	return nil, nil, h.hijackErr
}

func (h *hijackRecorder) Flush() {
	if f, ok := h.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func TestLoggingPreservesHijacker(t *testing.T) {
	wantErr := errors.New("hijack invoked")
	recorder := &hijackRecorder{
		ResponseWriter: httptest.NewRecorder(),
		hijackErr:      wantErr,
	}

	handlerCalled := false
	handler := Logging()(func(w http.ResponseWriter, r *http.Request) {
		handlerCalled = true
		hj, ok := w.(http.Hijacker)
		if !ok {
			t.Fatalf("response writer should implement http.Hijacker")
		}
		if _, _, err := hj.Hijack(); !errors.Is(err, wantErr) {
			t.Fatalf("unexpected hijack error: %v", err)
		}
	})

	handler(recorder, httptest.NewRequest(http.MethodGet, "/ws", nil))

	if !handlerCalled {
		t.Fatal("inner handler was not invoked")
	}
	if !recorder.hijackCalled {
		t.Fatal("underlying Hijack was not called")
	}
}

func TestLoggingStampsRequestID(t *testing.T) {
	handler := Logging()(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	res := httptest.NewRecorder()
	handler(res, httptest.NewRequest(http.MethodGet, "/rooms", nil))
	if res.Header().Get("X-Request-ID") == "" {
		t.Fatal("expected generated X-Request-ID header")
	}

	res = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/rooms", nil)
	req.Header.Set("X-Request-ID", "req-42")
	handler(res, req)
	if got := res.Header().Get("X-Request-ID"); got != "req-42" {
		t.Fatalf("expected client request id echoed, got %q", got)
	}
}
