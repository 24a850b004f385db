package httpx

import (
	"bufio"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRecorder_PrepareOnceOnWriteHeader(t *testing.T) {
	rr := httptest.NewRecorder()
	rec := NewRecorder(rr)
	calls := 0
	var seen int
	rec.OnPrepare(func(r *Recorder) {
		calls++
		seen = r.Status
	})

	rec.Header().Set("X-Test", "1")
	rec.WriteHeader(http.StatusCreated)
	_, _ = rec.Write([]byte("hello"))
	rec.WriteHeader(http.StatusTeapot)

	if calls != 1 {
		t.Fatalf("prepare calls = %d, want 1", calls)
	}
	if seen != http.StatusCreated || rec.Status != http.StatusCreated {
		t.Fatalf("status seen=%d rec=%d, want 201", seen, rec.Status)
	}
	if rec.Bytes != 5 {
		t.Fatalf("Bytes = %d, want 5", rec.Bytes)
	}
	if rec.Streaming() {
		t.Fatalf("plain response reported as streaming")
	}
}

func TestRecorder_ImplicitOKOnWrite(t *testing.T) {
	rec := NewRecorder(httptest.NewRecorder())
	calls := 0
	rec.OnPrepare(func(*Recorder) { calls++ })
	_, _ = rec.Write([]byte("x"))
	if calls != 1 || rec.Status != http.StatusOK {
		t.Fatalf("calls=%d status=%d, want 1/200", calls, rec.Status)
	}
}

func TestRecorder_InformationalDoesNotPrepare(t *testing.T) {
	rec := NewRecorder(httptest.NewRecorder())
	calls := 0
	rec.OnPrepare(func(*Recorder) { calls++ })
	rec.WriteHeader(http.StatusEarlyHints)
	if calls != 0 || rec.Prepared() {
		t.Fatalf("1xx head prepared the response")
	}
	rec.WriteHeader(http.StatusOK)
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestRecorder_StreamingDetection(t *testing.T) {
	rec := NewRecorder(httptest.NewRecorder())
	rec.Header().Set("Content-Type", "text/event-stream; charset=utf-8")
	if !rec.Streaming() {
		t.Fatalf("event-stream not detected")
	}

	rec = NewRecorder(httptest.NewRecorder())
	rec.Header().Set("Content-Type", "application/json")
	rec.Flush()
	if !rec.Streaming() || !rec.Prepared() || rec.Status != http.StatusOK {
		t.Fatalf("flush: streaming=%v prepared=%v status=%d", rec.Streaming(), rec.Prepared(), rec.Status)
	}
}

func TestRecorder_Buffered(t *testing.T) {
	sized := NewRecorder(httptest.NewRecorder())
	WriteJSON(sized, http.StatusOK, map[string]int{"n": 1})
	if !sized.Buffered() {
		t.Fatalf("response with Content-Length not buffered")
	}

	empty := NewRecorder(httptest.NewRecorder())
	empty.WriteHeader(http.StatusNoContent)
	if !empty.Buffered() {
		t.Fatalf("204 not buffered")
	}

	chunked := NewRecorder(httptest.NewRecorder())
	chunked.Header().Set("Content-Type", "text/plain")
	_, _ = chunked.Write([]byte("part 1\n"))
	if chunked.Buffered() {
		t.Fatalf("unsized body counted as buffered before the handler finished")
	}

	flushed := NewRecorder(httptest.NewRecorder())
	flushed.Header().Set("Content-Length", "4")
	flushed.Flush()
	if flushed.Buffered() {
		t.Fatalf("flushed response counted as buffered")
	}
}

func TestRecorder_PrepareWithoutWriting(t *testing.T) {
	rr := httptest.NewRecorder()
	rec := NewRecorder(rr)
	var seen int
	rec.OnPrepare(func(r *Recorder) { seen = r.Status })

	rec.Prepare(http.StatusInternalServerError)
	rec.Prepare(http.StatusOK)

	if seen != http.StatusInternalServerError {
		t.Fatalf("seen = %d, want 500", seen)
	}
	if rr.Code != http.StatusOK || rr.Body.Len() != 0 || rr.Flushed {
		t.Fatalf("Prepare wrote to the underlying writer")
	}
}

type hijackable struct {
	*httptest.ResponseRecorder
}

func (hijackable) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	c, _ := net.Pipe()
	return c, nil, nil
}

func TestRecorder_HijackIsStreaming(t *testing.T) {
	rec := NewRecorder(hijackable{httptest.NewRecorder()})
	calls := 0
	rec.OnPrepare(func(*Recorder) { calls++ })
	conn, _, err := rec.Hijack()
	if err != nil {
		t.Fatalf("Hijack: %v", err)
	}
	defer conn.Close()
	if calls != 1 || rec.Status != http.StatusSwitchingProtocols || !rec.Streaming() {
		t.Fatalf("calls=%d status=%d streaming=%v", calls, rec.Status, rec.Streaming())
	}
}

func TestWriteJSON_SetsLength(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteJSON(rr, http.StatusOK, map[string]int{"a": 1})
	if got := rr.Header().Get("Content-Length"); got != "8" {
		t.Fatalf("Content-Length = %q, want 8 (body %q)", got, rr.Body.String())
	}
	if got := rr.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("Content-Type = %q", got)
	}
}

func TestFullURL(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "http://example.com/users/7?x=1", nil)
	if got, want := FullURL(r), "http://example.com/users/7?x=1"; got != want {
		t.Fatalf("FullURL = %q, want %q", got, want)
	}
	r.Header.Set("X-Forwarded-Proto", "https")
	if got, want := FullURL(r), "https://example.com/users/7?x=1"; got != want {
		t.Fatalf("FullURL = %q, want %q", got, want)
	}
}
