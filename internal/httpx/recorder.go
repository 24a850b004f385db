package httpx

import (
	"bufio"
	"mime"
	"net"
	"net/http"
)

// Recorder captures the status and size of a response and fires a one-shot
// prepare event just before the response head goes out.
type Recorder struct {
	http.ResponseWriter
	Status int
	Bytes  int

	prepared  bool
	streaming bool
	onPrepare func(*Recorder)
}

// OnPrepare sets the function run once when the response is prepared.
func (r *Recorder) OnPrepare(fn func(*Recorder)) {
	r.onPrepare = fn
}

func (r *Recorder) WriteHeader(code int) {
	// 1xx heads are informational, the real response is still to come
	if code >= 100 && code < 200 && code != http.StatusSwitchingProtocols {
		r.ResponseWriter.WriteHeader(code)
		return
	}
	if !r.prepared {
		r.Status = code
		r.prepare()
	}
	r.ResponseWriter.WriteHeader(code)
}

func (r *Recorder) Write(b []byte) (int, error) {
	if !r.prepared {
		r.Status = http.StatusOK
		r.prepare()
	}
	n, err := r.ResponseWriter.Write(b)
	r.Bytes += n
	return n, err
}

// Flush sends buffered data to the client. Flushing marks the response as
// streaming.
func (r *Recorder) Flush() {
	r.streaming = true
	if !r.prepared {
		r.Status = http.StatusOK
		r.prepare()
	}
	_ = http.NewResponseController(r.ResponseWriter).Flush()
}

// Hijack hands the connection to the handler. The response is then owned by
// the handler until it returns, so it counts as streaming.
func (r *Recorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	r.streaming = true
	if !r.prepared {
		r.Status = http.StatusSwitchingProtocols
		r.prepare()
	}
	return http.NewResponseController(r.ResponseWriter).Hijack()
}

func (r *Recorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

// Prepare fires the prepare event for a response the handler never wrote,
// without writing anything itself.
func (r *Recorder) Prepare(status int) {
	if r.prepared {
		return
	}
	r.Status = status
	r.prepare()
}

func (r *Recorder) Prepared() bool { return r.prepared }

// Streaming reports whether the body is produced after the head is sent.
func (r *Recorder) Streaming() bool {
	if r.streaming || r.Status == http.StatusSwitchingProtocols {
		return true
	}
	mt, _, err := mime.ParseMediaType(r.Header().Get("Content-Type"))
	if err != nil {
		return false
	}
	switch mt {
	case "text/event-stream", "application/x-ndjson":
		return true
	}
	return false
}

// Buffered reports whether the whole response is known when its head goes
// out: it declared a Content-Length or its status carries no body. Any other
// response may still be written, and flushed, after the head.
func (r *Recorder) Buffered() bool {
	if r.Streaming() {
		return false
	}
	switch r.Status {
	case http.StatusNoContent, http.StatusNotModified:
		return true
	}
	return r.Header().Get("Content-Length") != ""
}

func (r *Recorder) prepare() {
	r.prepared = true
	if r.onPrepare != nil {
		r.onPrepare(r)
	}
}

func NewRecorder(w http.ResponseWriter) *Recorder {
	return &Recorder{ResponseWriter: w}
}
