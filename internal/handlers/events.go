package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/TwigBush/reqtrace/internal/httpx"
)

type Tick struct {
	Seq int64     `json:"seq"`
	At  time.Time `json:"at"`
}

// Hub fans ticks out to every open event stream.
type Hub struct {
	mu      sync.RWMutex
	clients map[chan Tick]struct{}

	done      chan struct{}
	closeOnce sync.Once
}

func NewHub() *Hub {
	return &Hub{clients: map[chan Tick]struct{}{}, done: make(chan struct{})}
}

// Close ends every open stream. Run closes the hub when it returns.
func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *Hub) Subscribe(ctx context.Context) <-chan Tick {
	ch := make(chan Tick, 128)
	h.mu.Lock()
	h.clients[ch] = struct{}{}
	h.mu.Unlock()
	go func() { <-ctx.Done(); h.mu.Lock(); delete(h.clients, ch); close(ch); h.mu.Unlock() }()
	return ch
}

func (h *Hub) Broadcast(t Tick) {
	h.mu.RLock()
	for ch := range h.clients {
		select {
		case ch <- t:
		default: /* drop */
		}
	}
	h.mu.RUnlock()
}

// Run broadcasts a tick every interval until ctx is done.
func (h *Hub) Run(ctx context.Context, interval time.Duration) {
	defer h.Close()
	t := time.NewTicker(interval)
	defer t.Stop()
	var seq int64
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			seq++
			h.Broadcast(Tick{Seq: seq, At: now.UTC()})
		}
	}
}

// ServeHTTP streams ticks as server-sent events. ?n= ends the stream after n
// ticks; otherwise it runs until the client goes away. ?interval= gives the
// stream its own ticker instead of the shared one.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("n"))
	var interval time.Duration
	if v := q.Get("interval"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			httpx.WriteError(w, http.StatusBadRequest, "invalid interval")
			return
		}
		interval = d
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	var events <-chan Tick
	if interval > 0 {
		own := NewHub()
		events = own.Subscribe(ctx)
		go own.Run(ctx, interval)
	} else {
		events = h.Subscribe(ctx)
	}

	enc := json.NewEncoder(w)
	_, _ = w.Write([]byte("event: ping\ndata: {}\n\n"))
	flusher.Flush()

	sent := 0
	for {
		select {
		case <-r.Context().Done():
			return
		case <-h.done:
			return
		case ev, open := <-events:
			if !open {
				return
			}
			_, _ = w.Write([]byte("event: tick\ndata: "))
			_ = enc.Encode(ev)
			_, _ = w.Write([]byte("\n"))
			flusher.Flush()
			sent++
			if limit > 0 && sent >= limit {
				slog.Debug("events: stream complete", "sent", sent)
				return
			}
		}
	}
}
