package app

import (
	"context"
	"sync"
)

type stateKey struct{}

// State is the mapping attached to one inbound request. Middleware stores
// values here that hooks running outside its call frame (the prepare hooks)
// must read. It lives exactly as long as the request.
type State struct {
	mu sync.Mutex
	m  map[any]any
}

func (s *State) Set(key, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.m == nil {
		s.m = map[any]any{}
	}
	s.m[key] = value
}

func (s *State) Get(key any) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[key]
	return v, ok
}

func WithState(ctx context.Context, s *State) context.Context {
	return context.WithValue(ctx, stateKey{}, s)
}

// StateFrom returns the request's state, or nil outside an App.
func StateFrom(ctx context.Context) *State {
	s, _ := ctx.Value(stateKey{}).(*State)
	return s
}
