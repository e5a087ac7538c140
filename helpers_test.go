package main

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// testLogger only prints errors so test output stays readable
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// mockDeliverer captures delivered frames for testing
type mockDeliverer struct {
	mu     sync.Mutex
	frames []Envelope
	raw    []*Frame
}

func (m *mockDeliverer) Deliver(f *Frame) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.frames = append(m.frames, f.Env)
	m.raw = append(m.raw, f)
}

func (m *mockDeliverer) lastFrame() *Frame {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.raw) == 0 {
		return nil
	}
	return m.raw[len(m.raw)-1]
}

func (m *mockDeliverer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.frames)
}

func (m *mockDeliverer) last() Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.frames) == 0 {
		return Envelope{}
	}
	return m.frames[len(m.frames)-1]
}

func (m *mockDeliverer) ofType(typ string) []Envelope {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Envelope
	for _, f := range m.frames {
		if f.Type == typ {
			out = append(out, f)
		}
	}
	return out
}

// recorder captures tracked events for testing
type recorder struct {
	mu     sync.Mutex
	events []string
	data   map[string]string
}

func (r *recorder) Track(evtType string, _ PlayerID, _ RoomID, data string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evtType)
	if r.data == nil {
		r.data = make(map[string]string)
	}
	r.data[evtType] = data
}

func (r *recorder) has(evtType string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.events {
		if e == evtType {
			return true
		}
	}
	return false
}

// startCoordinator runs a coordinator until the test ends.
func startCoordinator(t *testing.T, maxRooms int) (*Coordinator, *Store) {
	t.Helper()
	store := NewStore()
	coord := NewCoordinator(store, nil, testLogger(), maxRooms)
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- coord.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-errc
	})
	return coord, store
}

func testCtx(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	t.Cleanup(cancel)
	return ctx
}

// objectsOf returns the objects of kind in a frame.
func objectsOf(t *testing.T, env Envelope, kind ObjectKind) []GameObject {
	t.Helper()
	objs, ok := env.Data.([]GameObject)
	require.True(t, ok, "frame data should be []GameObject, got %T", env.Data)
	var out []GameObject
	for _, o := range objs {
		if o.Type == kind {
			out = append(out, o)
		}
	}
	return out
}

func textBodies(t *testing.T, env Envelope) []string {
	t.Helper()
	var out []string
	for _, o := range objectsOf(t, env, KindText) {
		out = append(out, o.Data.(TextState).Body)
	}
	return out
}
