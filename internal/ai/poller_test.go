package ai

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type scriptedRenderer struct {
	mu     sync.Mutex
	script []scriptStep
	calls  int
}

type scriptStep struct {
	render Render
	err    error
}

func (s *scriptedRenderer) Submit(context.Context, RenderRequest) (Render, error) {
	return Render{ID: "r-1", Status: RenderPlanned}, nil
}

// Status replays the script and repeats the last step once it runs out.
func (s *scriptedRenderer) Status(_ context.Context, id string) (Render, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.script) {
		i = len(s.script) - 1
	}
	s.calls++
	step := s.script[i]
	if step.err == nil {
		step.render.ID = id
	}
	return step.render, step.err
}

func TestPollerStates(t *testing.T) {
	tests := []struct {
		name     string
		script   []scriptStep
		attempts int
		want     PollState
		calls    int
	}{
		{
			name: "succeeds after processing",
			script: []scriptStep{
				{render: Render{Status: RenderPlanned}},
				{render: Render{Status: RenderProcessing}},
				{render: Render{Status: RenderSucceeded, URL: "https://cdn.example.com/r-1.mp4"}},
			},
			attempts: 5,
			want:     PollSucceeded,
			calls:    3,
		},
		{
			name:     "fails",
			script:   []scriptStep{{render: Render{Status: RenderFailed, ErrorMessage: "bad template"}}},
			attempts: 5,
			want:     PollFailed,
			calls:    1,
		},
		{
			name:     "times out",
			script:   []scriptStep{{render: Render{Status: RenderRendering}}},
			attempts: 4,
			want:     PollTimedOut,
			calls:    4,
		},
		{
			name: "errors consume attempts",
			script: []scriptStep{
				{err: ErrUpstream},
				{err: ErrUpstream},
				{render: Render{Status: RenderSucceeded}},
			},
			attempts: 3,
			want:     PollSucceeded,
			calls:    3,
		},
		{
			name:     "errors until timeout",
			script:   []scriptStep{{err: ErrUpstream}},
			attempts: 2,
			want:     PollTimedOut,
			calls:    2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &scriptedRenderer{script: tt.script}
			p := NewPoller(r, time.Millisecond, tt.attempts, zap.NewNop())

			var updates []PollUpdate
			final := p.Poll(context.Background(), "r-1", func(u PollUpdate) { updates = append(updates, u) })

			assert.Equal(t, tt.want, final.State)
			assert.Equal(t, tt.calls, r.calls)
			assert.Equal(t, tt.calls, final.Attempt)
			require.NotEmpty(t, updates)
			assert.Equal(t, PollPending, updates[0].State)
			assert.Equal(t, final, updates[len(updates)-1])
			assert.True(t, final.State.Terminal())
		})
	}
}

func TestPollerSucceededCarriesRender(t *testing.T) {
	r := &scriptedRenderer{script: []scriptStep{{render: Render{Status: RenderSucceeded, URL: "https://cdn.example.com/r-1.mp4"}}}}
	final := NewPoller(r, time.Millisecond, 3, zap.NewNop()).Poll(context.Background(), "r-1", nil)
	assert.Equal(t, Render{ID: "r-1", Status: RenderSucceeded, URL: "https://cdn.example.com/r-1.mp4"}, final.Render)
	assert.NoError(t, final.Err)
}

func TestPollerCanceled(t *testing.T) {
	r := &scriptedRenderer{script: []scriptStep{{render: Render{Status: RenderProcessing}}}}
	p := NewPoller(r, 20*time.Millisecond, 1000, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan PollUpdate, 1)
	go func() { done <- p.Poll(ctx, "r-1", nil) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case final := <-done:
		assert.Equal(t, PollCanceled, final.State)
		assert.ErrorIs(t, final.Err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("poll did not stop after cancel")
	}
}

func TestPollStateTerminal(t *testing.T) {
	assert.False(t, PollPending.Terminal())
	assert.False(t, PollPolling.Terminal())
	for _, s := range []PollState{PollSucceeded, PollFailed, PollTimedOut, PollCanceled} {
		assert.True(t, s.Terminal(), s)
	}
}
