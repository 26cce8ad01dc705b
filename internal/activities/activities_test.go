package activities

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/petermazzocco/go-doll-studio/internal/ai"
	"github.com/petermazzocco/go-doll-studio/internal/dolls"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeDolls struct {
	mu     sync.Mutex
	names  map[string]string
	cached []string
	urls   []string
	err    error
}

func (f *fakeDolls) Persona(_ context.Context, id string) (dolls.Persona, error) {
	name, ok := f.names[id]
	if !ok {
		return dolls.Persona{}, &dolls.Error{Kind: dolls.ErrNotFound, Message: "Doll not found"}
	}
	return dolls.Persona{DollID: id, Name: name}, nil
}

func (f *fakeDolls) CacheVideo(_ context.Context, sourceURL, filename string) (dolls.CachedVideo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return dolls.CachedVideo{}, f.err
	}
	f.cached = append(f.cached, filename)
	f.urls = append(f.urls, sourceURL)
	return dolls.CachedVideo{Filename: filename, Path: "http://localhost:3001/uploads/videos/" + filename}, nil
}

type fakeRenderer struct {
	mu        sync.Mutex
	submitted []ai.RenderRequest
	submitErr error
	status    func(calls int) (ai.Render, error)
	calls     int
}

func (f *fakeRenderer) Submit(_ context.Context, req ai.RenderRequest) (ai.Render, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.submitErr != nil {
		return ai.Render{}, f.submitErr
	}
	f.submitted = append(f.submitted, req)
	return ai.Render{ID: "r-1", Status: ai.RenderPlanned}, nil
}

func (f *fakeRenderer) Status(_ context.Context, id string) (ai.Render, error) {
	f.mu.Lock()
	f.calls++
	n := f.calls
	f.mu.Unlock()
	r, err := f.status(n)
	r.ID = id
	return r, err
}

func succeedsOn(n int) func(int) (ai.Render, error) {
	return func(calls int) (ai.Render, error) {
		if calls >= n {
			return ai.Render{Status: ai.RenderSucceeded, URL: "https://cdn.example.com/r-1.mp4"}, nil
		}
		return ai.Render{Status: ai.RenderProcessing}, nil
	}
}

func newTestService(t *testing.T, r *fakeRenderer, d *fakeDolls, opts ...Option) *Service {
	t.Helper()
	cfg := Config{PollInterval: time.Millisecond, MaxAttempts: 5, CacheSize: 16, CacheTTL: time.Hour, DownloadTimeout: time.Second}
	s := NewService(d, r, cfg, zap.NewNop(), append([]Option{WithPlanner(NewPlanner(1, 2))}, opts...)...)
	t.Cleanup(s.Close)
	return s
}

func waitForJob(t *testing.T, s *Service, dollID, activityID string) VideoView {
	t.Helper()
	j, ok := s.jobs.Peek(Key{DollID: dollID, ActivityID: activityID})
	require.True(t, ok)
	select {
	case <-j.done:
	case <-time.After(2 * time.Second):
		t.Fatal("render job did not finish")
	}
	return j.snapshot()
}

func TestCatalog(t *testing.T) {
	all := Templates()
	require.Len(t, all, 12)

	seen := map[string]bool{}
	for _, tmpl := range all {
		assert.False(t, seen[tmpl.ID], "duplicate id %s", tmpl.ID)
		seen[tmpl.ID] = true
		assert.Contains(t, tmpl.Description, "{dollName}")
	}

	tea, ok := Find("2")
	require.True(t, ok)
	a := tea.For("Bella")
	assert.Equal(t, "Bella enjoys a cozy cup of tea and some cookies", a.Description)
	assert.Equal(t, Morning, a.Type)

	_, ok = Find("13")
	assert.False(t, ok)
}

func TestPlannerToday(t *testing.T) {
	p := NewPlanner(42, 7)
	for range 50 {
		day := p.Today("Bella")
		require.GreaterOrEqual(t, len(day), 3)
		require.LessOrEqual(t, len(day), 5)

		ids := map[string]bool{}
		for i, a := range day {
			assert.False(t, ids[a.ID])
			ids[a.ID] = true
			assert.NotContains(t, a.Description, "{dollName}")
			if i > 0 {
				assert.LessOrEqual(t, day[i-1].Type.order(), a.Type.order())
			}
		}
	}
}

func TestToday(t *testing.T) {
	s := newTestService(t, &fakeRenderer{}, &fakeDolls{names: map[string]string{"d1": "Bella"}})

	day, err := s.Today(context.Background(), "d1")
	require.NoError(t, err)
	assert.NotEmpty(t, day)

	_, err = s.Today(context.Background(), "missing")
	assert.ErrorIs(t, err, dolls.ErrNotFound)
}

func TestVideoViewUsesClock(t *testing.T) {
	at := time.Date(2025, 6, 1, 18, 30, 0, 0, time.UTC)
	r := &fakeRenderer{status: succeedsOn(1)}
	d := &fakeDolls{names: map[string]string{"d1": "Bella"}}
	s := newTestService(t, r, d, WithClock(func() time.Time { return at }))

	view, _, err := s.StartVideo(context.Background(), "d1", "1")
	require.NoError(t, err)
	assert.Equal(t, at, view.UpdatedAt)

	final := waitForJob(t, s, "d1", "1")
	assert.Equal(t, at, final.UpdatedAt)
}

func TestStartVideoSucceeds(t *testing.T) {
	var outcomes []ai.PollState
	var mu sync.Mutex
	r := &fakeRenderer{status: succeedsOn(2)}
	d := &fakeDolls{names: map[string]string{"d1": "Bella"}}
	s := newTestService(t, r, d, WithOutcomeObserver(func(st ai.PollState) {
		mu.Lock()
		outcomes = append(outcomes, st)
		mu.Unlock()
	}))

	view, started, err := s.StartVideo(context.Background(), "d1", "6")
	require.NoError(t, err)
	assert.True(t, started)
	assert.Equal(t, "r-1", view.RenderID)
	assert.Equal(t, ai.PollPending, view.State)

	require.Len(t, r.submitted, 1)
	assert.Equal(t, ai.RenderRequest{
		Title:    "Bella's Sunset Watch",
		Subtitle: "Bella watches the beautiful sunset from the window",
		Emoji:    "🌇",
		Time:     "6:30 PM",
	}, r.submitted[0])

	final := waitForJob(t, s, "d1", "6")
	assert.Equal(t, ai.PollSucceeded, final.State)
	assert.Equal(t, "https://cdn.example.com/r-1.mp4", final.URL)
	assert.Equal(t, "http://localhost:3001/uploads/videos/d1-6.mp4", final.LocalPath)
	assert.Equal(t, []string{"d1-6.mp4"}, d.cached)

	mu.Lock()
	assert.Equal(t, []ai.PollState{ai.PollSucceeded}, outcomes)
	mu.Unlock()

	again, started, err := s.StartVideo(context.Background(), "d1", "6")
	require.NoError(t, err)
	assert.False(t, started)
	assert.Equal(t, final, again)
	assert.Len(t, r.submitted, 1)

	got, err := s.Video("d1", "6")
	require.NoError(t, err)
	assert.Equal(t, final, got)
}

func TestStartVideoResubmitsAfterFailure(t *testing.T) {
	r := &fakeRenderer{status: func(int) (ai.Render, error) {
		return ai.Render{Status: ai.RenderFailed, ErrorMessage: "template missing"}, nil
	}}
	s := newTestService(t, r, &fakeDolls{names: map[string]string{"d1": "Bella"}})

	_, _, err := s.StartVideo(context.Background(), "d1", "1")
	require.NoError(t, err)
	final := waitForJob(t, s, "d1", "1")
	assert.Equal(t, ai.PollFailed, final.State)
	assert.Contains(t, final.Error, "template missing")

	_, started, err := s.StartVideo(context.Background(), "d1", "1")
	require.NoError(t, err)
	assert.True(t, started)
	assert.Len(t, r.submitted, 2)
}

func TestStartVideoTimesOut(t *testing.T) {
	r := &fakeRenderer{status: succeedsOn(100)}
	d := &fakeDolls{names: map[string]string{"d1": "Bella"}}
	s := newTestService(t, r, d)

	_, _, err := s.StartVideo(context.Background(), "d1", "3")
	require.NoError(t, err)
	final := waitForJob(t, s, "d1", "3")
	assert.Equal(t, ai.PollTimedOut, final.State)
	assert.Equal(t, 5, final.Attempt)
	assert.Empty(t, d.cached)
}

func TestStartVideoErrors(t *testing.T) {
	d := &fakeDolls{names: map[string]string{"d1": "Bella"}}

	s := newTestService(t, &fakeRenderer{}, d)
	_, _, err := s.StartVideo(context.Background(), "missing", "1")
	assert.ErrorIs(t, err, dolls.ErrNotFound)

	_, _, err = s.StartVideo(context.Background(), "d1", "99")
	assert.ErrorIs(t, err, dolls.ErrNotFound)
	assert.Equal(t, "Activity not found", dolls.Message(err))

	failing := newTestService(t, &fakeRenderer{submitErr: ai.ErrNotConfigured}, d)
	_, _, err = failing.StartVideo(context.Background(), "d1", "1")
	assert.ErrorIs(t, err, dolls.ErrUpstream)
	assert.Equal(t, "Video rendering is not configured", dolls.Message(err))

	_, err = failing.Video("d1", "1")
	assert.ErrorIs(t, err, dolls.ErrNotFound)
}

func TestDownloadFailureKeepsRender(t *testing.T) {
	r := &fakeRenderer{status: succeedsOn(1)}
	d := &fakeDolls{names: map[string]string{"d1": "Bella"}, err: errors.New("disk full")}
	s := newTestService(t, r, d)

	_, _, err := s.StartVideo(context.Background(), "d1", "4")
	require.NoError(t, err)
	final := waitForJob(t, s, "d1", "4")
	assert.Equal(t, ai.PollSucceeded, final.State)
	assert.Empty(t, final.LocalPath)
}

func TestCancelVideo(t *testing.T) {
	r := &fakeRenderer{status: succeedsOn(1 << 30)}
	d := &fakeDolls{names: map[string]string{"d1": "Bella"}}
	cfg := Config{PollInterval: 10 * time.Millisecond, MaxAttempts: 10000, CacheSize: 4, CacheTTL: time.Hour}
	s := NewService(d, r, cfg, zap.NewNop())
	defer s.Close()

	_, _, err := s.StartVideo(context.Background(), "d1", "9")
	require.NoError(t, err)

	got, err := s.CancelVideo(context.Background(), "d1", "9")
	require.NoError(t, err)
	assert.Equal(t, ai.PollCanceled, got.State)

	_, err = s.CancelVideo(context.Background(), "d1", "10")
	assert.ErrorIs(t, err, dolls.ErrNotFound)
}

func TestCloseStopsJobs(t *testing.T) {
	r := &fakeRenderer{status: succeedsOn(1 << 30)}
	d := &fakeDolls{names: map[string]string{"d1": "Bella"}}
	cfg := Config{PollInterval: 10 * time.Millisecond, MaxAttempts: 10000, CacheSize: 4, CacheTTL: time.Hour}
	s := NewService(d, r, cfg, zap.NewNop())

	_, _, err := s.StartVideo(context.Background(), "d1", "9")
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		s.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Close did not stop the render job")
	}

	got, err := s.Video("d1", "9")
	require.NoError(t, err)
	assert.Equal(t, ai.PollCanceled, got.State)
}
