package activities

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/petermazzocco/go-doll-studio/internal/ai"
	"github.com/petermazzocco/go-doll-studio/internal/dolls"
	"go.uber.org/zap"
)

// Dolls is the part of the doll service the activity features use.
type Dolls interface {
	Persona(ctx context.Context, id string) (dolls.Persona, error)
	CacheVideo(ctx context.Context, sourceURL, filename string) (dolls.CachedVideo, error)
}

type Key struct {
	DollID     string
	ActivityID string
}

type VideoView struct {
	DollID      string       `json:"dollId"`
	ActivityID  string       `json:"activityId"`
	RenderID    string       `json:"renderId,omitempty"`
	State       ai.PollState `json:"state"`
	Status      string       `json:"status,omitempty"`
	Attempt     int          `json:"attempt"`
	URL         string       `json:"url,omitempty"`
	SnapshotURL string       `json:"snapshotUrl,omitempty"`
	LocalPath   string       `json:"localPath,omitempty"`
	Error       string       `json:"error,omitempty"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

type job struct {
	mu     sync.Mutex
	view   VideoView
	cancel context.CancelFunc
	done   chan struct{}
}

func (j *job) snapshot() VideoView {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.view
}

// reusable reports whether a new render request should get this job back
// instead of submitting again.
func (j *job) reusable() bool {
	switch j.snapshot().State {
	case ai.PollFailed, ai.PollTimedOut, ai.PollCanceled:
		return false
	}
	return true
}

type Config struct {
	PollInterval    time.Duration
	MaxAttempts     int
	CacheSize       int
	CacheTTL        time.Duration
	DownloadTimeout time.Duration
}

// Service plans activities and runs render jobs. Jobs outlive the request
// that started them and stop when Close is called.
type Service struct {
	dolls    Dolls
	renderer ai.Renderer
	poller   *ai.Poller
	planner  *Planner
	log      *zap.Logger
	cfg      Config
	now      func() time.Time
	observe  func(ai.PollState)

	root context.Context
	stop context.CancelFunc
	wg   sync.WaitGroup

	mu   sync.Mutex
	jobs *expirable.LRU[Key, *job]
}

type Option func(*Service)

func WithPlanner(p *Planner) Option {
	return func(s *Service) { s.planner = p }
}

// WithOutcomeObserver is called once per finished job with its final state.
func WithOutcomeObserver(fn func(ai.PollState)) Option {
	return func(s *Service) { s.observe = fn }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(d Dolls, r ai.Renderer, cfg Config, log *zap.Logger, opts ...Option) *Service {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 256
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = 2 * time.Minute
	}
	root, stop := context.WithCancel(context.Background())
	s := &Service{
		dolls:    d,
		renderer: r,
		poller:   ai.NewPoller(r, cfg.PollInterval, cfg.MaxAttempts, log),
		log:      log,
		cfg:      cfg,
		now:      time.Now,
		observe:  func(ai.PollState) {},
		root:     root,
		stop:     stop,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.planner == nil {
		now := uint64(s.now().UnixNano())
		s.planner = NewPlanner(now, now>>1)
	}
	s.jobs = expirable.NewLRU[Key, *job](cfg.CacheSize, func(_ Key, j *job) {
		j.cancel()
	}, cfg.CacheTTL)
	return s
}

func (s *Service) Today(ctx context.Context, dollID string) ([]Activity, error) {
	p, err := s.dolls.Persona(ctx, dollID)
	if err != nil {
		return nil, err
	}
	return s.planner.Today(p.Name), nil
}

// StartVideo submits a render for the activity unless a usable one is
// already cached. The returned bool is true when a new render was submitted.
func (s *Service) StartVideo(ctx context.Context, dollID, activityID string) (VideoView, bool, error) {
	p, err := s.dolls.Persona(ctx, dollID)
	if err != nil {
		return VideoView{}, false, err
	}
	tmpl, ok := Find(activityID)
	if !ok {
		return VideoView{}, false, &dolls.Error{Kind: dolls.ErrNotFound, Message: "Activity not found"}
	}

	key := Key{DollID: dollID, ActivityID: activityID}
	s.mu.Lock()
	if j, ok := s.jobs.Get(key); ok && j.reusable() {
		s.mu.Unlock()
		s.log.Info("using cached video render", zap.String("doll", dollID), zap.String("activity", activityID))
		return j.snapshot(), false, nil
	}
	jobCtx, cancel := context.WithCancel(s.root)
	j := &job{
		view:   VideoView{DollID: dollID, ActivityID: activityID, State: ai.PollPending, UpdatedAt: s.now()},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.jobs.Add(key, j)
	s.mu.Unlock()

	activity := tmpl.For(p.Name)
	render, err := s.renderer.Submit(ctx, ai.RenderRequest{
		Title:    fmt.Sprintf("%s's %s", p.Name, activity.Title),
		Subtitle: activity.Description,
		Emoji:    activity.Emoji,
		Time:     activity.Time,
	})
	if err != nil {
		s.mu.Lock()
		if cur, ok := s.jobs.Peek(key); ok && cur == j {
			s.jobs.Remove(key)
		}
		s.mu.Unlock()
		cancel()
		close(j.done)
		s.log.Error("render submit failed", zap.String("doll", dollID), zap.String("activity", activityID), zap.Error(err))
		msg := "Failed to create video"
		if errors.Is(err, ai.ErrNotConfigured) {
			msg = "Video rendering is not configured"
		}
		return VideoView{}, false, &dolls.Error{Kind: dolls.ErrUpstream, Message: msg, Err: err}
	}

	j.mu.Lock()
	j.view.RenderID = render.ID
	j.view.Status = render.Status
	j.view.URL = render.URL
	view := j.view
	j.mu.Unlock()

	s.wg.Add(1)
	go s.run(jobCtx, j, render.ID)

	s.log.Info("render submitted", zap.String("doll", dollID), zap.String("activity", activityID), zap.String("render", render.ID))
	return view, true, nil
}

func (s *Service) run(ctx context.Context, j *job, renderID string) {
	defer s.wg.Done()
	defer close(j.done)

	final := s.poller.Poll(ctx, renderID, func(u ai.PollUpdate) {
		j.mu.Lock()
		defer j.mu.Unlock()
		j.view.State = u.State
		j.view.Attempt = u.Attempt
		if u.Render.Status != "" {
			j.view.Status = u.Render.Status
		}
		if u.Render.URL != "" {
			j.view.URL = u.Render.URL
		}
		if u.Render.SnapshotURL != "" {
			j.view.SnapshotURL = u.Render.SnapshotURL
		}
		if u.State.Terminal() && u.Err != nil {
			j.view.Error = u.Err.Error()
		}
		j.view.UpdatedAt = s.now()
	})
	s.observe(final.State)

	if final.State != ai.PollSucceeded || final.Render.URL == "" {
		return
	}

	view := j.snapshot()
	dlCtx, cancel := context.WithTimeout(ctx, s.cfg.DownloadTimeout)
	defer cancel()
	cached, err := s.dolls.CacheVideo(dlCtx, final.Render.URL, fmt.Sprintf("%s-%s.mp4", view.DollID, view.ActivityID))
	if err != nil {
		s.log.Warn("rendered video could not be cached", zap.String("render", renderID), zap.Error(err))
		return
	}

	j.mu.Lock()
	j.view.LocalPath = cached.Path
	j.view.UpdatedAt = s.now()
	j.mu.Unlock()
}

func (s *Service) Video(dollID, activityID string) (VideoView, error) {
	j, ok := s.jobs.Get(Key{DollID: dollID, ActivityID: activityID})
	if !ok {
		return VideoView{}, &dolls.Error{Kind: dolls.ErrNotFound, Message: "No video for this activity"}
	}
	return j.snapshot(), nil
}

// CancelVideo stops a running job and waits for it to record its final
// state. Canceling a finished job changes nothing.
func (s *Service) CancelVideo(ctx context.Context, dollID, activityID string) (VideoView, error) {
	j, ok := s.jobs.Get(Key{DollID: dollID, ActivityID: activityID})
	if !ok {
		return VideoView{}, &dolls.Error{Kind: dolls.ErrNotFound, Message: "No video for this activity"}
	}
	j.cancel()
	select {
	case <-j.done:
	case <-ctx.Done():
	}
	return j.snapshot(), nil
}

// Close cancels every job and waits for them to exit.
func (s *Service) Close() {
	s.stop()
	s.wg.Wait()
}
