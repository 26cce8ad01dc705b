package ai

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

type PollState string

const (
	PollPending   PollState = "pending"
	PollPolling   PollState = "polling"
	PollSucceeded PollState = "succeeded"
	PollFailed    PollState = "failed"
	PollTimedOut  PollState = "timed_out"
	PollCanceled  PollState = "canceled"
)

func (s PollState) Terminal() bool {
	switch s {
	case PollSucceeded, PollFailed, PollTimedOut, PollCanceled:
		return true
	}
	return false
}

type PollUpdate struct {
	State   PollState
	Attempt int
	Render  Render
	Err     error
}

type Poller struct {
	renderer    Renderer
	interval    time.Duration
	maxAttempts int
	log         *zap.Logger
}

func NewPoller(r Renderer, interval time.Duration, maxAttempts int, log *zap.Logger) *Poller {
	return &Poller{renderer: r, interval: interval, maxAttempts: maxAttempts, log: log}
}

var errStillRendering = errors.New("render still in progress")

// Poll checks the render until it reaches a terminal status, the attempts
// run out or ctx is canceled. onUpdate, if set, sees every state change
// including the final one, which is also the return value. A failed status
// check counts as an attempt.
func (p *Poller) Poll(ctx context.Context, id string, onUpdate func(PollUpdate)) PollUpdate {
	emit := func(u PollUpdate) PollUpdate {
		if onUpdate != nil {
			onUpdate(u)
		}
		return u
	}

	last := PollUpdate{State: PollPending, Render: Render{ID: id}}
	emit(last)

	attempt := 0
	op := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempt++
		render, err := p.renderer.Status(ctx, id)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			p.log.Warn("render status check failed", zap.String("render", id), zap.Int("attempt", attempt), zap.Error(err))
			last = emit(PollUpdate{State: PollPolling, Attempt: attempt, Render: last.Render, Err: err})
			return err
		}

		switch render.Status {
		case RenderSucceeded:
			last = PollUpdate{State: PollSucceeded, Attempt: attempt, Render: render}
			return nil
		case RenderFailed:
			last = PollUpdate{State: PollFailed, Attempt: attempt, Render: render}
			if render.ErrorMessage != "" {
				last.Err = fmt.Errorf("%w: %s", ErrUpstream, render.ErrorMessage)
			}
			return nil
		}
		last = emit(PollUpdate{State: PollPolling, Attempt: attempt, Render: render})
		return errStillRendering
	}

	// WithMaxRetries treats zero as unlimited.
	var policy backoff.BackOff = &backoff.StopBackOff{}
	if p.maxAttempts > 1 {
		policy = backoff.WithMaxRetries(backoff.NewConstantBackOff(p.interval), uint64(p.maxAttempts-1))
	}

	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		if ctx.Err() != nil {
			last = PollUpdate{State: PollCanceled, Attempt: attempt, Render: last.Render, Err: ctx.Err()}
		} else {
			last = PollUpdate{State: PollTimedOut, Attempt: attempt, Render: last.Render, Err: err}
		}
	}
	p.log.Info("render poll finished", zap.String("render", id), zap.String("state", string(last.State)), zap.Int("attempts", attempt))
	return emit(last)
}
