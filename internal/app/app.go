package app

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/bot"
	tvgconfig "github.com/NikitaDmitryuk/telegram-video-grabber/internal/config"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/core/services"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/logutils"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/models"
	"github.com/NikitaDmitryuk/telegram-video-grabber/internal/ratelimit"
)

// Fetcher runs one link job end to end.
type Fetcher interface {
	Handle(ctx context.Context, req services.Request, r services.Reporter, deliver services.DeliverFunc) (*models.Job, error)
}

// App carries the dependencies every handler needs and tracks in-flight jobs.
type App struct {
	Config  *tvgconfig.Config
	Bot     bot.Service
	Fetcher Fetcher
	Limiter ratelimit.Limiter

	ctx   context.Context
	jobs  sync.WaitGroup
	slots *semaphore.Weighted
}

// New binds the app to ctx. Canceling ctx cancels every job started with Go.
// The per-user link limit comes from config; with a non-positive limit every link is accepted.
func New(ctx context.Context, config *tvgconfig.Config, b bot.Service, fetcher Fetcher) *App {
	limiter := ratelimit.New(config.Download.RateLimit, config.Download.RateLimitInterval)
	if tb, ok := limiter.(*ratelimit.TokenBucketLimiter); ok {
		go tb.StartPruning(ctx, time.Hour)
	}
	a := &App{
		Config:  config,
		Bot:     b,
		Fetcher: fetcher,
		Limiter: limiter,
		ctx:     ctx,
	}
	if n := config.Download.MaxConcurrentJobs; n > 0 {
		a.slots = semaphore.NewWeighted(int64(n))
	}
	return a
}

// Go runs fn on its own goroutine with the app context once a job slot is free.
// If the context ends while waiting, fn still runs so it can report the cancellation.
func (a *App) Go(fn func(ctx context.Context)) {
	a.jobs.Add(1)
	go func() {
		defer a.jobs.Done()
		if a.slots != nil {
			if err := a.slots.Acquire(a.ctx, 1); err != nil {
				fn(a.ctx)
				return
			}
			defer a.slots.Release(1)
		}
		fn(a.ctx)
	}()
}

// Wait blocks until all jobs have returned or timeout passes. It reports whether all jobs finished.
func (a *App) Wait(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		a.jobs.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		logutils.Log.WithField("timeout", timeout.String()).Warn("Timed out waiting for jobs to finish")
		return false
	}
}
