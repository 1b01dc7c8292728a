package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrSchedulerClosed is returned for work submitted after Close.
var ErrSchedulerClosed = errors.New("resolve: scheduler closed")

// Scheduler runs submitted work one task at a time on a single goroutine.
// Everything that touches the symbol graph goes through it, so the graph
// needs no locks.
type Scheduler struct {
	tasks  chan task
	quit   chan struct{}
	exited chan struct{}
	once   sync.Once
	logger *slog.Logger
}

type task struct {
	ctx  context.Context
	fn   func(context.Context) error
	done chan error
}

// NewScheduler starts the scheduler goroutine. A nil logger selects
// slog.Default().
func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scheduler{
		tasks:  make(chan task),
		quit:   make(chan struct{}),
		exited: make(chan struct{}),
		logger: logger,
	}
	go s.loop()
	return s
}

func (s *Scheduler) loop() {
	defer close(s.exited)
	for {
		select {
		case t := <-s.tasks:
			err := s.exec(t)
			if t.done != nil {
				t.done <- err
			}
		case <-s.quit:
			return
		}
	}
}

func (s *Scheduler) exec(t task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled task panicked", slog.Any("panic", r))
			err = fmt.Errorf("resolve: task panicked: %v", r)
		}
	}()
	return t.fn(t.ctx)
}

// Do runs fn on the scheduler goroutine and waits for it. If ctx is done
// before fn starts, fn is not run; if it is done while fn runs, Do returns
// early and fn finishes on its own.
func (s *Scheduler) Do(ctx context.Context, fn func(context.Context) error) error {
	t := task{ctx: ctx, fn: fn, done: make(chan error, 1)}
	select {
	case s.tasks <- t:
	case <-s.quit:
		return ErrSchedulerClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-t.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Go queues fn without waiting for it. Errors are logged.
func (s *Scheduler) Go(fn func(context.Context) error) error {
	t := task{ctx: context.Background(), fn: func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			s.logger.Error("scheduled task failed", slog.Any("error", err))
		}
		return nil
	}}
	go func() {
		select {
		case s.tasks <- t:
		case <-s.quit:
		}
	}()
	select {
	case <-s.quit:
		return ErrSchedulerClosed
	default:
		return nil
	}
}

// Close stops the scheduler after the running task, if any, returns.
func (s *Scheduler) Close() {
	s.once.Do(func() { close(s.quit) })
	<-s.exited
}
