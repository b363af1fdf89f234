package catalogmetrics

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const refreshTimeout = 5 * time.Second

type worker struct {
	collector *Collector
	pusher    Pusher
	interval  time.Duration
	log       *zap.Logger

	stopCh chan struct{}
	doneCh chan struct{}
	// failing suppresses repeated warnings until a cycle succeeds again
	failing atomic.Bool
}

func newWorker(c *Collector, pusher Pusher, interval time.Duration, log *zap.Logger) *worker {
	return &worker{collector: c, pusher: pusher, interval: interval, log: log}
}

func (w *worker) Start() {
	if w.stopCh != nil {
		return
	}
	w.stopCh = make(chan struct{})
	w.doneCh = make(chan struct{})

	go func() {
		defer close(w.doneCh)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		w.runOnce()
		for {
			select {
			case <-ticker.C:
				w.runOnce()
			case <-w.stopCh:
				return
			}
		}
	}()
}

func (w *worker) Stop(ctx context.Context) error {
	if w.stopCh == nil {
		return nil
	}
	close(w.stopCh)
	select {
	case <-w.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *worker) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), refreshTimeout)
	defer cancel()

	err := w.collector.Refresh(ctx)
	if w.pusher != nil {
		err = errors.Join(err, w.pusher.Push(ctx, w.collector.Registry()))
	}
	if err != nil {
		if w.failing.CompareAndSwap(false, true) {
			w.log.Warn("catalog metrics cycle failed", zap.Error(err))
		}
		return
	}
	w.failing.Store(false)
}
