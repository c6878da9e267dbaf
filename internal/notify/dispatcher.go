package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/palenque-digital/conversational-platform/pkg/logger"
)

// Dispatcher runs named background tasks detached from their originating
// request. Each task gets its own timeout-bounded context; failures and
// panics are logged, never propagated.
type Dispatcher struct {
	timeout time.Duration
	logger  *logger.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher whose tasks are bounded by timeout.
func NewDispatcher(timeout time.Duration, log *logger.Logger) *Dispatcher {
	return &Dispatcher{timeout: timeout, logger: log}
}

// Go launches fn in the background.
func (d *Dispatcher) Go(name string, fn func(ctx context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		defer func() {
			if r := recover(); r != nil {
				d.logger.Error("background task panicked",
					zap.String("task", name),
					zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			d.logger.Error("background task failed",
				zap.String("task", name),
				zap.Error(err))
		}
	}()
}

// Wait blocks until every launched task returns. Called during shutdown.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}
