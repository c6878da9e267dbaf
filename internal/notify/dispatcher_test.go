package notify

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/palenque-digital/conversational-platform/pkg/logger"
)

func testLogger(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("error")
	require.NoError(t, err)
	return log
}

func TestDispatcher_RunsTasksAndWaits(t *testing.T) {
	d := NewDispatcher(time.Second, testLogger(t))

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		d.Go("count", func(ctx context.Context) error {
			ran.Add(1)
			return nil
		})
	}
	d.Wait()
	assert.Equal(t, int32(5), ran.Load())
}

func TestDispatcher_TaskErrorDoesNotBlockOthers(t *testing.T) {
	d := NewDispatcher(time.Second, testLogger(t))

	var ok atomic.Bool
	d.Go("fails", func(ctx context.Context) error {
		return errors.New("boom")
	})
	d.Go("succeeds", func(ctx context.Context) error {
		ok.Store(true)
		return nil
	})
	d.Wait()
	assert.True(t, ok.Load())
}

func TestDispatcher_RecoversPanics(t *testing.T) {
	d := NewDispatcher(time.Second, testLogger(t))

	d.Go("panics", func(ctx context.Context) error {
		panic("unexpected")
	})

	// Wait returning at all proves the panic was contained.
	done := make(chan struct{})
	go func() {
		d.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("dispatcher did not recover from panic")
	}
}

func TestDispatcher_TaskContextHasDeadline(t *testing.T) {
	d := NewDispatcher(50*time.Millisecond, testLogger(t))

	var hadDeadline atomic.Bool
	d.Go("deadline", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		hadDeadline.Store(ok)
		return nil
	})
	d.Wait()
	assert.True(t, hadDeadline.Load())
}
