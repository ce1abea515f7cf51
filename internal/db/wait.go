package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cybertec-postgresql/odoo-entrypoint/internal/retry"
)

// DefaultTimeout is the wait budget used when none is given
const DefaultTimeout = 60 * time.Second

// ErrTimedOut is returned when the database did not become reachable in time
var ErrTimedOut = errors.New("database connection timed out")

// State is the state of a wait loop
type State int

const (
	// Probing means attempts are still being made
	Probing State = iota
	// Succeeded means a connection was opened and closed
	Succeeded
	// TimedOut means the budget ran out before a connection succeeded
	TimedOut
	// Aborted means the context was canceled before the budget ran out
	Aborted
)

func (s State) String() string {
	switch s {
	case Probing:
		return "probing"
	case Succeeded:
		return "succeeded"
	case TimedOut:
		return "timed out"
	case Aborted:
		return "aborted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Result describes how a wait loop ended
type Result struct {
	State    State
	Attempts int // failed attempts
	Elapsed  time.Duration
	LastErr  error
}

// Waiter probes the database until it answers or the timeout elapses
type Waiter struct {
	Connect ConnectFunc
	Timeout time.Duration
	Clock   retry.Clock
	Backoff *retry.Config
	Logger  logrus.FieldLogger
}

// NewWaiter creates a waiter with the production clock and backoff schedule
func NewWaiter(connect ConnectFunc, timeout time.Duration) *Waiter {
	return &Waiter{
		Connect: connect,
		Timeout: timeout,
		Clock:   retry.SystemClock{},
		Backoff: retry.PostgreSQLDefaults(),
		Logger:  logrus.StandardLogger(),
	}
}

// Wait runs the probe loop. Every connection error is treated as transient.
// The returned error wraps ErrTimedOut and the last connection error, or the
// context error if ctx was canceled while sleeping.
func (w *Waiter) Wait(ctx context.Context) (Result, error) {
	start := w.Clock.Now()
	backoff := w.Backoff.CreateBackoff(w.Clock, start.Add(w.Timeout))
	res := Result{State: Probing}

	for {
		res.Elapsed = w.Clock.Now().Sub(start)
		if res.Elapsed >= w.Timeout {
			return w.timedOut(res)
		}

		err := Probe(ctx, w.Connect)
		if err == nil {
			res.State = Succeeded
			res.Elapsed = w.Clock.Now().Sub(start)
			return res, nil
		}
		res.Attempts++
		res.LastErr = err

		delay, stop := backoff.Next()
		if stop {
			res.Elapsed = w.Clock.Now().Sub(start)
			return w.timedOut(res)
		}
		w.Logger.WithFields(logrus.Fields{
			"attempt":  res.Attempts,
			"retry_in": delay,
			"error":    err,
		}).Info("Waiting for database connection...")

		if err := w.Clock.Sleep(ctx, delay); err != nil {
			res.State = Aborted
			res.Elapsed = w.Clock.Now().Sub(start)
			return res, fmt.Errorf("wait for database aborted: %w", err)
		}
	}
}

func (w *Waiter) timedOut(res Result) (Result, error) {
	res.State = TimedOut
	if res.LastErr == nil {
		return res, fmt.Errorf("%w after %s", ErrTimedOut, w.Timeout)
	}
	return res, fmt.Errorf("%w after %s: %w", ErrTimedOut, w.Timeout, res.LastErr)
}
