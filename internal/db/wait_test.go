package db

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cybertec-postgresql/odoo-entrypoint/internal/retry"
)

// fakeClock advances only when Sleep is called and records every sleep
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(_ context.Context, d time.Duration) error {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newTestWaiter(connect ConnectFunc, timeout time.Duration, clock retry.Clock) *Waiter {
	return &Waiter{
		Connect: connect,
		Timeout: timeout,
		Clock:   clock,
		Backoff: retry.PostgreSQLDefaults(),
		Logger:  quietLogger(),
	}
}

func failingConnect(calls *int) ConnectFunc {
	return func(context.Context) (PgxConnIface, error) {
		*calls++
		return nil, errors.New("connection refused")
	}
}

func TestWaitSucceedsFirstAttempt(t *testing.T) {
	mock, err := pgxmock.NewConn()
	require.NoError(t, err)
	mock.ExpectClose()

	clock := &fakeClock{now: time.Unix(0, 0)}
	w := newTestWaiter(func(context.Context) (PgxConnIface, error) {
		return mock, nil
	}, DefaultTimeout, clock)

	res, err := w.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Succeeded, res.State)
	assert.Zero(t, res.Attempts)
	assert.Zero(t, res.Elapsed)
	assert.Empty(t, clock.sleeps)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitZeroTimeout(t *testing.T) {
	calls := 0
	clock := &fakeClock{now: time.Unix(0, 0)}
	w := newTestWaiter(failingConnect(&calls), 0, clock)

	res, err := w.Wait(context.Background())
	require.ErrorIs(t, err, ErrTimedOut)
	assert.Equal(t, TimedOut, res.State)
	assert.Empty(t, clock.sleeps, "must not sleep without budget")
	assert.Zero(t, calls, "no attempt is made without budget")
	assert.Zero(t, res.Attempts)
	assert.NoError(t, res.LastErr)
}

func TestWaitBackoffSchedule(t *testing.T) {
	calls := 0
	clock := &fakeClock{now: time.Unix(0, 0)}
	w := newTestWaiter(failingConnect(&calls), 60*time.Second, clock)

	res, err := w.Wait(context.Background())
	require.ErrorIs(t, err, ErrTimedOut)
	assert.ErrorContains(t, err, "connection refused")
	assert.Equal(t, TimedOut, res.State)

	// 1+2+4+8+10+10+10+10 = 55, then the last 5s are capped by the budget
	expected := []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
		10 * time.Second,
		10 * time.Second,
		10 * time.Second,
		10 * time.Second,
		5 * time.Second,
	}
	assert.Equal(t, expected, clock.sleeps)
	assert.Equal(t, len(expected), res.Attempts)
	assert.Equal(t, len(expected), calls)
	assert.Equal(t, 60*time.Second, res.Elapsed)
}

func TestWaitSucceedsAfterRetries(t *testing.T) {
	mock, err := pgxmock.NewConn()
	require.NoError(t, err)
	mock.ExpectClose()

	calls := 0
	connect := func(context.Context) (PgxConnIface, error) {
		calls++
		if calls < 4 {
			return nil, errors.New("the database system is starting up")
		}
		return mock, nil
	}
	clock := &fakeClock{now: time.Unix(0, 0)}
	w := newTestWaiter(connect, DefaultTimeout, clock)

	res, err := w.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Succeeded, res.State)
	assert.Equal(t, 3, res.Attempts)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, clock.sleeps)
	assert.Equal(t, 7*time.Second, res.Elapsed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWaitSlowAttemptsConsumeBudget(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	calls := 0
	// every attempt burns the full connect timeout
	connect := func(context.Context) (PgxConnIface, error) {
		calls++
		clock.now = clock.now.Add(ConnectTimeout)
		return nil, errors.New("timeout")
	}
	w := newTestWaiter(connect, 10*time.Second, clock)

	res, err := w.Wait(context.Background())
	require.ErrorIs(t, err, ErrTimedOut)
	assert.Equal(t, TimedOut, res.State)
	// t=5 sleep 1, t=11 the budget is already gone
	assert.Equal(t, []time.Duration{time.Second}, clock.sleeps)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 11*time.Second, res.Elapsed)
}

type cancelingClock struct {
	fakeClock
	cancel context.CancelFunc
}

func (c *cancelingClock) Sleep(ctx context.Context, _ time.Duration) error {
	c.cancel()
	return ctx.Err()
}

func TestWaitCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	clock := &cancelingClock{fakeClock: fakeClock{now: time.Unix(0, 0)}, cancel: cancel}
	w := newTestWaiter(failingConnect(&calls), DefaultTimeout, clock)

	res, err := w.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, ErrTimedOut)
	assert.Equal(t, Aborted, res.State)
	assert.Equal(t, 1, calls)
}

func TestStateString(t *testing.T) {
	assert.Equal(t, "probing", Probing.String())
	assert.Equal(t, "succeeded", Succeeded.String())
	assert.Equal(t, "timed out", TimedOut.String())
	assert.Equal(t, "aborted", Aborted.String())
	assert.Equal(t, "State(7)", State(7).String())
}

func TestNewWaiter(t *testing.T) {
	w := NewWaiter(nil, 30*time.Second)
	assert.Equal(t, 30*time.Second, w.Timeout)
	assert.IsType(t, retry.SystemClock{}, w.Clock)
	assert.Equal(t, retry.PostgreSQLDefaults(), w.Backoff)
	assert.NotNil(t, w.Logger)
}
