package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupPostgreSQLContainer(ctx context.Context, t *testing.T) Params {
	pgContainer, err := postgres.Run(ctx,
		"postgres:17-alpine",
		postgres.WithDatabase("odoo"),
		postgres.WithUsername("odoo"),
		postgres.WithPassword("odoo"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = pgContainer.Terminate(context.Background())
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	return Params{
		Host:     host,
		Port:     port.Port(),
		User:     "odoo",
		Password: "odoo",
		SSLMode:  "disable",
	}
}

func TestWaitIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	params := setupPostgreSQLContainer(ctx, t)

	connConfig, err := params.ConnConfig()
	require.NoError(t, err)

	w := NewWaiter(NewConnector(connConfig), 10*time.Second)
	w.Logger = quietLogger()
	res, err := w.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, Succeeded, res.State)
	assert.Zero(t, res.Attempts)
	assert.Less(t, res.Elapsed, time.Second)
}

func TestWaitIntegrationWrongPassword(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	params := setupPostgreSQLContainer(ctx, t)
	params.Password = "wrong"

	connConfig, err := params.ConnConfig()
	require.NoError(t, err)

	// authentication failures are retried like any other error
	w := NewWaiter(NewConnector(connConfig), 2*time.Second)
	w.Logger = quietLogger()
	res, err := w.Wait(ctx)
	require.ErrorIs(t, err, ErrTimedOut)
	assert.Equal(t, TimedOut, res.State)
	assert.GreaterOrEqual(t, res.Attempts, 2)
}
