package repository

import (
	"context"
	"testing"
	"time"

	"github.com/fjod/rx_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) *PostgresOrders {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432")
	require.NoError(t, err)

	orders, err := NewPostgresOrders(&Credentials{
		Host:     host,
		Port:     port.Int(),
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
	}, nil)
	require.NoError(t, err)
	t.Cleanup(func() { orders.Close() })

	require.NoError(t, orders.RunMigrations())
	// second run is a no-op
	require.NoError(t, orders.RunMigrations())
	return orders
}

func TestPostgresOrders_Lifecycle(t *testing.T) {
	ctx := context.Background()
	pg := setupTestDB(t)
	repo := pg.ForSession("session-a")
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Save(ctx, newTestOrder("FIRST", base.Add(time.Hour))))
	require.NoError(t, repo.Save(ctx, newTestOrder("SECOND", base)))
	assert.ErrorIs(t, repo.Save(ctx, newTestOrder("SECOND", base)), ErrDuplicateOrder)

	got, err := repo.Get(ctx, "FIRST")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(210).Equal(got.Amount))
	require.Len(t, got.Items, 1)
	assert.Equal(t, "med-1", got.Items[0].ID)

	all, err := repo.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "FIRST", all[0].TrackingID)

	latest, err := repo.LoadLatest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "SECOND", latest.TrackingID)

	updated, err := repo.AdvanceStatus(ctx, "FIRST", domain.OrderStatusOutForDelivery)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusOutForDelivery, updated.Status)
	_, err = repo.AdvanceStatus(ctx, "FIRST", domain.OrderStatusShipped)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPostgresOrders_SessionIsolation(t *testing.T) {
	ctx := context.Background()
	pg := setupTestDB(t)

	require.NoError(t, pg.ForSession("a").Save(ctx, newTestOrder("TRK-1", time.Now())))
	// same tracking id may exist under another session
	require.NoError(t, pg.ForSession("b").Save(ctx, newTestOrder("TRK-1", time.Now())))

	_, err := pg.ForSession("c").Get(ctx, "TRK-1")
	assert.ErrorIs(t, err, ErrOrderNotFound)
	_, err = pg.ForSession("c").LoadLatest(ctx)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}
