//go:build integration

package booking_test

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"golang.org/x/sync/errgroup"

	"ms-booking/internal/admins"
	"ms-booking/internal/apperrors"
	"ms-booking/internal/booking"
	bookingdb "ms-booking/internal/booking/db"
	"ms-booking/internal/database/dbtest"
	"ms-booking/internal/database/migrations"
	"ms-booking/internal/models"
	"ms-booking/internal/txn"
)

// startPostgres runs a disposable Postgres, applies the SQL migrations and
// seeds one user (id 1) and one admin (id 2).
func startPostgres(t *testing.T) *bun.DB {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("booking"),
		postgres.WithUsername("booking"),
		postgres.WithPassword("booking"),
		postgres.BasicWaitStrategies(),
	)
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(context.Background()) })

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	sqldb, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(20)
	db := bun.NewDB(sqldb, pgdialect.New())
	t.Cleanup(func() { db.Close() })

	require.NoError(t, migrations.NewRunner(db, migrations.Options{Dir: "../../migrations"}, nil).Up())

	dbtest.SeedUser(t, db, "traveller@example.com", models.RoleUser)
	dbtest.SeedUser(t, db, "admin@example.com", models.RoleAdmin)
	return db
}

func newPostgresService(db *bun.DB) *booking.Service {
	opts := txn.DefaultOptions()
	opts.MaxRetries = 10
	opts.InitialBackoff = 5 * time.Millisecond
	opts.MaxBackoff = 50 * time.Millisecond
	return booking.NewService(&bookingdb.DB{Bun: db}, txn.New(db, opts, nil, nil), admins.RoleResolver{}, booking.Options{}, nil, nil)
}

func TestPostgresConcurrentResolution(t *testing.T) {
	db := startPostgres(t)
	svc := newPostgresService(db)
	ctx := context.Background()

	b, err := svc.CreateHotelBooking(ctx, hotelInput(1))
	require.NoError(t, err)

	const workers = 8
	var (
		mu       sync.Mutex
		wins     int
		conflict int
	)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			var err error
			if i%2 == 0 {
				err = svc.ApproveBooking(ctx, models.BookingTypeHotel, b.ID, 2, nil)
			} else {
				err = svc.RejectBooking(ctx, models.BookingTypeHotel, b.ID, 2, "overbooked")
			}

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, apperrors.ErrAlreadyResolved), errors.Is(err, apperrors.ErrSerialization):
				conflict++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, workers-1, conflict)

	approval, err := svc.GetApproval(ctx, models.BookingTypeHotel, b.ID)
	require.NoError(t, err)
	got, err := svc.GetBooking(ctx, models.BookingTypeHotel, b.ID)
	require.NoError(t, err)
	assert.Equal(t, string(approval.Status), string(got.Status))

	notifications, err := svc.ListNotifications(ctx, 1, 0)
	require.NoError(t, err)
	assert.Len(t, notifications, 2, "creation notification plus exactly one resolution notification")
}

func TestPostgresConcurrentCreations(t *testing.T) {
	db := startPostgres(t)
	svc := newPostgresService(db)
	ctx := context.Background()

	const n = 10
	refs := make([]string, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < n; i++ {
		i := i
		g.Go(func() error {
			var b *models.Booking
			var err error
			if i%2 == 0 {
				b, err = svc.CreateFlightBooking(gctx, flightInput(1))
			} else {
				b, err = svc.CreateHotelBooking(gctx, hotelInput(1))
			}
			if err != nil {
				return err
			}
			refs[i] = b.BookingReference
			return nil
		})
	}
	require.NoError(t, g.Wait())

	seen := map[string]bool{}
	for _, r := range refs {
		assert.False(t, seen[r], "duplicate reference %s", r)
		seen[r] = true
	}
	assert.Equal(t, n, dbtest.Count(t, db, (*models.Booking)(nil)))
	assert.Equal(t, n, dbtest.Count(t, db, (*models.ApprovalRecord)(nil)))
	assert.Equal(t, n, dbtest.Count(t, db, (*models.AnalyticsEvent)(nil)))
	assert.Equal(t, n, dbtest.Count(t, db, (*models.Notification)(nil)))
}

func TestPostgresRollbackOnConstraint(t *testing.T) {
	db := startPostgres(t)
	svc := newPostgresService(db)
	ctx := context.Background()

	first, err := svc.CreateHotelBooking(ctx, hotelInput(1))
	require.NoError(t, err)

	coordinator := txn.New(db, txn.DefaultOptions(), nil, nil)
	err = coordinator.Run(ctx, "duplicate_reference", func(ctx context.Context, tx bun.Tx) error {
		b := hotelInput(1).ToBooking(first.BookingReference, time.Now().UTC())
		_, err := tx.NewInsert().Model(b).Exec(ctx)
		return err
	})
	assert.ErrorIs(t, err, apperrors.ErrConstraint)
	assert.Equal(t, 1, dbtest.Count(t, db, (*models.Booking)(nil)))
}

func TestPostgresNumericOverflowIsValidation(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()

	coordinator := txn.New(db, txn.DefaultOptions(), nil, nil)
	err := coordinator.Run(ctx, "oversized_price", func(ctx context.Context, tx bun.Tx) error {
		b := hotelInput(1).ToBooking("HB99999999", time.Now().UTC())
		b.Price = 1e11
		_, err := tx.NewInsert().Model(b).Exec(ctx)
		return err
	})
	assert.ErrorIs(t, err, apperrors.ErrValidation)
	assert.Equal(t, 0, dbtest.Count(t, db, (*models.Booking)(nil)))
}
