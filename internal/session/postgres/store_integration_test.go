//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"example.com/gymbooking/internal/domain"
)

func TestStoreRoundTripPerProfile(t *testing.T) {
	ctx := context.Background()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("gym"),
		postgrescontainer.WithUsername("platform"),
		postgrescontainer.WithPassword("platform"),
		testcontainers.WithWaitStrategy(wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).WithStartupTimeout(time.Minute)),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	kiosk, err := Open(ctx, connStr, "kiosk")
	require.NoError(t, err)
	t.Cleanup(func() { _ = kiosk.Close() })

	other, err := Open(ctx, connStr, "other")
	require.NoError(t, err)
	t.Cleanup(func() { _ = other.Close() })

	sess, err := kiosk.Load(ctx)
	require.NoError(t, err)
	require.False(t, sess.Authenticated())

	require.NoError(t, kiosk.Save(ctx, domain.Session{AuthToken: "T", UserID: "42"}))
	require.NoError(t, kiosk.Save(ctx, domain.Session{AuthToken: "T2", UserID: "42"}))

	sess, err = kiosk.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.Session{AuthToken: "T2", UserID: "42"}, sess)

	sess, err = other.Load(ctx)
	require.NoError(t, err)
	require.False(t, sess.Authenticated())

	require.NoError(t, kiosk.Clear(ctx))
	sess, err = kiosk.Load(ctx)
	require.NoError(t, err)
	require.Equal(t, domain.Session{}, sess)
}
