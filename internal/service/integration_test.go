package service

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"key-custody/internal/apperr"
	"key-custody/internal/database"
	"key-custody/internal/model"
	"key-custody/internal/worker"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// 需要真正的 PostgreSQL：設定 TEST_DATABASE_URL 才會執行
func newPostgresEnv(t *testing.T) (*IdentityService, *CustodyLedger) {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	require.NoError(t, database.RunMigrations(url))

	ctx := context.Background()
	db, err := database.NewPgxPool(ctx, url, 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(db.Close)
	_, err = db.Exec(ctx, `TRUNCATE assignments, keys, users RESTART IDENTITY CASCADE`)
	require.NoError(t, err)

	pool := worker.NewPool(4)
	t.Cleanup(pool.Stop)
	hasher, err := NewPasswordHasher(bcrypt.MinCost, pool)
	require.NoError(t, err)
	logger := zap.NewNop()
	return NewIdentityService(db, hasher, 5*time.Second, logger), NewCustodyLedger(db, 5*time.Second, logger, nil)
}

func TestPostgresConcurrentCheckout(t *testing.T) {
	identity, ledger := newPostgresEnv(t)
	ctx := context.Background()
	_, err := ledger.CreateKey(ctx, model.Key{Name: "K1", Active: true})
	require.NoError(t, err)

	const n = 10
	for i := 0; i < n; i++ {
		_, err := identity.Create(ctx, NewUser{Username: fmt.Sprintf("u%d", i), CanLogin: true})
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	errs := make([]error, n)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = ledger.Checkout(ctx, fmt.Sprintf("u%d", i), "K1", day(10))
		}(i)
	}
	close(start)
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.ErrorIs(t, err, apperr.ErrConflict)
	}
	require.Equal(t, 1, wins)
}

func TestPostgresConcurrentAdminDemotion(t *testing.T) {
	identity, _ := newPostgresEnv(t)
	ctx := context.Background()
	for _, name := range []string{"a1", "a2", "a3"} {
		_, err := identity.Create(ctx, NewUser{Username: name, CanLogin: true, Admin: true})
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	for _, name := range []string{"a1", "a2", "a3"} {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if name == "a3" {
				_ = identity.Delete(ctx, name)
				return
			}
			_, _ = identity.Update(ctx, name, UserUpdate{CanLogin: true, Admin: false})
		}(name)
	}
	wg.Wait()

	n, err := identity.CountAdmins(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, n)
}

func TestPostgresCheckinAndSentinel(t *testing.T) {
	identity, ledger := newPostgresEnv(t)
	ctx := context.Background()
	_, err := identity.Create(ctx, NewUser{Username: "alice", CanLogin: true})
	require.NoError(t, err)
	_, err = ledger.CreateKey(ctx, model.Key{Name: "K1", Active: true})
	require.NoError(t, err)

	a, err := ledger.Checkout(ctx, "alice", "K1", day(10))
	require.NoError(t, err)
	_, err = ledger.Checkin(ctx, a.ID, day(9))
	require.ErrorIs(t, err, apperr.ErrValidation)
	_, err = ledger.Checkin(ctx, a.ID, day(15))
	require.NoError(t, err)
	_, err = ledger.Checkin(ctx, a.ID, day(15))
	require.NoError(t, err)

	reopened, err := ledger.Update(ctx, a.ID, model.AssignmentPatch{DateIn: model.SetDateIn(model.ClearDateIn)})
	require.NoError(t, err)
	require.True(t, reopened.Open())

	require.ErrorIs(t, identity.Delete(ctx, "alice"), apperr.ErrConflict)
	require.ErrorIs(t, ledger.DeleteKey(ctx, "K1"), apperr.ErrConflict)
}
