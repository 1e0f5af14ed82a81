package service

import (
	"context"
	"testing"
	"time"

	"key-custody/internal/cache"
	"key-custody/internal/database"
	"key-custody/internal/model"
	"key-custody/internal/worker"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

type testEnv struct {
	store    *memStore
	db       *database.FakeDB
	txs      []*database.FakeTx
	cache    *cache.FakeCache
	now      time.Time
	hasher   *PasswordHasher
	identity *IdentityService
	auth     *Authenticator
	sessions *SessionAuthority
	ledger   *CustodyLedger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{store: newMemStore(), now: time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)}
	installMemStore(t, env.store)
	env.db = database.NewFakeTxDB(&env.txs)
	env.cache = cache.NewMapFakeCache(func() time.Time { return env.now })

	pool := worker.NewPool(4)
	t.Cleanup(pool.Stop)
	hasher, err := NewPasswordHasher(bcrypt.MinCost, pool)
	require.NoError(t, err)
	env.hasher = hasher

	logger := zap.NewNop()
	env.identity = NewIdentityService(env.db, hasher, time.Second, logger)
	env.auth = NewAuthenticator(env.db, hasher, time.Second, logger, nil)
	env.sessions, err = NewSessionAuthority(env.cache, env.db, testSecret, time.Hour, time.Second)
	require.NoError(t, err)
	env.ledger = NewCustodyLedger(env.db, time.Second, logger, nil)
	return env
}

func (e *testEnv) mustCreateUser(t *testing.T, username string, admin bool, password string) *model.User {
	t.Helper()
	in := NewUser{Username: username, CanLogin: true, Admin: admin}
	if password != "" {
		in.Password = &password
	}
	u, err := e.identity.Create(context.Background(), in)
	require.NoError(t, err)
	return u
}

func (e *testEnv) mustCreateKey(t *testing.T, name string, active bool) *model.Key {
	t.Helper()
	k, err := e.ledger.CreateKey(context.Background(), model.Key{Name: name, Active: active})
	require.NoError(t, err)
	return k
}
