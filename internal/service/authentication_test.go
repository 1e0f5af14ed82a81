package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"key-custody/internal/apperr"
	"key-custody/internal/database"
	"key-custody/internal/metrics"
	"key-custody/internal/model"
	"key-custody/internal/store"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func TestAuthenticate(t *testing.T) {
	t.Cleanup(restoreGlobals)
	env := newTestEnv(t)
	ctx := context.Background()

	env.mustCreateUser(t, "alice", false, "s3cret")
	disabled := env.mustCreateUser(t, "carol", false, "s3cret")
	_, err := env.identity.Update(ctx, disabled.Username, UserUpdate{CanLogin: false})
	require.NoError(t, err)
	env.mustCreateUser(t, "nopass", false, "")

	u, err := env.auth.Authenticate(ctx, "alice", "s3cret")
	require.NoError(t, err)
	require.Equal(t, "alice", u.Username)

	failures := map[string][2]string{
		"wrong password": {"alice", "nope"},
		"unknown user":   {"mallory", "s3cret"},
		"login disabled": {"carol", "s3cret"},
		"no password":    {"nopass", ""},
	}
	for name, in := range failures {
		_, err := env.auth.Authenticate(ctx, in[0], in[1])
		require.ErrorIs(t, err, ErrInvalidCredentials, name)
		require.Equal(t, ErrInvalidCredentials.Error(), err.Error(), name)
	}
}

func TestAuthenticateCountsOneComparisonPerPath(t *testing.T) {
	t.Cleanup(restoreGlobals)
	env := newTestEnv(t)
	env.mustCreateUser(t, "alice", false, "s3cret")

	calls := 0
	bcryptCompareHashAndPassword = func(hash, pw []byte) error {
		calls++
		return bcrypt.CompareHashAndPassword(hash, pw)
	}
	for _, username := range []string{"alice", "ghost"} {
		calls = 0
		_, _ = env.auth.Authenticate(context.Background(), username, "x")
		require.Equal(t, 1, calls, username)
	}
}

func TestAuthenticateInfrastructureError(t *testing.T) {
	t.Cleanup(restoreGlobals)
	env := newTestEnv(t)
	getUserByUsername = func(context.Context, database.Querier, string, store.Lock) (*model.User, error) {
		return nil, apperr.Wrap(apperr.KindInfrastructure, errors.New("conn refused"), "storage failure")
	}
	_, err := env.auth.Authenticate(context.Background(), "alice", "pw")
	require.ErrorIs(t, err, apperr.ErrInfrastructure)
	require.NotErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateRehashesOldCost(t *testing.T) {
	t.Cleanup(restoreGlobals)
	env := newTestEnv(t)
	u := env.mustCreateUser(t, "alice", false, "")
	old, err := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost+1)
	require.NoError(t, err)
	require.NoError(t, env.store.updateUserPassword(context.Background(), nil, u.ID, string(old)))

	got, err := env.auth.Authenticate(context.Background(), "alice", "pw")
	require.NoError(t, err)
	require.False(t, env.hasher.NeedsRehash(*got.PasswordDigest))

	stored, err := env.store.getUserByID(context.Background(), nil, u.ID)
	require.NoError(t, err)
	cost, err := bcrypt.Cost([]byte(*stored.PasswordDigest))
	require.NoError(t, err)
	require.Equal(t, bcrypt.MinCost, cost)
}

func TestAuthenticateMetrics(t *testing.T) {
	t.Cleanup(restoreGlobals)
	env := newTestEnv(t)
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	auth := NewAuthenticator(env.db, env.hasher, time.Second, zap.NewNop(), m)
	env.mustCreateUser(t, "alice", false, "pw")

	_, _ = auth.Authenticate(context.Background(), "alice", "pw")
	_, _ = auth.Authenticate(context.Background(), "alice", "bad")
	_, _ = auth.Authenticate(context.Background(), "ghost", "bad")

	expected := `
# HELP keycustody_logins_total Login attempts by result.
# TYPE keycustody_logins_total counter
keycustody_logins_total{result="failure"} 2
keycustody_logins_total{result="success"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "keycustody_logins_total"))
}

func TestAuthenticationTimingInvariance(t *testing.T) {
	t.Cleanup(restoreGlobals)
	env := newTestEnv(t)
	// 比 MinCost 高一點，讓 bcrypt 主導耗時
	hasher := newTestHasher(t, 6)
	auth := NewAuthenticator(env.db, hasher, time.Second, zap.NewNop(), nil)
	identity := NewIdentityService(env.db, hasher, time.Second, zap.NewNop())
	_, err := identity.Create(context.Background(), NewUser{Username: "alice", Password: strPtr("right"), CanLogin: true})
	require.NoError(t, err)

	measure := func(username, password string) time.Duration {
		const rounds = 15
		samples := make([]time.Duration, 0, rounds)
		for i := 0; i < rounds; i++ {
			start := time.Now()
			_, _ = auth.Authenticate(context.Background(), username, password)
			samples = append(samples, time.Since(start))
		}
		return median(samples)
	}

	known := measure("alice", "wrong")
	unknown := measure("nobody", "wrong")
	ratio := float64(unknown) / float64(known)
	require.True(t, ratio > 0.5 && ratio < 2.0, "unknown/known latency ratio %.2f", ratio)
}

func strPtr(s string) *string { return &s }
