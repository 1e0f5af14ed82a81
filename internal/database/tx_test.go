package database

import (
	"context"
	"errors"
	"testing"

	"key-custody/internal/apperr"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestWithTx_CommitsOnSuccess(t *testing.T) {
	var txs []*FakeTx
	db := NewFakeTxDB(&txs)

	err := WithTx(context.Background(), db, ReadCommitted, func(tx Querier) error {
		return nil
	})
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.True(t, txs[0].Committed)
	require.False(t, txs[0].RolledBack)
}

func TestWithTx_RollbackOnFnError(t *testing.T) {
	var txs []*FakeTx
	db := NewFakeTxDB(&txs)

	err := WithTx(context.Background(), db, ReadCommitted, func(tx Querier) error {
		return &pgconn.PgError{Code: "23505", ConstraintName: "users_username_key"}
	})
	require.ErrorIs(t, err, apperr.ErrConflict)
	require.False(t, txs[0].Committed)
	require.True(t, txs[0].RolledBack)
}

func TestWithTx_RollbackOnPanic(t *testing.T) {
	var txs []*FakeTx
	db := NewFakeTxDB(&txs)

	defer func() {
		if r := recover(); r == nil {
			t.Fatalf("expected panic to propagate")
		}
		require.True(t, txs[0].RolledBack)
	}()

	_ = WithTx(context.Background(), db, ReadCommitted, func(tx Querier) error {
		panic("kaput")
	})
}

func TestWithTx_BeginError(t *testing.T) {
	db := &FakeDB{BeginTxFn: func(context.Context, pgx.TxOptions) (pgx.Tx, error) {
		return nil, errors.New("connection refused")
	}}
	err := WithTx(context.Background(), db, ReadCommitted, func(tx Querier) error {
		t.Fatal("fn must not run")
		return nil
	})
	require.ErrorIs(t, err, apperr.ErrInfrastructure)
	require.True(t, apperr.Retryable(err))
}

func TestWithTx_CommitError(t *testing.T) {
	tx := &FakeTx{CommitFn: func(context.Context) error { return errors.New("serialization failure") }}
	db := &FakeDB{BeginTxFn: func(context.Context, pgx.TxOptions) (pgx.Tx, error) { return tx, nil }}
	err := WithTx(context.Background(), db, ReadCommitted, func(Querier) error { return nil })
	require.ErrorIs(t, err, apperr.ErrInfrastructure)
}
