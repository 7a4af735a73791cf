package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/pashagolub/pgxmock/v4"
)

func TestTransactionManager_NestedReusesTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	// A context already carrying a transaction must not begin a new one;
	// the function runs inside the existing transaction.
	tm := NewTransactionManager(nil)
	ctx := setupMockContext(mock)

	called := false
	err = tm.WithTransaction(ctx, func(txCtx context.Context) error {
		called = true
		if GetTx(txCtx) == nil {
			t.Error("expected transaction in nested context")
		}
		return nil
	})

	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if !called {
		t.Error("transaction function was not called")
	}
}

func TestTransactionManager_NestedPropagatesError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	tm := NewTransactionManager(nil)
	ctx := setupMockContext(mock)

	want := errors.New("inner failure")
	err = tm.WithTransaction(ctx, func(txCtx context.Context) error {
		return want
	})

	if !errors.Is(err, want) {
		t.Errorf("error = %v, want %v", err, want)
	}
}

func TestGetConn_PrefersTransaction(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatal(err)
	}
	defer mock.Close()

	ctx := setupMockContext(mock)
	if GetConn(ctx, nil) == nil {
		t.Fatal("expected transaction connection from context")
	}

	if GetTx(context.Background()) != nil {
		t.Error("expected no transaction on a bare context")
	}
}
