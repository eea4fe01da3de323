package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/aurelle-jewelry/api/internal/platform/firestore"
)

// UnitOfWork groups repository operations into a single Firestore transaction.
// The active transaction travels on the context so that repositories invoked
// from the callback participate in the same commit.
type UnitOfWork struct {
	provider *pfirestore.Provider
}

// NewUnitOfWork constructs a Firestore-backed unit of work.
func NewUnitOfWork(provider *pfirestore.Provider) (*UnitOfWork, error) {
	if provider == nil {
		return nil, errors.New("unit of work requires firestore provider")
	}
	return &UnitOfWork{provider: provider}, nil
}

// RunInTx executes fn within a Firestore transaction. Nested calls join the
// transaction already carried by the context instead of opening a new one.
func (u *UnitOfWork) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if u == nil || u.provider == nil {
		return errors.New("unit of work not initialised")
	}
	if fn == nil {
		return errors.New("unit of work: callback is required")
	}

	if _, ok := pfirestore.TransactionFrom(ctx); ok {
		return fn(ctx)
	}

	return u.provider.RunTransaction(ctx, func(txCtx context.Context, tx *firestore.Transaction) error {
		return fn(pfirestore.WithTransaction(txCtx, tx))
	})
}
