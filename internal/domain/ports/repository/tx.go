package repository

import (
	"context"

	"github.com/jackc/pgx/v4"
)

type Tx interface{}

// NoTX marks the non-transactional path when calling repository methods.
var NoTX interface{}

// TransactionManager executes a function within a database transaction,
// passing the underlying handle via the repositories' `tx` argument.
//
// Repositories accept `tx Tx` and detect a live transaction handle
// implementation-side (e.g. to add SELECT ... FOR UPDATE), and MUST
// gracefully accept nil (non-transactional path). The concrete type of the
// handle is infra-defined (pgx.Tx for Postgres).
type TransactionManager interface {
	WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx Tx) error) error
}
