package domain

import "errors"

var (
	// Common domain errors
	ErrNotFound           = errors.New("entity not found")
	ErrAlreadyExists      = errors.New("entity already exists")
	ErrInvalidArgument    = errors.New("invalid argument")
	ErrOperationFailed    = errors.New("database operation failed")
	ErrReadDatabaseRow    = errors.New("failed to read database row")
	ErrInvalidExecContext = errors.New("invalid executor context")

	// Gateway errors
	ErrCredentialMissing = errors.New("no active gateway credential configured")
	ErrGatewayRejected   = errors.New("payment gateway rejected the request")

	// Reconciliation errors. Retry decisions branch on these kinds,
	// never on message contents.
	ErrDuplicateEvent      = errors.New("webhook event already recorded")
	ErrUnresolvedReference = errors.New("event references no known charge or subscription")
	ErrTransientFailure    = errors.New("transient failure during reconciliation")
	ErrRetryExhausted      = errors.New("webhook event exhausted its retry budget")

	// Charge lifecycle errors
	ErrChargeTerminal  = errors.New("charge is in a terminal state")
	ErrChargeNotLinked = errors.New("charge has no generated payment link")
)
