package xerrors

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	PGUniqueViolation      = "23505"
	PGNumericValueOutRange = "22003"
)

func ParsePGErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code // e.g. 23505 for unique_violation
	}
	return "unknown"
}

// Generic
var (
	ErrInvalidInput   = errors.New("invalid input provided")
	ErrNotFound       = errors.New("not found")
	ErrInternalServer = errors.New("internal server error")
)

// Ledger
var (
	ErrDuplicateAccount = errors.New("account already exists")
	ErrInvalidAmount    = errors.New("amount must be a positive number")
	ErrInvalidSide      = errors.New("side must be long or short")
)

// Request lifecycle
var (
	ErrAlreadyFinalized = errors.New("request already finalized")
)

// Machine-readable codes returned to callers.
const (
	CodeValidation       = "validation"
	CodeInvalidAmount    = "invalid_amount"
	CodeInvalidSide      = "invalid_side"
	CodeNotFound         = "not_found"
	CodeDuplicateAccount = "duplicate_account"
	CodeAlreadyFinalized = "already_finalized"
	CodeInternal         = "internal"
)

var kinds = []struct {
	err    error
	code   string
	status int
}{
	{ErrInvalidAmount, CodeInvalidAmount, http.StatusBadRequest},
	{ErrInvalidSide, CodeInvalidSide, http.StatusBadRequest},
	{ErrInvalidInput, CodeValidation, http.StatusBadRequest},
	{ErrNotFound, CodeNotFound, http.StatusNotFound},
	{ErrDuplicateAccount, CodeDuplicateAccount, http.StatusConflict},
	{ErrAlreadyFinalized, CodeAlreadyFinalized, http.StatusConflict},
}

// Kind maps err to its machine-readable code. Unknown errors are internal.
func Kind(err error) string {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.code
		}
	}
	return CodeInternal
}

func HTTPStatus(err error) int {
	for _, k := range kinds {
		if errors.Is(err, k.err) {
			return k.status
		}
	}
	return http.StatusInternalServerError
}

// Message is the caller-facing text for err. Internal errors never leak details.
func Message(err error) string {
	if Kind(err) == CodeInternal {
		return ErrInternalServer.Error()
	}
	return err.Error()
}
