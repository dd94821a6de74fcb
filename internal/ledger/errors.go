// Package ledger holds the domain error taxonomy shared by services,
// stores and HTTP handlers. Handlers map these sentinels onto status codes
// with errors.Is; stores return them from inside transactions so a failed
// precondition never leaves partial state behind.
package ledger

import "errors"

var (
	// ErrInvalidInput — a required field is missing or blank.
	ErrInvalidInput = errors.New("required fields are missing")
	// ErrDuplicateUser — handle or contact address already registered.
	ErrDuplicateUser = errors.New("handle or contact already registered")
	// ErrInvalidCredentials — unknown handle or wrong password.
	ErrInvalidCredentials = errors.New("incorrect handle or password")
	// ErrUserInactive — the account exists but has been deactivated.
	ErrUserInactive = errors.New("account is inactive")
	// ErrUserNotFound — no user with the given id.
	ErrUserNotFound = errors.New("user not found")
	// ErrRateLimited — too many login attempts from one address.
	ErrRateLimited = errors.New("too many attempts, try again later")

	// ErrPropositionNotFound — unknown or inactive proposition.
	ErrPropositionNotFound = errors.New("proposition not found")
	// ErrAlreadySettled — the proposition already has a winning option.
	ErrAlreadySettled = errors.New("proposition already settled")
	// ErrInvalidOption — option is not part of the proposition's option set.
	ErrInvalidOption = errors.New("invalid option")
	// ErrBettingClosed — the proposition's close time has passed.
	ErrBettingClosed = errors.New("betting period has ended")
	// ErrPropositionHasWagers — option edits are forbidden once wagers exist.
	ErrPropositionHasWagers = errors.New("proposition already has wagers")

	// ErrNotVerified — the user has not completed identity verification.
	ErrNotVerified = errors.New("account is not verified")
	// ErrInsufficientBalance — stake exceeds the user's balance.
	ErrInsufficientBalance = errors.New("insufficient balance")
	// ErrInvalidAmount — stake is zero or negative.
	ErrInvalidAmount = errors.New("amount must be positive")

	// ErrExternalIDTaken — external identity already linked to another user.
	ErrExternalIDTaken = errors.New("external identity already linked to another user")
	// ErrBridgeRejected — the verification bridge refused the key.
	ErrBridgeRejected = errors.New("verification bridge rejected the key")
	// ErrBadSecret — webhook shared secret mismatch.
	ErrBadSecret = errors.New("unauthorized")

	// ErrKeyNotFound — unknown verification key.
	ErrKeyNotFound = errors.New("key not found")
	// ErrKeyMismatch — the key was issued to a different identity.
	ErrKeyMismatch = errors.New("key does not belong to this identity")
	// ErrKeyUsed — one-time key already consumed.
	ErrKeyUsed = errors.New("key already used")
	// ErrKeyPoolEmpty — no unassigned keys left in the pool.
	ErrKeyPoolEmpty = errors.New("no keys available")
)
