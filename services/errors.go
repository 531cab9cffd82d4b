package services

import "errors"

// Ledger and authentication errors. Callers match them with errors.Is; the
// handlers map each to one HTTP status.
var (
	ErrInvalidIdentityFormat = errors.New("invalid identity format")
	ErrInvalidSignature      = errors.New("invalid signature")
	ErrSessionExpired        = errors.New("session expired")
	ErrSessionInvalid        = errors.New("session invalid")

	ErrIdentityNotFound    = errors.New("identity not found")
	ErrQuestNotFound       = errors.New("quest not found")
	ErrQuestNotSubmittable = errors.New("quest is completed by wallet verification")
	ErrAnswerIncorrect     = errors.New("answer incorrect")

	ErrAlreadyCheckedInToday = errors.New("already checked in today")

	ErrInvalidDisplayName = errors.New("display name must be 3-15 letters, digits or underscores")
	ErrDisplayNameTaken   = errors.New("display name already taken")

	ErrInvalidAdjustment   = errors.New("adjustment must be non-zero")
	ErrAdjustmentBelowZero = errors.New("adjustment would make xp negative")

	// Transient: safe to retry the whole request.
	ErrOracleUnavailable = errors.New("oracle unavailable")
	ErrStorageConflict   = errors.New("storage conflict")
)
