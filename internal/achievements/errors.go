package achievements

import "errors"

var (
	ErrValidation           = errors.New("validation failed")
	ErrDuplicate            = errors.New("achievement already exists")
	ErrNotFound             = errors.New("not found")
	ErrLocked               = errors.New("achievement is locked")
	ErrFormat               = errors.New("malformed import payload")
	ErrConsistency          = errors.New("duplicate achievement ids in store")
	ErrDisabled             = errors.New("player achievements are disabled")
	ErrConfirmationRequired = errors.New("destructive operation requires confirmation")
	ErrForbidden            = errors.New("admin role required")
)
