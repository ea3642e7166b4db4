package protocol

const (
	// Protocol/transport validation.
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"
	ErrUnknownOp       = "E_UNKNOWN_OP"
	ErrUnavailable     = "E_UNAVAILABLE"

	// Request layer.
	ErrBadRequest   = "E_BAD_REQUEST"
	ErrNoPermission = "E_NO_PERMISSION"
	ErrDisabled     = "E_DISABLED"
	ErrConfirm      = "E_CONFIRM"

	// Achievement state.
	ErrValidation = "E_VALIDATION"
	ErrDuplicate  = "E_DUPLICATE"
	ErrNotFound   = "E_NOT_FOUND"
	ErrLocked     = "E_LOCKED"
	ErrFormat     = "E_FORMAT"
	ErrInternal   = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrProtoBadRequest: {},
	ErrUnknownOp:       {},
	ErrUnavailable:     {},
	ErrBadRequest:      {},
	ErrNoPermission:    {},
	ErrDisabled:        {},
	ErrConfirm:         {},
	ErrValidation:      {},
	ErrDuplicate:       {},
	ErrNotFound:        {},
	ErrLocked:          {},
	ErrFormat:          {},
	ErrInternal:        {},
}

func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}
