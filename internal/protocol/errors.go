package protocol

// Result codes. Every failed RESULT carries exactly one of these.
const (
	ErrProtoBadRequest = "E_PROTO_BAD_REQUEST"

	ErrBadRequest    = "E_BAD_REQUEST"
	ErrUnknownEvent  = "E_UNKNOWN_EVENT"
	ErrNotFound      = "E_NOT_FOUND"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrNoSelection   = "E_NO_SELECTION"
	ErrNotStarted    = "E_NOT_STARTED"
	ErrRateLimit     = "E_RATE_LIMIT"
	ErrInternal      = "E_INTERNAL"
)

var codeText = map[string]string{
	ErrProtoBadRequest: "malformed message",
	ErrBadRequest:      "bad request",
	ErrUnknownEvent:    "unknown gui event",
	ErrNotFound:        "not found",
	ErrInvalidTarget:   "invalid build target",
	ErrNoSelection:     "no module selected",
	ErrNotStarted:      "game not started",
	ErrRateLimit:       "too many commands",
	ErrInternal:        "internal error",
}

// IsKnownCode reports whether code may appear in a RESULT; the empty code of
// a successful result counts as known.
func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := codeText[code]
	return ok
}

// CodeText is the default human-readable message for code.
func CodeText(code string) string {
	if s, ok := codeText[code]; ok {
		return s
	}
	return "unknown error"
}

// Fail builds a failed result whose message is the default text of code.
func Fail(reqID, cmd, code string) ResultMsg {
	return ErrorResult(reqID, cmd, code, CodeText(code))
}
