package cerr

// Code classifies an error for callers and for exit-code mapping.
type Code int

const (
	OK               = Code(0)
	Canceled         = Code(1)
	Unknown          = Code(2)
	Validation       = Code(3)
	InferenceTimeout = Code(4)
	NotFound         = Code(5)
	AlreadyExists    = Code(6)
	Blocked          = Code(7)
	FocusViolation   = Code(8)
	StorageConflict  = Code(9)
	PartialParse     = Code(10)
	Internal         = Code(11)
	Unavailable      = Code(12)
)

var codeNames = map[Code]string{
	OK:               "ok",
	Canceled:         "canceled",
	Unknown:          "unknown",
	Validation:       "validation",
	InferenceTimeout: "inference_timeout",
	NotFound:         "not_found",
	AlreadyExists:    "already_exists",
	Blocked:          "blocked",
	FocusViolation:   "focus_violation",
	StorageConflict:  "storage_conflict",
	PartialParse:     "partial_parse",
	Internal:         "internal",
	Unavailable:      "unavailable",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return "unknown"
}

// ExitCode maps an error code to a process exit code. Policy decisions
// (blocked commands, focus violations) exit with 2 so callers can tell a
// deliberate denial apart from an operational failure.
func (c Code) ExitCode() int {
	switch c {
	case OK, PartialParse:
		return 0
	case Blocked, FocusViolation:
		return 2
	default:
		return 1
	}
}

// severe reports whether a stack trace should be captured at creation time.
func (c Code) severe() bool {
	switch c {
	case Unknown, Internal, Unavailable, StorageConflict:
		return true
	default:
		return false
	}
}
