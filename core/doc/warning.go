package doc

import "fmt"

// WarningCode classifies a recoverable conversion condition.
type WarningCode string

// Warning codes.
const (
	WarnMissingKey       WarningCode = "missing-citation-key"
	WarnBibliographyPath WarningCode = "bibliography-path"
	WarnStyleUnavailable WarningCode = "style-unavailable"
	WarnLossyConstruct   WarningCode = "lossy-construct"
	WarnDuplicateEntry   WarningCode = "duplicate-entry"
	WarnUnsupportedMath  WarningCode = "unsupported-math"
)

// Warning is a recoverable condition reported beside a successful result.
// Warnings are collected, never thrown; fatal conditions use core/errors.
type Warning struct {
	Code    WarningCode
	Message string
}

// Warningf builds a Warning with a formatted message.
func Warningf(code WarningCode, format string, args ...interface{}) Warning {
	return Warning{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Code, w.Message)
}
