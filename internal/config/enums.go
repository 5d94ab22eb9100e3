package config

import "strings"

// FailurePolicy decides what an invalid document does to the build.
type FailurePolicy string

const (
	// FailurePolicyFailFast aborts the build on the first invalid document.
	FailurePolicyFailFast FailurePolicy = "fail-fast"
	// FailurePolicySkipInvalid reports invalid documents and builds the rest.
	FailurePolicySkipInvalid FailurePolicy = "skip-invalid"
)

var failurePolicies = map[string]FailurePolicy{
	"fail-fast":    FailurePolicyFailFast,
	"failfast":     FailurePolicyFailFast,
	"skip-invalid": FailurePolicySkipInvalid,
	"skip":         FailurePolicySkipInvalid,
}

// NormalizeFailurePolicy maps user spellings onto a FailurePolicy; unknown input yields "".
func NormalizeFailurePolicy(raw string) FailurePolicy {
	return failurePolicies[normalizeKey(raw)]
}

// LogLevel enumerates supported logging levels.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
)

var logLevels = map[string]LogLevel{
	"debug":   LogLevelDebug,
	"info":    LogLevelInfo,
	"warn":    LogLevelWarn,
	"warning": LogLevelWarn,
	"error":   LogLevelError,
}

// NormalizeLogLevel maps user spellings onto a LogLevel; unknown input yields "".
func NormalizeLogLevel(raw string) LogLevel {
	return logLevels[normalizeKey(raw)]
}

func normalizeKey(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	return strings.ReplaceAll(key, "_", "-")
}
