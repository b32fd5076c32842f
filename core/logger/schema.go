package logger

import "strings"

const (
	// LevelDebug represents the debug severity level name.
	LevelDebug = "DEBUG"
	// LevelInfo represents the info severity level name.
	LevelInfo = "INFO"
	// LevelWarn represents the warning severity level name.
	LevelWarn = "WARN"
	// LevelError represents the error severity level name.
	LevelError = "ERROR"
)

var allowedLevels = map[string]string{
	"debug":   LevelDebug,
	"info":    LevelInfo,
	"warn":    LevelWarn,
	"warning": LevelWarn,
	"error":   LevelError,
}

var allowedStatus = map[string]struct{}{
	"ok":           {},
	"fail":         {},
	"skip":         {},
	"retry":        {},
	"rate_limited": {},
	"cancelled":    {},
}

var allowedOutcome = map[string]struct{}{
	"ok":           {},
	"fail":         {},
	"invalid":      {},
	"cancelled":    {},
	"rate_limited": {},
}

var allowedPhase = map[string]struct{}{
	"idle":      {},
	"active":    {},
	"completed": {},
	"aborted":   {},
}

func normalizeLevel(level string) string {
	if level == "" {
		return LevelInfo
	}
	if mapped, ok := allowedLevels[strings.ToLower(level)]; ok {
		return mapped
	}
	return strings.ToUpper(level)
}

func normalizeEnum(raw string, allowed map[string]struct{}) (string, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return "", false
	}
	_, ok := allowed[v]
	return v, ok
}

func normalizeStatus(status string) (string, bool) {
	return normalizeEnum(status, allowedStatus)
}

func normalizeOutcome(outcome string) (string, bool) {
	return normalizeEnum(outcome, allowedOutcome)
}

func normalizePhase(phase string) (string, bool) {
	return normalizeEnum(phase, allowedPhase)
}

var defaultKeyOrder = []string{
	"ts",
	"level",
	"component",
	"event",
	"status",
	"rid",
	"rid_full",
	"ts_unix_nano",
	"update_id",
	"user_id",
	"chat_id",
	"handler",
	"route",
	"command",
	"step",
	"phase",
	"outcome",
	"duration_ms",
	"count",
	"queued",
	"mode",
	"listen",
	"public_url",
	"method",
	"path",
	"http_code",
	"driver",
	"db",
	"host",
	"port",
	"err",
	"err_code",
	"cause",
	"attempts",
	"backoff_ms",
}
