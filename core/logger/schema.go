package logger

import "strings"

var levelNames = map[string]string{
	"debug":   "DEBUG",
	"info":    "INFO",
	"warn":    "WARN",
	"warning": "WARN",
	"error":   "ERROR",
	"fatal":   "FATAL",
}

var knownStatus = map[string]struct{}{
	"ok": {}, "fail": {}, "skip": {}, "retry": {}, "rate_limited": {}, "cancelled": {}, "noop": {},
}

var knownOutcome = map[string]struct{}{
	"ok": {}, "fail": {}, "cancelled": {}, "rate_limited": {}, "noop": {},
}

func normalizeLevel(level string) string {
	if level == "" {
		return "INFO"
	}
	if mapped, ok := levelNames[strings.ToLower(level)]; ok {
		return mapped
	}
	return strings.ToUpper(level)
}

// normalizeStatus lowercases known statuses and keeps unknown ones verbatim.
func normalizeStatus(status string) string {
	lower := strings.ToLower(strings.TrimSpace(status))
	if _, ok := knownStatus[lower]; ok {
		return lower
	}
	return status
}

func normalizeOutcome(outcome string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(outcome))
	_, ok := knownOutcome[lower]
	return lower, ok
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
	"chat_type",
	"handler",
	"command",
	"step",
	"cb_key",
	"outcome",
	"duration_ms",
	"messages",
	"kb",
	"bus_id",
	"seat_no",
	"seats",
	"gender",
	"booking_id",
	"order_id",
	"amount",
	"location",
	"count",
	"payload",
	"lang",
	"username",
	"mode",
	"listen",
	"public_url",
	"method",
	"path",
	"http_code",
	"db",
	"host",
	"port",
	"err",
	"err_code",
	"cause",
	"retryable",
	"attempts",
	"backoff_ms",
}
