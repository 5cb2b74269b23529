package kafka

import (
	"context"
	"strings"

	"github.com/kbukum/datapipe/errors"
)

var connectionPatterns = []string{
	"connection refused",
	"connection reset",
	"broken pipe",
	"i/o timeout",
	"no route to host",
	"network is unreachable",
	"broker not available",
	"leader not available",
	"not leader for partition",
	"connection closed",
	"dial tcp",
	"network exception",
}

var transientPatterns = []string{
	"temporary",
	"request timed out",
	"not enough replicas",
}

func containsAny(err error, patterns []string) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, p := range patterns {
		if strings.Contains(msg, p) {
			return true
		}
	}
	return false
}

// IsConnectionError checks if a Kafka error is a connection-level error.
func IsConnectionError(err error) bool {
	return containsAny(err, connectionPatterns)
}

// IsRetryableError reports whether re-opening the partition may cure err.
// Record errors and cancellation are never retryable.
func IsRetryableError(err error) bool {
	if err == nil || errors.IsRecord(err) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return IsConnectionError(err) || containsAny(err, transientPatterns)
}
