package database

import (
	"strings"
)

// IsConnectionError checks if a database error is a connection error
// that might be resolved by retrying.
func IsConnectionError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	for _, p := range []string{
		"connection refused",
		"connection reset",
		"broken pipe",
		"i/o timeout",
		"driver: bad connection",
		"invalid connection",
	} {
		if strings.Contains(errStr, p) {
			return true
		}
	}
	return false
}

// IsRetryableError determines if a database error should trigger a retry.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}
	if IsConnectionError(err) {
		return true
	}
	errStr := strings.ToLower(err.Error())
	for _, p := range []string{
		"database is locked",
		"deadlock",
		"lock timeout",
		"too many connections",
	} {
		if strings.Contains(errStr, p) {
			return true
		}
	}
	return false
}
