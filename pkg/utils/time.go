package utils

import "time"

// UnixToTime converts a Unix timestamp (seconds) to time.Time.
func UnixToTime(timestamp int64) time.Time {
	return time.Unix(timestamp, 0)
}

// FormatTimestamp formats a Unix timestamp as an RFC3339 string.
func FormatTimestamp(timestamp int64) string {
	return time.Unix(timestamp, 0).Format(time.RFC3339)
}
