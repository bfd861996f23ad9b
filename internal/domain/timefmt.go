package domain

import "time"

// Layouts used by existing clients. Timestamps are not ISO-8601.
const (
	TimestampLayout = "02/01/2006 15:04:05"
	DateLayout      = "02/01/2006"
	ISODateLayout   = "2006-01-02"
)

// FormatTimestamp renders t as DD/MM/YYYY HH:MM:SS in local time.
func FormatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(TimestampLayout)
}

// FormatOptionalTimestamp renders nil as an empty string.
func FormatOptionalTimestamp(t *time.Time) string {
	if t == nil {
		return ""
	}
	return FormatTimestamp(*t)
}
