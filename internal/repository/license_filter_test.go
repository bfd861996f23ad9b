package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/spec-kit/issue-tracker/internal/domain"
)

func TestLicenseFilterWhere(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	sent := false

	where, args := LicenseFilter{}.where()
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = LicenseFilter{
		DepartmentID:     "d1",
		ExpiryFrom:       now,
		ExpiryTo:         now.Add(time.Hour),
		NotificationSent: &sent,
	}.where()
	assert.Equal(t, " WHERE department_id=$1 AND expiry_date >= $2 AND expiry_date <= $3 AND notification_sent=$4", where)
	assert.Equal(t, []any{"d1", now, now.Add(time.Hour), false}, args)

	where, _ = LicenseFilter{ExpiredBefore: now}.where()
	assert.Equal(t, " WHERE expiry_date < $1", where)
}

func TestLicenseFilterMatchesBoundaries(t *testing.T) {
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	end := now.Add(15 * 24 * time.Hour)
	window := LicenseFilter{ExpiryFrom: now, ExpiryTo: end}

	assert.True(t, window.Matches(domain.License{ExpiryDate: now}))
	assert.True(t, window.Matches(domain.License{ExpiryDate: end}))
	assert.False(t, window.Matches(domain.License{ExpiryDate: end.Add(time.Nanosecond)}))
	assert.False(t, window.Matches(domain.License{ExpiryDate: now.Add(-time.Nanosecond)}))

	expired := LicenseFilter{ExpiredBefore: now}
	assert.False(t, expired.Matches(domain.License{ExpiryDate: now}))
	assert.True(t, expired.Matches(domain.License{ExpiryDate: now.Add(-time.Second)}))
}
