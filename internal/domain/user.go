package domain

import "time"

// User is a directory entry. Every user is assigned to at most one department.
type User struct {
	ID           string
	FullName     string
	Email        string
	PasswordHash string
	DepartmentID string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
