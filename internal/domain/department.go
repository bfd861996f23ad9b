package domain

import "time"

// DepartmentType classifies departments.
type DepartmentType string

const (
	DepartmentTypeMaintenance DepartmentType = "Maintenance"
	DepartmentTypeRegular     DepartmentType = "Regular"
)

// Valid reports whether t is a known department type.
func (t DepartmentType) Valid() bool {
	return t == DepartmentTypeMaintenance || t == DepartmentTypeRegular
}

// Department represents an organizational unit that owns an issue queue and staff.
type Department struct {
	ID        string
	Name      string
	Type      DepartmentType
	CreatedAt time.Time
	UpdatedAt time.Time
}
