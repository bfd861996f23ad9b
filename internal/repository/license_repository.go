package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/issue-tracker/internal/domain"
)

// LicenseFilter narrows license queries. Zero values are ignored.
type LicenseFilter struct {
	DepartmentID     string
	ExpiryFrom       time.Time // expiry_date >= ExpiryFrom
	ExpiryTo         time.Time // expiry_date <= ExpiryTo
	ExpiredBefore    time.Time // expiry_date < ExpiredBefore
	NotificationSent *bool
}

// LicenseRepository persists licenses and their document blobs.
type LicenseRepository interface {
	Create(ctx context.Context, license *domain.License) error
	Update(ctx context.Context, license *domain.License) error
	Delete(ctx context.Context, id string) error
	GetByID(ctx context.Context, id string) (*domain.License, error)
	// List returns matching licenses sorted by expiry date ascending.
	List(ctx context.Context, filter LicenseFilter) ([]domain.License, error)
	Count(ctx context.Context, filter LicenseFilter) (int, error)
	// StatsByDepartment counts licenses per department, with Expiring counting
	// expiry dates inside [from, to]. Sorted by count descending.
	StatsByDepartment(ctx context.Context, from, to time.Time) ([]domain.DepartmentLicenseStats, error)
	MarkNotified(ctx context.Context, ids []string, at time.Time) (int, error)
	SaveBlob(ctx context.Context, ref string, data []byte) error
	GetBlob(ctx context.Context, ref string) ([]byte, error)
	DeleteBlob(ctx context.Context, ref string) error
}

type licenseRepository struct {
	pool *pgxpool.Pool
}

// NewLicenseRepository constructs a pgx-backed LicenseRepository.
func NewLicenseRepository(pool *pgxpool.Pool) LicenseRepository {
	return &licenseRepository{pool: pool}
}

const licenseColumns = `id, file_name, file_blob_ref, mime_type, expiry_date, department_id, uploaded_by_user_id, notification_sent, created_at, updated_at`

func (r *licenseRepository) Create(ctx context.Context, license *domain.License) error {
	const query = `
        INSERT INTO licenses (file_name, file_blob_ref, mime_type, expiry_date, department_id, uploaded_by_user_id, notification_sent, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,FALSE,$7,$7)
        RETURNING id, created_at, updated_at`
	return conn(ctx, r.pool).QueryRow(ctx, query,
		license.FileName,
		license.FileBlobRef,
		license.MimeType,
		license.ExpiryDate,
		license.DepartmentID,
		license.UploadedByUserID,
		license.CreatedAt,
	).Scan(&license.ID, &license.CreatedAt, &license.UpdatedAt)
}

func (r *licenseRepository) Update(ctx context.Context, license *domain.License) error {
	const query = `
        UPDATE licenses
        SET file_name=$1, file_blob_ref=$2, mime_type=$3, expiry_date=$4, department_id=$5, updated_at=$6
        WHERE id=$7
        RETURNING updated_at`
	return conn(ctx, r.pool).QueryRow(ctx, query,
		license.FileName,
		license.FileBlobRef,
		license.MimeType,
		license.ExpiryDate,
		license.DepartmentID,
		license.UpdatedAt,
		license.ID,
	).Scan(&license.UpdatedAt)
}

func (r *licenseRepository) Delete(ctx context.Context, id string) error {
	cmd, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM licenses WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *licenseRepository) GetByID(ctx context.Context, id string) (*domain.License, error) {
	query := `SELECT ` + licenseColumns + ` FROM licenses WHERE id=$1`
	return scanLicense(conn(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *licenseRepository) List(ctx context.Context, filter LicenseFilter) ([]domain.License, error) {
	where, args := filter.where()
	query := `SELECT ` + licenseColumns + ` FROM licenses` + where + ` ORDER BY expiry_date, id`
	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.License
	for rows.Next() {
		license, err := scanLicense(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *license)
	}
	return result, rows.Err()
}

func (r *licenseRepository) Count(ctx context.Context, filter LicenseFilter) (int, error) {
	where, args := filter.where()
	var count int
	err := conn(ctx, r.pool).QueryRow(ctx, `SELECT COUNT(*) FROM licenses`+where, args...).Scan(&count)
	return count, err
}

func (r *licenseRepository) StatsByDepartment(ctx context.Context, from, to time.Time) ([]domain.DepartmentLicenseStats, error) {
	const query = `
        SELECT department_id,
               COUNT(*) AS count,
               COUNT(*) FILTER (WHERE expiry_date >= $1 AND expiry_date <= $2) AS expiring
        FROM licenses
        GROUP BY department_id
        ORDER BY count DESC, department_id`
	rows, err := conn(ctx, r.pool).Query(ctx, query, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.DepartmentLicenseStats
	for rows.Next() {
		var stat domain.DepartmentLicenseStats
		if err := rows.Scan(&stat.DepartmentID, &stat.Count, &stat.Expiring); err != nil {
			return nil, err
		}
		result = append(result, stat)
	}
	return result, rows.Err()
}

func (r *licenseRepository) MarkNotified(ctx context.Context, ids []string, at time.Time) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	const query = `UPDATE licenses SET notification_sent=TRUE, updated_at=$1 WHERE id = ANY($2::uuid[])`
	cmd, err := conn(ctx, r.pool).Exec(ctx, query, at, ids)
	if err != nil {
		return 0, err
	}
	return int(cmd.RowsAffected()), nil
}

func (r *licenseRepository) SaveBlob(ctx context.Context, ref string, data []byte) error {
	const query = `INSERT INTO license_blobs (ref, data) VALUES ($1,$2)`
	_, err := conn(ctx, r.pool).Exec(ctx, query, ref, data)
	return err
}

func (r *licenseRepository) GetBlob(ctx context.Context, ref string) ([]byte, error) {
	var data []byte
	err := conn(ctx, r.pool).QueryRow(ctx, `SELECT data FROM license_blobs WHERE ref=$1`, ref).Scan(&data)
	return data, err
}

func (r *licenseRepository) DeleteBlob(ctx context.Context, ref string) error {
	_, err := conn(ctx, r.pool).Exec(ctx, `DELETE FROM license_blobs WHERE ref=$1`, ref)
	return err
}

func (f LicenseFilter) where() (string, []any) {
	var (
		clauses []string
		args    []any
	)
	add := func(clause string, arg any) {
		args = append(args, arg)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}
	if f.DepartmentID != "" {
		add("department_id=$%d", f.DepartmentID)
	}
	if !f.ExpiryFrom.IsZero() {
		add("expiry_date >= $%d", f.ExpiryFrom)
	}
	if !f.ExpiryTo.IsZero() {
		add("expiry_date <= $%d", f.ExpiryTo)
	}
	if !f.ExpiredBefore.IsZero() {
		add("expiry_date < $%d", f.ExpiredBefore)
	}
	if f.NotificationSent != nil {
		add("notification_sent=$%d", *f.NotificationSent)
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// Matches reports whether license satisfies the filter. It mirrors where()
// for stores that evaluate filters in process.
func (f LicenseFilter) Matches(license domain.License) bool {
	if f.DepartmentID != "" && license.DepartmentID != f.DepartmentID {
		return false
	}
	if !f.ExpiryFrom.IsZero() && license.ExpiryDate.Before(f.ExpiryFrom) {
		return false
	}
	if !f.ExpiryTo.IsZero() && license.ExpiryDate.After(f.ExpiryTo) {
		return false
	}
	if !f.ExpiredBefore.IsZero() && !license.ExpiryDate.Before(f.ExpiredBefore) {
		return false
	}
	if f.NotificationSent != nil && license.NotificationSent != *f.NotificationSent {
		return false
	}
	return true
}

func scanLicense(row pgx.Row) (*domain.License, error) {
	var license domain.License
	if err := row.Scan(
		&license.ID,
		&license.FileName,
		&license.FileBlobRef,
		&license.MimeType,
		&license.ExpiryDate,
		&license.DepartmentID,
		&license.UploadedByUserID,
		&license.NotificationSent,
		&license.CreatedAt,
		&license.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &license, nil
}
