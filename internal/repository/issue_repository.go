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

// IssueFilter narrows issue listings. Empty fields are ignored.
type IssueFilter struct {
	OwnerUserID  string
	DepartmentID string
	Complete     *bool
}

// IssueRepository persists issues.
type IssueRepository interface {
	Create(ctx context.Context, issue *domain.Issue) error
	GetByID(ctx context.Context, id string) (*domain.Issue, error)
	List(ctx context.Context, filter IssueFilter) ([]domain.Issue, error)
	SetAcknowledged(ctx context.Context, id string, at time.Time) (*domain.Issue, error)
	// MarkComplete flips complete to true. It returns pgx.ErrNoRows when the
	// issue is missing or already complete.
	MarkComplete(ctx context.Context, id string, at time.Time) (*domain.Issue, error)
}

type issueRepository struct {
	pool *pgxpool.Pool
}

// NewIssueRepository constructs a pgx-backed IssueRepository.
func NewIssueRepository(pool *pgxpool.Pool) IssueRepository {
	return &issueRepository{pool: pool}
}

const issueColumns = `id, title, description, address, owner_user_id, required_department_id, complete, acknowledged_at, created_at, updated_at`

func (r *issueRepository) Create(ctx context.Context, issue *domain.Issue) error {
	const query = `
        INSERT INTO issues (title, description, address, owner_user_id, required_department_id, complete, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,FALSE,$6,$6)
        RETURNING id, created_at, updated_at`
	return conn(ctx, r.pool).QueryRow(ctx, query,
		issue.Title,
		issue.Description,
		issue.Address,
		issue.OwnerUserID,
		issue.RequiredDepartmentID,
		issue.CreatedAt,
	).Scan(&issue.ID, &issue.CreatedAt, &issue.UpdatedAt)
}

func (r *issueRepository) GetByID(ctx context.Context, id string) (*domain.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM issues WHERE id=$1`
	return scanIssue(conn(ctx, r.pool).QueryRow(ctx, query, id))
}

func (r *issueRepository) List(ctx context.Context, filter IssueFilter) ([]domain.Issue, error) {
	var (
		clauses []string
		args    []any
	)
	if filter.OwnerUserID != "" {
		args = append(args, filter.OwnerUserID)
		clauses = append(clauses, fmt.Sprintf("owner_user_id=$%d", len(args)))
	}
	if filter.DepartmentID != "" {
		args = append(args, filter.DepartmentID)
		clauses = append(clauses, fmt.Sprintf("required_department_id=$%d", len(args)))
	}
	if filter.Complete != nil {
		args = append(args, *filter.Complete)
		clauses = append(clauses, fmt.Sprintf("complete=$%d", len(args)))
	}

	query := `SELECT ` + issueColumns + ` FROM issues`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY created_at, id`

	rows, err := conn(ctx, r.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *issue)
	}
	return result, rows.Err()
}

func (r *issueRepository) SetAcknowledged(ctx context.Context, id string, at time.Time) (*domain.Issue, error) {
	query := `
        UPDATE issues SET acknowledged_at=$1, updated_at=$1
        WHERE id=$2 AND complete=FALSE
        RETURNING ` + issueColumns
	return scanIssue(conn(ctx, r.pool).QueryRow(ctx, query, at, id))
}

func (r *issueRepository) MarkComplete(ctx context.Context, id string, at time.Time) (*domain.Issue, error) {
	query := `
        UPDATE issues SET complete=TRUE, updated_at=$1
        WHERE id=$2 AND complete=FALSE
        RETURNING ` + issueColumns
	return scanIssue(conn(ctx, r.pool).QueryRow(ctx, query, at, id))
}

func scanIssue(row pgx.Row) (*domain.Issue, error) {
	var issue domain.Issue
	if err := row.Scan(
		&issue.ID,
		&issue.Title,
		&issue.Description,
		&issue.Address,
		&issue.OwnerUserID,
		&issue.RequiredDepartmentID,
		&issue.Complete,
		&issue.AcknowledgedAt,
		&issue.CreatedAt,
		&issue.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &issue, nil
}
