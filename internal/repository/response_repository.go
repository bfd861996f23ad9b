package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/spec-kit/issue-tracker/internal/domain"
)

// ResponseRepository persists department responses to issues.
type ResponseRepository interface {
	Create(ctx context.Context, response *domain.Response) error
	// FindOpenByIssue returns the oldest incomplete response of an issue.
	FindOpenByIssue(ctx context.Context, issueID string) (*domain.Response, error)
	// FindByIssue returns the oldest response of an issue regardless of state.
	FindByIssue(ctx context.Context, issueID string) (*domain.Response, error)
	ListByIssue(ctx context.Context, issueID string) ([]domain.Response, error)
	ListByIssueIDs(ctx context.Context, issueIDs []string) ([]domain.Response, error)
	Update(ctx context.Context, response *domain.Response) error
	SetAcknowledgedByIssue(ctx context.Context, issueID string, at time.Time) error
	MarkCompleteByIssue(ctx context.Context, issueID string, at time.Time) error
}

type responseRepository struct {
	pool *pgxpool.Pool
}

// NewResponseRepository constructs a pgx-backed ResponseRepository.
func NewResponseRepository(pool *pgxpool.Pool) ResponseRepository {
	return &responseRepository{pool: pool}
}

const responseColumns = `id, issue_id, description, requirements, action_taken, complete, acknowledged_at, created_at, updated_at`

func (r *responseRepository) Create(ctx context.Context, response *domain.Response) error {
	const query = `
        INSERT INTO responses (issue_id, description, requirements, action_taken, complete, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$6)
        RETURNING id, created_at, updated_at`
	return conn(ctx, r.pool).QueryRow(ctx, query,
		response.IssueID,
		response.Description,
		response.Requirements,
		response.ActionTaken,
		response.Complete,
		response.CreatedAt,
	).Scan(&response.ID, &response.CreatedAt, &response.UpdatedAt)
}

func (r *responseRepository) FindOpenByIssue(ctx context.Context, issueID string) (*domain.Response, error) {
	query := `SELECT ` + responseColumns + ` FROM responses
        WHERE issue_id=$1 AND complete=FALSE ORDER BY created_at, id LIMIT 1`
	return scanResponse(conn(ctx, r.pool).QueryRow(ctx, query, issueID))
}

func (r *responseRepository) FindByIssue(ctx context.Context, issueID string) (*domain.Response, error) {
	query := `SELECT ` + responseColumns + ` FROM responses
        WHERE issue_id=$1 ORDER BY created_at, id LIMIT 1`
	return scanResponse(conn(ctx, r.pool).QueryRow(ctx, query, issueID))
}

func (r *responseRepository) ListByIssue(ctx context.Context, issueID string) ([]domain.Response, error) {
	query := `SELECT ` + responseColumns + ` FROM responses WHERE issue_id=$1 ORDER BY created_at, id`
	return r.list(ctx, query, issueID)
}

func (r *responseRepository) ListByIssueIDs(ctx context.Context, issueIDs []string) ([]domain.Response, error) {
	if len(issueIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + responseColumns + ` FROM responses WHERE issue_id = ANY($1::uuid[]) ORDER BY created_at, id`
	return r.list(ctx, query, issueIDs)
}

func (r *responseRepository) list(ctx context.Context, query string, arg any) ([]domain.Response, error) {
	rows, err := conn(ctx, r.pool).Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Response
	for rows.Next() {
		response, err := scanResponse(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *response)
	}
	return result, rows.Err()
}

func (r *responseRepository) Update(ctx context.Context, response *domain.Response) error {
	const query = `
        UPDATE responses
        SET description=$1, requirements=$2, action_taken=$3, complete=$4, updated_at=$5
        WHERE id=$6
        RETURNING updated_at`
	return conn(ctx, r.pool).QueryRow(ctx, query,
		response.Description,
		response.Requirements,
		response.ActionTaken,
		response.Complete,
		response.UpdatedAt,
		response.ID,
	).Scan(&response.UpdatedAt)
}

func (r *responseRepository) SetAcknowledgedByIssue(ctx context.Context, issueID string, at time.Time) error {
	const query = `UPDATE responses SET acknowledged_at=$1, updated_at=$1 WHERE issue_id=$2`
	_, err := conn(ctx, r.pool).Exec(ctx, query, at, issueID)
	return err
}

func (r *responseRepository) MarkCompleteByIssue(ctx context.Context, issueID string, at time.Time) error {
	const query = `UPDATE responses SET complete=TRUE, updated_at=$1 WHERE issue_id=$2 AND complete=FALSE`
	_, err := conn(ctx, r.pool).Exec(ctx, query, at, issueID)
	return err
}

func scanResponse(row pgx.Row) (*domain.Response, error) {
	var response domain.Response
	if err := row.Scan(
		&response.ID,
		&response.IssueID,
		&response.Description,
		&response.Requirements,
		&response.ActionTaken,
		&response.Complete,
		&response.AcknowledgedAt,
		&response.CreatedAt,
		&response.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &response, nil
}
