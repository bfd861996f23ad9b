package memory

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/issue-tracker/internal/domain"
)

type departmentRepo struct{ s *Store }

func (r *departmentRepo) Create(ctx context.Context, dept *domain.Department) error {
	defer r.s.guard(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	dept.ID = r.s.newID()
	dept.CreatedAt = stamp(dept.CreatedAt)
	dept.UpdatedAt = dept.CreatedAt
	r.s.data.departments[dept.ID] = *dept
	return nil
}

func (r *departmentRepo) Update(ctx context.Context, dept *domain.Department) error {
	defer r.s.guard(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.data.departments[dept.ID]
	if !ok {
		return errNoRows
	}
	current.Name = dept.Name
	current.Type = dept.Type
	current.UpdatedAt = stamp(dept.UpdatedAt)
	r.s.data.departments[dept.ID] = current
	*dept = current
	return nil
}

func (r *departmentRepo) Delete(ctx context.Context, id string) error {
	defer r.s.guard(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.departments[id]; !ok {
		return errNoRows
	}
	delete(r.s.data.departments, id)
	return nil
}

func (r *departmentRepo) GetByID(ctx context.Context, id string) (*domain.Department, error) {
	defer r.s.guard(ctx)()
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	dept, ok := r.s.data.departments[id]
	if !ok {
		return nil, errNoRows
	}
	return &dept, nil
}

func (r *departmentRepo) GetByNameFold(ctx context.Context, name string) (*domain.Department, error) {
	defer r.s.guard(ctx)()
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, dept := range r.s.data.departments {
		if strings.EqualFold(dept.Name, name) {
			return &dept, nil
		}
	}
	return nil, errNoRows
}

func (r *departmentRepo) List(ctx context.Context) ([]domain.Department, error) {
	defer r.s.guard(ctx)()
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	result := make([]domain.Department, 0, len(r.s.data.departments))
	for _, dept := range r.s.data.departments {
		result = append(result, dept)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result, nil
}

type userRepo struct{ s *Store }

func (r *userRepo) Create(ctx context.Context, user *domain.User) error {
	defer r.s.guard(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	user.ID = r.s.newID()
	user.CreatedAt = stamp(user.CreatedAt)
	user.UpdatedAt = user.CreatedAt
	r.s.data.users[user.ID] = *user
	return nil
}

func (r *userRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	defer r.s.guard(ctx)()
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	user, ok := r.s.data.users[id]
	if !ok {
		return nil, errNoRows
	}
	return &user, nil
}

func (r *userRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	defer r.s.guard(ctx)()
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, user := range r.s.data.users {
		if strings.EqualFold(user.Email, email) {
			return &user, nil
		}
	}
	return nil, errNoRows
}

func (r *userRepo) FindAnyByDepartment(ctx context.Context, departmentID string) (*domain.User, error) {
	users, err := r.ListByDepartment(ctx, departmentID)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, errNoRows
	}
	return &users[0], nil
}

func (r *userRepo) ListByDepartment(ctx context.Context, departmentID string) ([]domain.User, error) {
	defer r.s.guard(ctx)()
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.User
	for _, user := range r.s.data.users {
		if departmentID != "" && user.DepartmentID == departmentID {
			result = append(result, user)
		}
	}
	sortByCreated(r.s, result, func(u domain.User) (string, time.Time) { return u.ID, u.CreatedAt })
	return result, nil
}
