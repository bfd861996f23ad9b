package memory

import (
	"context"
	"sort"
	"time"

	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/repository"
)

type licenseRepo struct{ s *Store }

func (r *licenseRepo) Create(ctx context.Context, license *domain.License) error {
	defer r.s.guard(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	license.ID = r.s.newID()
	license.NotificationSent = false
	license.CreatedAt = stamp(license.CreatedAt)
	license.UpdatedAt = license.CreatedAt
	r.s.data.licenses[license.ID] = *license
	return nil
}

func (r *licenseRepo) Update(ctx context.Context, license *domain.License) error {
	defer r.s.guard(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	current, ok := r.s.data.licenses[license.ID]
	if !ok {
		return errNoRows
	}
	current.FileName = license.FileName
	current.FileBlobRef = license.FileBlobRef
	current.MimeType = license.MimeType
	current.ExpiryDate = license.ExpiryDate
	current.DepartmentID = license.DepartmentID
	current.UpdatedAt = stamp(license.UpdatedAt)
	r.s.data.licenses[license.ID] = current
	license.UpdatedAt = current.UpdatedAt
	return nil
}

func (r *licenseRepo) Delete(ctx context.Context, id string) error {
	defer r.s.guard(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.data.licenses[id]; !ok {
		return errNoRows
	}
	delete(r.s.data.licenses, id)
	return nil
}

func (r *licenseRepo) GetByID(ctx context.Context, id string) (*domain.License, error) {
	defer r.s.guard(ctx)()
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	license, ok := r.s.data.licenses[id]
	if !ok {
		return nil, errNoRows
	}
	return &license, nil
}

func (r *licenseRepo) List(ctx context.Context, filter repository.LicenseFilter) ([]domain.License, error) {
	defer r.s.guard(ctx)()
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var result []domain.License
	for _, license := range r.s.data.licenses {
		if filter.Matches(license) {
			result = append(result, license)
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if !result[i].ExpiryDate.Equal(result[j].ExpiryDate) {
			return result[i].ExpiryDate.Before(result[j].ExpiryDate)
		}
		return r.s.data.seq[result[i].ID] < r.s.data.seq[result[j].ID]
	})
	return result, nil
}

func (r *licenseRepo) Count(ctx context.Context, filter repository.LicenseFilter) (int, error) {
	licenses, err := r.List(ctx, filter)
	return len(licenses), err
}

func (r *licenseRepo) StatsByDepartment(ctx context.Context, from, to time.Time) ([]domain.DepartmentLicenseStats, error) {
	defer r.s.guard(ctx)()
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	byDept := map[string]*domain.DepartmentLicenseStats{}
	for _, license := range r.s.data.licenses {
		stat, ok := byDept[license.DepartmentID]
		if !ok {
			stat = &domain.DepartmentLicenseStats{DepartmentID: license.DepartmentID}
			byDept[license.DepartmentID] = stat
		}
		stat.Count++
		if !license.ExpiryDate.Before(from) && !license.ExpiryDate.After(to) {
			stat.Expiring++
		}
	}
	result := make([]domain.DepartmentLicenseStats, 0, len(byDept))
	for _, stat := range byDept {
		result = append(result, *stat)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Count != result[j].Count {
			return result[i].Count > result[j].Count
		}
		return result[i].DepartmentID < result[j].DepartmentID
	})
	return result, nil
}

func (r *licenseRepo) MarkNotified(ctx context.Context, ids []string, at time.Time) (int, error) {
	defer r.s.guard(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	marked := 0
	for _, id := range ids {
		license, ok := r.s.data.licenses[id]
		if !ok {
			continue
		}
		license.NotificationSent = true
		license.UpdatedAt = at
		r.s.data.licenses[id] = license
		marked++
	}
	return marked, nil
}

func (r *licenseRepo) SaveBlob(ctx context.Context, ref string, data []byte) error {
	defer r.s.guard(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.data.blobs[ref] = append([]byte(nil), data...)
	return nil
}

func (r *licenseRepo) GetBlob(ctx context.Context, ref string) ([]byte, error) {
	defer r.s.guard(ctx)()
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	data, ok := r.s.data.blobs[ref]
	if !ok {
		return nil, errNoRows
	}
	return append([]byte(nil), data...), nil
}

func (r *licenseRepo) DeleteBlob(ctx context.Context, ref string) error {
	defer r.s.guard(ctx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.data.blobs, ref)
	return nil
}
