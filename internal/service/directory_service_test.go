package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/issue-tracker/internal/config"
	"github.com/spec-kit/issue-tracker/internal/domain"
	"github.com/spec-kit/issue-tracker/internal/repository/memory"
	apperrors "github.com/spec-kit/issue-tracker/pkg/util/errorutil"
)

func TestDepartmentServiceCRUD(t *testing.T) {
	ctx := context.Background()
	svc := NewDepartmentService(memory.NewStore().Departments())

	plumbing, err := svc.Create(ctx, DepartmentInput{Name: " Plumbing "})
	require.NoError(t, err)
	assert.Equal(t, "Plumbing", plumbing.Name)
	assert.Equal(t, domain.DepartmentTypeRegular, plumbing.Type)

	_, err = svc.Create(ctx, DepartmentInput{Name: "PLUMBING"})
	requireCode(t, err, apperrors.CodeConflict)

	_, err = svc.Create(ctx, DepartmentInput{Name: "HVAC", Type: "Outsourced"})
	requireCode(t, err, apperrors.CodeValidation)

	hvac, err := svc.Create(ctx, DepartmentInput{Name: "HVAC", Type: domain.DepartmentTypeMaintenance})
	require.NoError(t, err)

	_, err = svc.Update(ctx, hvac.ID, DepartmentInput{Name: "plumbing"})
	requireCode(t, err, apperrors.CodeConflict)

	renamed, err := svc.Update(ctx, plumbing.ID, DepartmentInput{Name: "plumbing", Type: domain.DepartmentTypeMaintenance})
	require.NoError(t, err)
	assert.Equal(t, "plumbing", renamed.Name)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "HVAC", list[0].Name)

	require.NoError(t, svc.Delete(ctx, hvac.ID))
	requireCode(t, svc.Delete(ctx, hvac.ID), apperrors.CodeNotFound)
	requireCode(t, svc.Delete(ctx, "hvac"), apperrors.CodeNotFound)
}

func TestRoutingServiceDirectory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	dept := f.department(t, "Plumbing")
	first := f.user(t, "p1", dept.ID)
	f.user(t, "p2", dept.ID)
	f.user(t, "loner", "")

	assignee, err := f.routing.ResolveAssignee(ctx, dept.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, assignee.ID)

	recipients, err := f.routing.Recipients(ctx, dept.ID)
	require.NoError(t, err)
	assert.Len(t, recipients, 2)

	name, err := f.routing.DepartmentName(ctx, dept.ID)
	require.NoError(t, err)
	assert.Equal(t, "Plumbing", name)

	missing := uuid.NewString()
	name, err = f.routing.DepartmentName(ctx, missing)
	require.NoError(t, err)
	assert.Equal(t, missing, name)
}

func TestAuthServiceRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	dept := domain.Department{Name: "Plumbing", Type: domain.DepartmentTypeRegular}
	require.NoError(t, store.Departments().Create(ctx, &dept))
	svc := NewAuthService(config.AuthConfig{JWTSecret: "test", AccessTokenTTLMinutes: 5, BcryptCost: 4}, AuthDependencies{
		UserRepo:       store.Users(),
		DepartmentRepo: store.Departments(),
	})

	user, err := svc.Register(ctx, RegisterInput{FullName: "Asha", Email: "Asha@Example.com", Password: "correct-horse", DepartmentID: dept.ID})
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", user.Email)
	assert.NotEqual(t, "correct-horse", user.PasswordHash)

	_, err = svc.Register(ctx, RegisterInput{FullName: "Dup", Email: "asha@example.com", Password: "whatever1"})
	requireCode(t, err, apperrors.CodeConflict)

	_, err = svc.Register(ctx, RegisterInput{FullName: "Ghost", Email: "ghost@example.com", Password: "whatever1", DepartmentID: uuid.NewString()})
	requireCode(t, err, apperrors.CodeInvalidDepartment)

	session, err := svc.Login(ctx, "ASHA@example.com", "correct-horse")
	require.NoError(t, err)
	claims, err := svc.TokenManager().ParseToken(session.Token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.Subject)
	assert.Equal(t, dept.ID, claims.DepartmentID)

	_, err = svc.Login(ctx, "asha@example.com", "wrong")
	requireCode(t, err, apperrors.CodeUnauthorized)
	_, err = svc.Login(ctx, "nobody@example.com", "correct-horse")
	requireCode(t, err, apperrors.CodeUnauthorized)
}
