package users

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRepo is an in-memory Repository.
type fakeRepo struct {
	users map[uuid.UUID]*User
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{users: make(map[uuid.UUID]*User)}
}

func (f *fakeRepo) Create(_ context.Context, user *User) error {
	cp := *user
	f.users[user.ID] = &cp
	return nil
}

func (f *fakeRepo) GetByID(_ context.Context, id uuid.UUID) (*User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, nil
	}
	cp := *user
	return &cp, nil
}

func (f *fakeRepo) GetByEmail(_ context.Context, email string) (*User, error) {
	for _, user := range f.users {
		if user.Email == email {
			cp := *user
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeRepo) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	user, err := f.GetByEmail(ctx, email)
	return user != nil, err
}

func (f *fakeRepo) UpdatePlan(_ context.Context, id uuid.UUID, plan string) error {
	user, ok := f.users[id]
	if !ok {
		return ErrUserNotFound
	}
	user.Plan = plan
	return nil
}

func TestCreate_DefaultsToFreePlan(t *testing.T) {
	svc := NewService(newFakeRepo())

	user, err := svc.Create(context.Background(), "a@example.com", "hash")
	require.NoError(t, err)
	assert.Equal(t, PlanFree, user.Plan)
}

func TestChangePlan_Upgrade(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ctx := context.Background()

	user, err := svc.Create(ctx, "a@example.com", "hash")
	require.NoError(t, err)

	updated, err := svc.ChangePlan(ctx, user.ID, PlanPro)
	require.NoError(t, err)
	assert.Equal(t, PlanPro, updated.Plan)

	loaded, err := svc.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, PlanPro, loaded.Plan)
}

func TestChangePlan_UnknownPlanRejected(t *testing.T) {
	repo := newFakeRepo()
	svc := NewService(repo)
	ctx := context.Background()

	user, err := svc.Create(ctx, "a@example.com", "hash")
	require.NoError(t, err)

	_, err = svc.ChangePlan(ctx, user.ID, "enterprise")
	assert.ErrorIs(t, err, ErrUnknownPlan)

	// Guests are not a plan a user can move onto.
	_, err = svc.ChangePlan(ctx, user.ID, "guest")
	assert.ErrorIs(t, err, ErrUnknownPlan)

	loaded, err := svc.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, PlanFree, loaded.Plan)
}

func TestChangePlan_MissingUser(t *testing.T) {
	svc := NewService(newFakeRepo())

	_, err := svc.ChangePlan(context.Background(), uuid.New(), PlanPremium)
	assert.Error(t, err)
}
