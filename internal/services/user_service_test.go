package services

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libshelf/accounts/internal/models"
)

func strPtr(s string) *string { return &s }

func newUserService(repo UserRepository, verification VerificationManager) *UserService {
	if repo == nil {
		repo = &MockUserRepository{}
	}
	if verification == nil {
		verification = &MockVerificationManager{}
	}
	return NewUserService(repo, verification, slog.Default())
}

func TestUserService_GetUserByID_Success(t *testing.T) {
	repo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id int) (*models.User, error) {
			return NewTestUser(id, "alice", "alice@example.com"), nil
		},
	}
	svc := newUserService(repo, nil)

	user, err := svc.GetUserByID(context.Background(), 3)

	require.NoError(t, err)
	assert.Equal(t, 3, user.ID)
}

func TestUserService_GetUserByID_NotFound(t *testing.T) {
	svc := newUserService(nil, nil)

	_, err := svc.GetUserByID(context.Background(), 99)

	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUserService_ListUsers(t *testing.T) {
	repo := &MockUserRepository{
		ListFunc: func(ctx context.Context) ([]*models.User, error) {
			return []*models.User{
				NewTestUser(1, "admin", "admin@library.com"),
				NewTestUser(2, "alice", "alice@example.com"),
			}, nil
		},
	}
	svc := newUserService(repo, nil)

	users, err := svc.ListUsers(context.Background())

	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestUserService_UpdateUser_ProfileFields(t *testing.T) {
	existing := NewTestUser(2, "alice", "alice@example.com")
	var saved *models.User
	repo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id int) (*models.User, error) {
			return existing, nil
		},
		UpdateFunc: func(ctx context.Context, id int, u *models.User) (*models.User, error) {
			saved = u
			return u, nil
		},
	}
	svc := newUserService(repo, nil)

	updated, err := svc.UpdateUser(context.Background(), 2, UpdateUserInput{
		Name:   strPtr("Alice A."),
		Avatar: strPtr("/avatars/alice.png"),
	})

	require.NoError(t, err)
	assert.Equal(t, "Alice A.", updated.Name)
	assert.Equal(t, "/avatars/alice.png", updated.Avatar)
	assert.True(t, saved.EmailVerified, "profile edits without an email change keep the verified flag")
}

func TestUserService_UpdateUser_EmailChangeResetsVerified(t *testing.T) {
	existing := NewTestUser(2, "alice", "alice@example.com")
	reissued := false
	repo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id int) (*models.User, error) {
			return existing, nil
		},
		UpdateFunc: func(ctx context.Context, id int, u *models.User) (*models.User, error) {
			return u, nil
		},
	}
	verification := &MockVerificationManager{
		IssueFunc: func(ctx context.Context, userID int, email string) (string, error) {
			reissued = true
			assert.Equal(t, "new@example.com", email)
			return "token", nil
		},
	}
	svc := newUserService(repo, verification)

	updated, err := svc.UpdateUser(context.Background(), 2, UpdateUserInput{
		Email: strPtr("new@example.com"),
	})

	require.NoError(t, err)
	assert.False(t, updated.EmailVerified, "changing the email clears the verified flag")
	assert.True(t, reissued, "a fresh verification flow starts for the new address")
}

func TestUserService_UpdateUser_SameEmailKeepsVerified(t *testing.T) {
	existing := NewTestUser(2, "alice", "alice@example.com")
	repo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id int) (*models.User, error) {
			return existing, nil
		},
		UpdateFunc: func(ctx context.Context, id int, u *models.User) (*models.User, error) {
			return u, nil
		},
	}
	svc := newUserService(repo, nil)

	updated, err := svc.UpdateUser(context.Background(), 2, UpdateUserInput{
		Email: strPtr("Alice@Example.com"), // same address, different case
	})

	require.NoError(t, err)
	assert.True(t, updated.EmailVerified)
}

func TestUserService_UpdateUser_DuplicateEmail(t *testing.T) {
	repo := &MockUserRepository{
		GetByIDFunc: func(ctx context.Context, id int) (*models.User, error) {
			return NewTestUser(2, "alice", "alice@example.com"), nil
		},
		UpdateFunc: func(ctx context.Context, id int, u *models.User) (*models.User, error) {
			return nil, models.ErrDuplicateEmail
		},
	}
	svc := newUserService(repo, nil)

	_, err := svc.UpdateUser(context.Background(), 2, UpdateUserInput{
		Email: strPtr("taken@example.com"),
	})

	assert.ErrorIs(t, err, models.ErrDuplicateEmail)
}

func TestUserService_UpdateUser_NotFound(t *testing.T) {
	svc := newUserService(nil, nil)

	_, err := svc.UpdateUser(context.Background(), 99, UpdateUserInput{Name: strPtr("x")})

	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestUserService_DeleteUser(t *testing.T) {
	deleted := 0
	repo := &MockUserRepository{
		DeleteFunc: func(ctx context.Context, id int) error {
			deleted = id
			return nil
		},
	}
	svc := newUserService(repo, nil)

	require.NoError(t, svc.DeleteUser(context.Background(), 4))
	assert.Equal(t, 4, deleted)
}

func TestUserService_DeleteUser_NotFound(t *testing.T) {
	repo := &MockUserRepository{
		DeleteFunc: func(ctx context.Context, id int) error {
			return models.ErrNotFound
		},
	}
	svc := newUserService(repo, nil)

	assert.ErrorIs(t, svc.DeleteUser(context.Background(), 99), models.ErrNotFound)
}
