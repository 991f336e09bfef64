package repositories

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/libshelf/accounts/internal/models"
)

// fileUser is the on-disk shape of a user record. The password hash is
// persisted here; sanitization happens at the handler boundary.
type fileUser struct {
	ID            int       `json:"id"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	Mobile        string    `json:"mobile,omitempty"`
	Password      string    `json:"password"`
	Name          string    `json:"name,omitempty"`
	Role          string    `json:"role"`
	Avatar        string    `json:"avatar,omitempty"`
	EmailVerified bool      `json:"emailVerified"`
	MemberSince   time.Time `json:"memberSince"`
}

// UserFileRepository persists users as a single JSON array on disk.
// Every mutation is a whole-file read-modify-write serialized by mu,
// so concurrent requests cannot lose each other's updates.
type UserFileRepository struct {
	path string
	mu   sync.RWMutex
}

// NewUserFileRepository opens (or creates) the JSON store at path and
// seeds the bootstrap admin when the store is empty.
func NewUserFileRepository(path string) (*UserFileRepository, error) {
	repo := &UserFileRepository{path: path}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()

	users, err := repo.load()
	if err != nil {
		return nil, err
	}

	if len(users) == 0 {
		users = []fileUser{{
			ID:       1,
			Username: "admin",
			Email:    "admin@library.com",
			// Plaintext bootstrap credential, migrated to a bcrypt
			// hash on the admin's first successful login.
			Password:      "admin",
			Name:          "Administrator",
			Role:          models.RoleAdmin,
			EmailVerified: true,
			MemberSince:   time.Now(),
		}}
		if err := repo.save(users); err != nil {
			return nil, fmt.Errorf("failed to seed bootstrap admin: %w", err)
		}
	}

	return repo, nil
}

func (r *UserFileRepository) load() ([]fileUser, error) {
	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return []fileUser{}, nil
		}
		return nil, fmt.Errorf("failed to read user store: %w", err)
	}

	if len(data) == 0 {
		return []fileUser{}, nil
	}

	var users []fileUser
	if err := json.Unmarshal(data, &users); err != nil {
		return nil, fmt.Errorf("failed to decode user store: %w", err)
	}

	return users, nil
}

// save writes the collection through a temp file and rename so a crash
// mid-write cannot leave a truncated store behind.
func (r *UserFileRepository) save(users []fileUser) error {
	data, err := json.MarshalIndent(users, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode user store: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write user store: %w", err)
	}

	if err := os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("failed to replace user store: %w", err)
	}

	return nil
}

func toModel(fu fileUser) *models.User {
	return &models.User{
		ID:            fu.ID,
		Username:      fu.Username,
		Email:         fu.Email,
		Mobile:        fu.Mobile,
		PasswordHash:  fu.Password,
		Name:          fu.Name,
		Role:          fu.Role,
		Avatar:        fu.Avatar,
		EmailVerified: fu.EmailVerified,
		MemberSince:   fu.MemberSince,
	}
}

func fromModel(u *models.User) fileUser {
	return fileUser{
		ID:            u.ID,
		Username:      u.Username,
		Email:         u.Email,
		Mobile:        u.Mobile,
		Password:      u.PasswordHash,
		Name:          u.Name,
		Role:          u.Role,
		Avatar:        u.Avatar,
		EmailVerified: u.EmailVerified,
		MemberSince:   u.MemberSince,
	}
}

func (r *UserFileRepository) GetByUsernameOrEmail(ctx context.Context, key string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users, err := r.load()
	if err != nil {
		return nil, err
	}

	lower := strings.ToLower(key)
	for _, u := range users {
		if strings.ToLower(u.Username) == lower || strings.ToLower(u.Email) == lower {
			return toModel(u), nil
		}
	}

	return nil, models.ErrNotFound
}

func (r *UserFileRepository) GetByID(ctx context.Context, id int) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users, err := r.load()
	if err != nil {
		return nil, err
	}

	for _, u := range users {
		if u.ID == id {
			return toModel(u), nil
		}
	}

	return nil, models.ErrNotFound
}

func (r *UserFileRepository) GetByMobile(ctx context.Context, mobile string) (*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users, err := r.load()
	if err != nil {
		return nil, err
	}

	for _, u := range users {
		if u.Mobile != "" && u.Mobile == mobile {
			return toModel(u), nil
		}
	}

	return nil, models.ErrNotFound
}

func (r *UserFileRepository) List(ctx context.Context) ([]*models.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users, err := r.load()
	if err != nil {
		return nil, err
	}

	out := make([]*models.User, 0, len(users))
	for _, u := range users {
		out = append(out, toModel(u))
	}

	return out, nil
}

func (r *UserFileRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load()
	if err != nil {
		return nil, err
	}

	if err := checkDuplicates(users, user, 0); err != nil {
		return nil, err
	}

	maxID := 0
	for _, u := range users {
		if u.ID > maxID {
			maxID = u.ID
		}
	}
	user.ID = maxID + 1

	if user.Role == "" {
		user.Role = models.RoleMember
	}
	if user.MemberSince.IsZero() {
		user.MemberSince = time.Now()
	}

	users = append(users, fromModel(user))
	if err := r.save(users); err != nil {
		return nil, err
	}

	return toModel(users[len(users)-1]), nil
}

func (r *UserFileRepository) Update(ctx context.Context, id int, user *models.User) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load()
	if err != nil {
		return nil, err
	}

	if err := checkDuplicates(users, user, id); err != nil {
		return nil, err
	}

	for i, u := range users {
		if u.ID == id {
			updated := fromModel(user)
			updated.ID = id
			updated.Password = u.Password
			updated.MemberSince = u.MemberSince
			users[i] = updated

			if err := r.save(users); err != nil {
				return nil, err
			}
			return toModel(updated), nil
		}
	}

	return nil, models.ErrNotFound
}

func (r *UserFileRepository) SetPassword(ctx context.Context, id int, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load()
	if err != nil {
		return err
	}

	for i, u := range users {
		if u.ID == id {
			users[i].Password = hash
			return r.save(users)
		}
	}

	return models.ErrNotFound
}

func (r *UserFileRepository) Delete(ctx context.Context, id int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	users, err := r.load()
	if err != nil {
		return err
	}

	for i, u := range users {
		if u.ID == id {
			users = append(users[:i], users[i+1:]...)
			return r.save(users)
		}
	}

	return models.ErrNotFound
}

// checkDuplicates enforces uniqueness of username and email
// (case-insensitive) and mobile, skipping the record with id skip.
func checkDuplicates(users []fileUser, candidate *models.User, skip int) error {
	username := strings.ToLower(candidate.Username)
	email := strings.ToLower(candidate.Email)

	for _, u := range users {
		if u.ID == skip {
			continue
		}
		if strings.ToLower(u.Username) == username {
			return models.ErrDuplicateUsername
		}
		if strings.ToLower(u.Email) == email {
			return models.ErrDuplicateEmail
		}
		if candidate.Mobile != "" && u.Mobile == candidate.Mobile {
			return models.ErrDuplicateMobile
		}
	}

	return nil
}
