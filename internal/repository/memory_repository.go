package repository

import (
	"context"
	"strings"
	"sync"
	"time"

	"socialhub/internal/models"
)

// MemoryUserRepository keeps users in process. It enforces the same
// uniqueness rules as the Postgres schema and is safe for concurrent use.
type MemoryUserRepository struct {
	mu     sync.RWMutex
	nextID int64
	users  map[int64]models.User
	now    func() time.Time
}

func NewMemoryUserRepository() *MemoryUserRepository {
	return &MemoryUserRepository{
		users: make(map[int64]models.User),
		now:   time.Now,
	}
}

func (r *MemoryUserRepository) Create(ctx context.Context, user models.User) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return models.User{}, ErrDuplicateEmail
		}
		if strings.EqualFold(existing.Username, user.Username) {
			return models.User{}, ErrDuplicateUsername
		}
	}

	now := r.now().UTC()
	r.nextID++
	user.ID = r.nextID
	user.JoinedDate = now
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Role == "" {
		user.Role = models.UserRoleUser
	}
	if user.Status == "" {
		user.Status = models.UserStatusActive
	}

	r.users[user.ID] = clone(user)
	return clone(user), nil
}

func (r *MemoryUserRepository) FindByEmail(ctx context.Context, email string) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, user := range r.users {
		if strings.EqualFold(user.Email, email) {
			return clone(user), nil
		}
	}
	return models.User{}, ErrUserNotFound
}

func (r *MemoryUserRepository) FindByID(ctx context.Context, id int64) (models.User, error) {
	if err := ctx.Err(); err != nil {
		return models.User{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.users[id]
	if !ok {
		return models.User{}, ErrUserNotFound
	}
	return clone(user), nil
}

func (r *MemoryUserRepository) MarkLoggedIn(ctx context.Context, id int64) error {
	return r.update(ctx, id, func(u *models.User, now time.Time) {
		u.LastLogin = &now
		u.LastActivity = &now
		if u.Status == models.UserStatusInactive {
			u.Status = models.UserStatusActive
		}
	})
}

func (r *MemoryUserRepository) MarkLoggedOut(ctx context.Context, id int64) error {
	return r.update(ctx, id, func(u *models.User, now time.Time) {
		u.LastLogout = &now
	})
}

func (r *MemoryUserRepository) TouchActivity(ctx context.Context, id int64, at time.Time) error {
	return r.update(ctx, id, func(u *models.User, _ time.Time) {
		if u.LastActivity == nil || at.After(*u.LastActivity) {
			at := at
			u.LastActivity = &at
		}
	})
}

func (r *MemoryUserRepository) DeactivateDormant(ctx context.Context, before time.Time) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var affected int64
	for id, user := range r.users {
		if user.Status != models.UserStatusActive {
			continue
		}
		seen := user.JoinedDate
		if user.LastActivity != nil {
			seen = *user.LastActivity
		}
		if seen.Before(before) {
			user.Status = models.UserStatusInactive
			user.UpdatedAt = r.now().UTC()
			r.users[id] = user
			affected++
		}
	}
	return affected, nil
}

// Delete removes a user outright. The auth flows never delete; tests and
// local tooling use it to simulate accounts removed elsewhere.
func (r *MemoryUserRepository) Delete(id int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
}

// SetStatus and SetRole stand in for the admin tooling that owns those fields.
func (r *MemoryUserRepository) SetStatus(id int64, status models.UserStatus) {
	_ = r.update(context.Background(), id, func(u *models.User, _ time.Time) { u.Status = status })
}

func (r *MemoryUserRepository) SetRole(id int64, role models.UserRole) {
	_ = r.update(context.Background(), id, func(u *models.User, _ time.Time) { u.Role = role })
}

func (r *MemoryUserRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

func (r *MemoryUserRepository) update(ctx context.Context, id int64, fn func(u *models.User, now time.Time)) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	now := r.now().UTC()
	fn(&user, now)
	user.UpdatedAt = now
	r.users[id] = user
	return nil
}

func clone(u models.User) models.User {
	if u.PasswordHash != nil {
		u.PasswordHash = append([]byte(nil), u.PasswordHash...)
	}
	return u
}
