package memory

import (
	"context"
	"sync"
	"time"

	"github.com/zest/productapi/internal/domain/user"
)

// UsersRepo is a mutex-guarded credential store. Uniqueness checks and the
// insert happen under one lock, so concurrent registrations cannot both win.
type UsersRepo struct {
	mu     sync.RWMutex
	nextID int64
	items  map[int64]user.User
}

func NewUsersRepo() *UsersRepo {
	return &UsersRepo{
		items: make(map[int64]user.User),
	}
}

func (r *UsersRepo) Create(_ context.Context, nu user.NewUser) (user.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.items {
		if u.Username == nu.Username {
			return user.User{}, user.ErrUsernameTaken
		}
		if u.Email == nu.Email {
			return user.User{}, user.ErrEmailTaken
		}
	}

	r.nextID++
	u := user.User{
		ID:           r.nextID,
		Username:     nu.Username,
		Email:        nu.Email,
		PasswordHash: nu.PasswordHash,
		Roles:        append([]string(nil), nu.Roles...),
		CreatedAt:    time.Now().UTC(),
	}
	r.items[u.ID] = u

	return clone(u), nil
}

func (r *UsersRepo) GetByUsername(_ context.Context, username string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.items {
		if u.Username == username {
			return clone(u), nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (r *UsersRepo) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := r.GetByUsername(ctx, username)
	if err == user.ErrNotFound {
		return false, nil
	}
	return err == nil, err
}

func (r *UsersRepo) ExistsByEmail(_ context.Context, email string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.items {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (r *UsersRepo) SetRefreshToken(_ context.Context, userID int64, tokenHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[userID]
	if !ok {
		return user.ErrNotFound
	}

	u.RefreshTokenHash = &tokenHash
	r.items[userID] = u
	return nil
}

func (r *UsersRepo) GetByRefreshToken(_ context.Context, tokenHash string) (user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.items {
		if u.RefreshTokenHash != nil && *u.RefreshTokenHash == tokenHash {
			return clone(u), nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (r *UsersRepo) SwapRefreshToken(_ context.Context, userID int64, oldHash, newHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.items[userID]
	if !ok || u.RefreshTokenHash == nil || *u.RefreshTokenHash != oldHash {
		return user.ErrNotFound
	}

	u.RefreshTokenHash = &newHash
	r.items[userID] = u
	return nil
}

func (r *UsersRepo) Delete(_ context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.items[id]; !ok {
		return user.ErrNotFound
	}
	delete(r.items, id)
	return nil
}

func clone(u user.User) user.User {
	u.Roles = append([]string(nil), u.Roles...)
	if u.RefreshTokenHash != nil {
		h := *u.RefreshTokenHash
		u.RefreshTokenHash = &h
	}
	return u
}
