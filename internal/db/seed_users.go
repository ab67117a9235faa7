package db

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/zest/productapi/internal/domain/user"
	"gopkg.in/yaml.v3"
)

type UserSeeder interface {
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	Create(ctx context.Context, nu user.NewUser) (user.User, error)
}

type PasswordHasher interface {
	Hash(password string) (string, error)
}

type seedFile struct {
	Users []seedUser `yaml:"users"`
}

type seedUser struct {
	Username string   `yaml:"username"`
	Email    string   `yaml:"email"`
	Password string   `yaml:"password"`
	Roles    []string `yaml:"roles"`
}

// SeedUsers creates the accounts listed in the YAML file at path. Existing
// usernames are left untouched. An empty path is a no-op.
func SeedUsers(ctx context.Context, store UserSeeder, hasher PasswordHasher, path string) (int, error) {
	if path == "" {
		return 0, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("read seed file: %w", err)
	}

	return seedUsers(ctx, store, hasher, data)
}

func seedUsers(ctx context.Context, store UserSeeder, hasher PasswordHasher, data []byte) (int, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return 0, fmt.Errorf("parse seed file: %w", err)
	}

	created := 0
	for _, su := range f.Users {
		if su.Username == "" || su.Password == "" || su.Email == "" {
			continue
		}

		exists, err := store.ExistsByUsername(ctx, su.Username)
		if err != nil {
			return created, err
		}
		if exists {
			continue
		}

		hash, err := hasher.Hash(su.Password)
		if err != nil {
			return created, err
		}

		roles := su.Roles
		if len(roles) == 0 {
			roles = []string{user.RoleUser}
		}

		_, err = store.Create(ctx, user.NewUser{
			Username:     su.Username,
			Email:        su.Email,
			PasswordHash: hash,
			Roles:        roles,
		})
		if err != nil {
			// lost a race with another instance seeding the same file
			if errors.Is(err, user.ErrUsernameTaken) || errors.Is(err, user.ErrEmailTaken) {
				continue
			}
			return created, fmt.Errorf("seed user %q: %w", su.Username, err)
		}
		created++
	}

	return created, nil
}
