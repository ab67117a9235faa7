package auth

import (
	"strconv"

	"github.com/zest/productapi/internal/domain/user"
)

// Principal is the authenticated caller. Workflows receive it as an argument.
type Principal struct {
	UserID   int64
	Username string
	Roles    []string
}

func PrincipalFromUser(u user.User) Principal {
	return Principal{
		UserID:   u.ID,
		Username: u.Username,
		Roles:    u.Roles,
	}
}

func PrincipalFromClaims(c *Claims) Principal {
	id, _ := strconv.ParseInt(c.UserID, 10, 64)

	return Principal{
		UserID:   id,
		Username: c.Subject,
		Roles:    c.Roles,
	}
}

func (p Principal) HasRole(role string) bool {
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}
