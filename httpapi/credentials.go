package httpapi

import (
	"context"
	"crypto/subtle"
	"slices"
)

// Authenticator checks login credentials and returns the subject and roles
// to put in the issued tokens.
type Authenticator interface {
	Authenticate(ctx context.Context, username, password string) (subject string, roles []string, ok bool)
}

// StaticUser is one entry of StaticCredentials.
type StaticUser struct {
	Password string   `yaml:"password"`
	Roles    []string `yaml:"roles"`
}

// StaticCredentials is a fixed username to user table for demos and tests.
type StaticCredentials map[string]StaticUser

// DemoCredentials returns the single admin/password user with ADMIN and USER
// roles.
func DemoCredentials() StaticCredentials {
	return StaticCredentials{
		"admin": {Password: "password", Roles: []string{"ADMIN", "USER"}},
	}
}

func (c StaticCredentials) Authenticate(_ context.Context, username, password string) (string, []string, bool) {
	user, found := c[username]
	match := subtle.ConstantTimeCompare([]byte(user.Password), []byte(password)) == 1
	if !found || !match {
		return "", nil, false
	}
	return username, slices.Clone(user.Roles), true
}
