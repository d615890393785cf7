// Package identity defines the identity-provider port used by the signup
// sagas, plus the Cognito adapter and an in-memory fake.
package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrAccountExists reports that an account with the same username is
// already registered with the identity provider.
var ErrAccountExists = errors.New("account already exists")

// WeakPasswordError reports that the identity provider rejected the
// supplied password.
type WeakPasswordError struct {
	Detail string
}

func (e *WeakPasswordError) Error() string {
	return fmt.Sprintf("password rejected: %s", e.Detail)
}

// Account is a provisioned identity-provider account.
type Account struct {
	ID       string
	Username string
	Email    string
}

// NewAccountInput carries the fields needed to provision an account.
type NewAccountInput struct {
	Email    string
	Password string
	Name     string
	UserType string
}

// Provider is the identity-provider port. CreateAccount provisions a new
// account, DeleteAccount removes one (used as saga compensation), and
// AddToGroup assigns an account to an authorization group.
type Provider interface {
	CreateAccount(ctx context.Context, input NewAccountInput) (Account, error)
	DeleteAccount(ctx context.Context, username string) error
	AddToGroup(ctx context.Context, username, group string) error
}

// UsernameFor derives the provider username from an email address. The
// pool uses email aliases, which forbids email-shaped usernames, so the
// local part is used instead.
func UsernameFor(email string) string {
	if at := strings.Index(email, "@"); at >= 0 {
		return email[:at]
	}
	return email
}
