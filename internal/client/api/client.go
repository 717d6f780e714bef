// Package api defines the Voicely backend operations consumed by the
// onboarding flow, and an HTTP implementation of them.
package api

import (
	"context"

	"github.com/voicelyapp/voicely-cli/internal/client/models"
)

// Disposition is the server's branch signal from PIN verification: the
// account either already exists or still has to be registered.
type Disposition int

const (
	DispositionExistingAccount Disposition = iota
	DispositionNewAccount
)

// VerifyResult carries the outcome of a successful PIN verification.
// User and ExpiresIn are only meaningful for DispositionExistingAccount,
// and even then the server may omit them; callers must check.
type VerifyResult struct {
	Disposition Disposition
	User        *models.User
	ExpiresIn   int64
}

// Client is the remote auth service used during onboarding.
//
// Errors returned by implementations are either one of the sentinels in
// errors.go (matched with errors.Is) or a wrapped transport error.
type Client interface {
	// RequestLogin asks the server to email a one-time PIN and returns the
	// short-lived login token that authorizes the follow-up calls.
	RequestLogin(ctx context.Context, email string) (string, error)

	// VerifyCode exchanges the login token and PIN for a disposition.
	VerifyCode(ctx context.Context, token, pin string) (*VerifyResult, error)

	// RegisterAccount creates the account and returns the new user record
	// together with the session lifetime in seconds.
	RegisterAccount(ctx context.Context, token, username, displayName string, image []byte) (*models.User, int64, error)

	// BulkFollow follows the given users in one batch.
	BulkFollow(ctx context.Context, ids []int64) error

	// Ping checks server liveness.
	Ping(ctx context.Context) error

	// Close releases underlying transport resources.
	Close() error
}
