package credentials

import (
	"context"

	"github.com/voicelyapp/voicely-cli/internal/client/models"
)

// Repository is the secure local store for the session credential.
//
// Save writes token, expiry and user as one unit; a reader never observes a
// partially written credential. Load returns nil (no error) when no complete
// credential is stored.
type Repository interface {
	Save(ctx context.Context, cred models.Credential) error
	Load(ctx context.Context) (*models.Credential, error)
	Clear(ctx context.Context) error

	// DeviceID returns the per-install identifier, creating and persisting
	// one on first use. It survives Clear.
	DeviceID(ctx context.Context) (string, error)
}
