package credentials

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"

	"github.com/voicelyapp/voicely-cli/internal/client/models"
	"github.com/voicelyapp/voicely-cli/internal/dbx"
)

const (
	keyToken    = "token"
	keyExpiry   = "expiry"
	keyUser     = "user"
	keyDeviceID = "device_id"
)

// SQLiteRepository keeps the credential in the metadata key/value table of
// the local client database.
type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Save writes token, expiry and user in a single transaction.
func (r *SQLiteRepository) Save(ctx context.Context, cred models.Credential) error {
	userData, err := json.Marshal(cred.User)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}

	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		if err := set(ctx, tx, keyToken, []byte(cred.Token)); err != nil {
			return err
		}
		if err := set(ctx, tx, keyExpiry, []byte(strconv.FormatInt(cred.ExpiresAt, 10))); err != nil {
			return err
		}
		return set(ctx, tx, keyUser, userData)
	})
}

// Load returns the stored credential, or nil when any of its parts is
// missing.
func (r *SQLiteRepository) Load(ctx context.Context) (*models.Credential, error) {
	token, err := get(ctx, r.db, keyToken)
	if err != nil {
		return nil, err
	}
	expiry, err := get(ctx, r.db, keyExpiry)
	if err != nil {
		return nil, err
	}
	userData, err := get(ctx, r.db, keyUser)
	if err != nil {
		return nil, err
	}

	if token == nil || expiry == nil || userData == nil {
		return nil, nil
	}

	expiresAt, err := strconv.ParseInt(string(expiry), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parse expiry: %w", err)
	}

	var user models.User
	if err := json.Unmarshal(userData, &user); err != nil {
		return nil, fmt.Errorf("decode user: %w", err)
	}

	return &models.Credential{Token: string(token), ExpiresAt: expiresAt, User: user}, nil
}

// Clear removes the credential. The device identifier is kept.
func (r *SQLiteRepository) Clear(ctx context.Context) error {
	return dbx.WithTx(ctx, r.db, nil, func(ctx context.Context, tx dbx.DBTX) error {
		for _, key := range []string{keyToken, keyExpiry, keyUser} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM metadata WHERE key = ?`, key); err != nil {
				return fmt.Errorf("failed to delete metadata[%s]: %w", key, err)
			}
		}
		return nil
	})
}

func (r *SQLiteRepository) DeviceID(ctx context.Context) (string, error) {
	id, err := get(ctx, r.db, keyDeviceID)
	if err != nil {
		return "", err
	}
	if id != nil {
		return string(id), nil
	}

	fresh := uuid.NewString()
	if err := set(ctx, r.db, keyDeviceID, []byte(fresh)); err != nil {
		return "", err
	}
	return fresh, nil
}

func get(ctx context.Context, db dbx.DBTX, key string) ([]byte, error) {
	var value []byte
	err := db.QueryRowContext(ctx, `SELECT value FROM metadata WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata[%s]: %w", key, err)
	}
	return value, nil
}

func set(ctx context.Context, db dbx.DBTX, key string, value []byte) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO metadata (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("failed to set metadata[%s]: %w", key, err)
	}
	return nil
}
