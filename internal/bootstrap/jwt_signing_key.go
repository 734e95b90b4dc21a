package bootstrap

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/creamcroissant/orderdesk/internal/config"
)

type SigningKeySource string

const (
	signingKeySettingKey = "auth_signing_key"
	signingKeyCategory   = "security"
	signingKeyBytes      = 32

	SigningKeySourceConfig    SigningKeySource = "config"
	SigningKeySourceSettings  SigningKeySource = "settings"
	SigningKeySourceGenerated SigningKeySource = "generated"
)

type signingKeyDeps struct {
	now        func() time.Time
	randReader io.Reader
}

// ResolveSigningKey resolves the admin token signing key with priority:
// config/env > settings table > generate-and-persist.
func ResolveSigningKey(ctx context.Context, db *sql.DB, configuredKey string) (string, SigningKeySource, error) {
	return resolveSigningKey(ctx, db, configuredKey, signingKeyDeps{now: time.Now, randReader: rand.Reader})
}

func resolveSigningKey(ctx context.Context, db *sql.DB, configuredKey string, deps signingKeyDeps) (string, SigningKeySource, error) {
	configured := strings.TrimSpace(configuredKey)
	if configured != "" && configured != config.DefaultSigningKey {
		return configured, SigningKeySourceConfig, nil
	}
	if db == nil {
		return "", "", fmt.Errorf("resolve signing key: db is required when auth.signing_key is unset; you can set ORDERDESK_AUTH_SIGNING_KEY")
	}

	existing, err := readSigningKey(ctx, db)
	if err != nil {
		return "", "", fmt.Errorf("read signing key from settings: %w", err)
	}
	if existing != "" {
		return existing, SigningKeySourceSettings, nil
	}

	generated, err := generateSigningKey(deps.randReader)
	if err != nil {
		return "", "", fmt.Errorf("generate signing key: %w", err)
	}
	if err := insertSigningKeyIfMissing(ctx, db, generated, deps.now().Unix()); err != nil {
		return "", "", fmt.Errorf("persist signing key: %w", err)
	}

	// Another process may have won the insert.
	resolved, err := readSigningKey(ctx, db)
	if err != nil {
		return "", "", fmt.Errorf("read signing key after persistence: %w", err)
	}
	if resolved == "" {
		return "", "", errors.New("signing key not found after persistence")
	}
	if resolved == generated {
		return resolved, SigningKeySourceGenerated, nil
	}
	return resolved, SigningKeySourceSettings, nil
}

func readSigningKey(ctx context.Context, db *sql.DB) (string, error) {
	var value string
	err := db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, signingKeySettingKey).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(value), nil
}

func insertSigningKeyIfMissing(ctx context.Context, db *sql.DB, key string, updatedAt int64) error {
	const statement = `INSERT INTO settings(key, value, category, updated_at) VALUES(?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
		WHERE TRIM(settings.value) = ''`
	_, err := db.ExecContext(ctx, statement, signingKeySettingKey, key, signingKeyCategory, updatedAt)
	return err
}

func generateSigningKey(reader io.Reader) (string, error) {
	buf := make([]byte, signingKeyBytes)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
