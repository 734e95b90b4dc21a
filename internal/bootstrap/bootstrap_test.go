package bootstrap

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/creamcroissant/orderdesk/internal/auth/token"
	"github.com/creamcroissant/orderdesk/internal/config"
	"github.com/creamcroissant/orderdesk/internal/migrations"
)

func TestResolveSigningKey(t *testing.T) {
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "nested", "orderdesk.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, migrations.Up(db))
	ctx := context.Background()

	key, source, err := resolveSigningKey(ctx, db, "from-config", signingKeyDeps{})
	require.NoError(t, err)
	assert.Equal(t, "from-config", key)
	assert.Equal(t, SigningKeySourceConfig, source)

	deps := signingKeyDeps{
		now:        func() time.Time { return time.Unix(1700000000, 0) },
		randReader: bytes.NewReader(bytes.Repeat([]byte{0xab}, signingKeyBytes)),
	}
	key, source, err = resolveSigningKey(ctx, db, config.DefaultSigningKey, deps)
	require.NoError(t, err)
	assert.Equal(t, SigningKeySourceGenerated, source)
	assert.Len(t, key, signingKeyBytes*2)

	again, source, err := ResolveSigningKey(ctx, db, "")
	require.NoError(t, err)
	assert.Equal(t, SigningKeySourceSettings, source)
	assert.Equal(t, key, again)

	_, _, err = ResolveSigningKey(ctx, nil, "")
	assert.Error(t, err)
}

func TestBuildWiresServices(t *testing.T) {
	cfg := &config.Config{}
	cfg.DB.Path = filepath.Join(t.TempDir(), "orderdesk.db")
	cfg.OrderService.BaseURL = "http://orders.invalid"
	cfg.Cache.TTL = time.Second

	app, err := Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })

	assert.Equal(t, SigningKeySourceGenerated, app.SigningKeySource)
	assert.NotEqual(t, config.DefaultSigningKey, cfg.Auth.SigningKey)
	require.NoError(t, cfg.Validate(true))
	require.NoError(t, app.Ready(context.Background()))

	signed, _, err := app.Tokens.Issue(tokenInput("ops"))
	require.NoError(t, err)
	claims, err := app.Tokens.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "ops", claims.Subject)

	watches, err := app.Watches.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, watches)
}

func tokenInput(subject string) token.IssueInput {
	return token.IssueInput{Subject: subject, Role: token.RoleOperator}
}
