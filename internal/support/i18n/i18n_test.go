package i18n

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranslateFallsBackToDefault(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)

	assert.Equal(t, "运输中", m.Translate("zh-CN", "status.in-transit"))
	assert.Equal(t, "In transit", m.Translate("fr-FR", "status.in-transit"))
	assert.Equal(t, "missing.key", m.Translate("zh-CN", "missing.key"))
	assert.Equal(t, "Cannot move the order from delivered to pending", m.Translate("en-US", "error.invalid_transition", "delivered", "pending"))
}

func TestMatch(t *testing.T) {
	m, err := NewManager()
	require.NoError(t, err)

	assert.Equal(t, "zh-CN", m.Match("zh-CN,zh;q=0.9,en;q=0.8"))
	assert.Equal(t, "zh-CN", m.Match("", "zh"))
	assert.Equal(t, "en-US", m.Match("en-GB"))
	assert.Equal(t, "en-US", m.Match("tlh"))
	assert.Equal(t, "en-US", m.Match())
}

func TestLoadFromDirOverrides(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "en-US.json"), []byte(`{"status.failed": "Delivery failed"}`), 0o600))

	m, err := NewManager()
	require.NoError(t, err)
	require.NoError(t, m.LoadFromDir(dir))
	require.NoError(t, m.LoadFromDir(filepath.Join(dir, "absent")))

	assert.Equal(t, "Delivery failed", m.Translate("en-US", "status.failed"))
	assert.Equal(t, "Delivered", m.Translate("en-US", "status.delivered"))
}
