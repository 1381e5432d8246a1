package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetPersistentServerID(t *testing.T) {
	assert.Equal(t, "node-a", GetPersistentServerID("node-a", t.TempDir()))

	dir := t.TempDir()
	assert.NoError(t, os.WriteFile(filepath.Join(dir, ".server_id"), []byte(" azcrm-saved \n"), 0o644))
	assert.Equal(t, "azcrm-saved", GetPersistentServerID("", dir))

	id := GetPersistentServerID("", t.TempDir())
	assert.True(t, strings.HasPrefix(id, "azcrm-"), id)
}

func TestGetPersistentServerID_IsStable(t *testing.T) {
	dir := t.TempDir()
	first := GetPersistentServerID("", dir)
	assert.Equal(t, first, GetPersistentServerID("", dir))

	saved, err := os.ReadFile(filepath.Join(dir, ".server_id"))
	assert.NoError(t, err)
	assert.Equal(t, first, string(saved))
}

func TestSanitizeHost(t *testing.T) {
	assert.Equal(t, "crm-01_a", sanitizeHost("crm-01_a"))
	assert.Equal(t, "podabc", sanitizeHost("pod.abc"))
}
