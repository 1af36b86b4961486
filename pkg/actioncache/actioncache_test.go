package actioncache

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveVersionPicksHighestMatching(t *testing.T) {
	tag, err := ResolveVersion("^3.0.0", []string{"v1.0.0", "v3.0.0", "v3.2.1", "v4.0.0"})
	require.NoError(t, err)
	assert.Equal(t, "v3.2.1", tag)
}

func TestResolveVersionNoMatch(t *testing.T) {
	_, err := ResolveVersion("^5.0.0", []string{"v1.0.0", "v2.0.0"})
	assert.Error(t, err)
}

func TestResolveVersionIgnoresUnparsableTags(t *testing.T) {
	tag, err := ResolveVersion("^3.0.0", []string{"main", "v3.0.0", "latest"})
	require.NoError(t, err)
	assert.Equal(t, "v3.0.0", tag)
}

func TestSafeFilename(t *testing.T) {
	assert.Equal(t, "github.com_owner_repo", safeFilename("github.com/owner/repo"))
}
