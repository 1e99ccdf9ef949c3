package ginserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractBearerToken(t *testing.T) {
	assert.Equal(t, "abc", extractBearerToken("Bearer abc"))
	assert.Equal(t, "abc", extractBearerToken("bearer abc"))
	assert.Empty(t, extractBearerToken(""))
	assert.Empty(t, extractBearerToken("Basic abc"))
	assert.Empty(t, extractBearerToken("Bearer "))
}

func TestPrincipalHasRole(t *testing.T) {
	p := principal{ID: "u1", Roles: []string{"Admin", "moderator"}}
	assert.True(t, p.HasRole("admin"))
	assert.True(t, p.HasRole("MODERATOR"))
	assert.False(t, p.HasRole("seller"))
	assert.False(t, p.HasRole(""))
}
