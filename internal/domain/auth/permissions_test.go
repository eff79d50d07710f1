package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/FACorreiaa/bungmap/internal/types"
)

func TestCanModify(t *testing.T) {
	tests := []struct {
		name     string
		identity *types.Identity
		owner    string
		want     bool
	}{
		{name: "signed out", identity: nil, owner: "u1", want: false},
		{name: "owner", identity: &types.Identity{ID: "u1"}, owner: "u1", want: true},
		{name: "stranger", identity: &types.Identity{ID: "u2"}, owner: "u1", want: false},
		{name: "admin", identity: &types.Identity{ID: "u2", IsAdmin: true}, owner: "u1", want: true},
		{name: "empty ids", identity: &types.Identity{}, owner: "", want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanModify(tt.identity, tt.owner))
		})
	}
}

func TestIsAdminEmail(t *testing.T) {
	assert.True(t, IsAdminEmail("admin@bungmap.app", "admin@bungmap.app"))
	assert.True(t, IsAdminEmail(" admin@bungmap.app", "admin@bungmap.app "))
	assert.False(t, IsAdminEmail("Admin@bungmap.app", "admin@bungmap.app"))
	assert.False(t, IsAdminEmail("", ""))
	assert.False(t, IsAdminEmail("someone@bungmap.app", "admin@bungmap.app"))
}
