package auth

import (
	"strings"

	"github.com/FACorreiaa/bungmap/internal/types"
)

// IsAdminEmail reports whether email is the allow-listed admin address. The
// comparison is exact apart from surrounding whitespace.
func IsAdminEmail(email, adminEmail string) bool {
	adminEmail = strings.TrimSpace(adminEmail)
	return adminEmail != "" && strings.TrimSpace(email) == adminEmail
}

// CanModify reports whether identity may edit or delete a record owned by
// ownerID. The remote store enforces the same rule; this check only decides
// which actions are offered.
func CanModify(identity *types.Identity, ownerID string) bool {
	if identity == nil {
		return false
	}
	return identity.IsAdmin || (identity.ID != "" && identity.ID == ownerID)
}
