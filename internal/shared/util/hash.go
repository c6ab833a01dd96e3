package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// AnonymousOwner namespaces uploads that carry no user id.
const AnonymousOwner = "anonymous"

const ownerKeyLen = 32

// OwnerKey maps a caller-supplied user id to the directory or key prefix its
// résumés are stored under. The raw id never reaches a path.
func OwnerKey(userID string) string {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return AnonymousOwner
	}
	sum := sha256.Sum256([]byte(userID))
	return hex.EncodeToString(sum[:])[:ownerKeyLen]
}
