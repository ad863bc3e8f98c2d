package utils

import "github.com/google/uuid"

// GenerateID returns a prefixed random identifier, e.g. "auction_5f0c...".
func GenerateID(prefix string) string {
	id := uuid.NewString()
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}
