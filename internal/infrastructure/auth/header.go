package auth

import (
	"context"
	"strings"

	"live-auction/internal/domain"
)

// HeaderAuthenticator trusts the identity the client presents. The credential
// has the form "<userID>" or "<userID>:moderator". Meant for development
// behind a trusted gateway.
type HeaderAuthenticator struct{}

func NewHeaderAuthenticator() *HeaderAuthenticator {
	return &HeaderAuthenticator{}
}

func (HeaderAuthenticator) Authenticate(ctx context.Context, credential string) (*domain.Identity, error) {
	userID, role, _ := strings.Cut(strings.TrimSpace(credential), ":")
	if userID == "" {
		return nil, domain.ErrUnauthorized
	}
	return &domain.Identity{UserID: userID, Moderator: role == RoleModerator}, nil
}
