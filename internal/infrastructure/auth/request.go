package auth

import (
	"net/http"
	"strings"
)

// CredentialFromRequest picks the credential a client presented, in order:
// ?token=, Authorization: Bearer, ?user_id=, X-User-ID. Browsers cannot set
// headers on a websocket handshake, hence the query parameters.
func CredentialFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if header := r.Header.Get("Authorization"); header != "" {
		if token, ok := strings.CutPrefix(header, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if userID := r.URL.Query().Get("user_id"); userID != "" {
		return userID
	}
	return r.Header.Get("X-User-ID")
}
