// Package identity resolves the authenticated user from a request. The
// engines only consume the resolved identity; authentication itself is
// performed upstream (the gateway in front of this API stamps the
// identity headers after verifying the session).
package identity

import (
	"net/http"

	"github.com/xfarydz/rydstore-backend/internal/models"
)

// Header names stamped by the authenticating gateway.
const (
	HeaderUserID    = "X-User-Id"
	HeaderUserName  = "X-User-Name"
	HeaderUserEmail = "X-User-Email"
)

// CurrentUser returns the authenticated identity for the request, or
// nil when the request is anonymous.
func CurrentUser(r *http.Request) *models.User {
	id := r.Header.Get(HeaderUserID)
	if id == "" {
		return nil
	}
	name := r.Header.Get(HeaderUserName)
	if name == "" {
		name = id
	}
	return &models.User{
		ID:    id,
		Name:  name,
		Email: r.Header.Get(HeaderUserEmail),
	}
}
