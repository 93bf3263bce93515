package identity

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCurrentUser_Anonymous(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	assert.Nil(t, CurrentUser(r))
}

func TestCurrentUser_Authenticated(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set(HeaderUserID, "u1")
	r.Header.Set(HeaderUserName, "alice")
	r.Header.Set(HeaderUserEmail, "alice@example.com")

	user := CurrentUser(r)
	require.NotNil(t, user)
	assert.Equal(t, "u1", user.ID)
	assert.Equal(t, "alice", user.Name)
	assert.Equal(t, "alice@example.com", user.Email)
}

func TestCurrentUser_NameFallsBackToID(t *testing.T) {
	r := httptest.NewRequest("GET", "/", nil)
	r.Header.Set(HeaderUserID, "u1")

	user := CurrentUser(r)
	require.NotNil(t, user)
	assert.Equal(t, "u1", user.Name)
}
