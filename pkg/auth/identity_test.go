package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityContextRoundTrip(t *testing.T) {
	ctx := WithIdentity(context.Background(), &Identity{UserID: 10, Username: "alice"})
	id := FromContext(ctx)
	require.NotNil(t, id)
	assert.Equal(t, int64(10), id.UserID)

	assert.Nil(t, FromContext(context.Background()))
}

func TestTrustedHeaderMiddleware(t *testing.T) {
	var captured *Identity
	handler := TrustedHeaderMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = FromRequest(r)
	}))

	// With headers the identity is attached.
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Planwise-User-Id", "42")
	req.Header.Set("X-Planwise-Username", "alice")
	handler.ServeHTTP(httptest.NewRecorder(), req)
	require.NotNil(t, captured)
	assert.Equal(t, int64(42), captured.UserID)
	assert.Equal(t, "alice", captured.Username)

	// Without headers the request passes through anonymous.
	captured = &Identity{}
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Nil(t, captured)

	// A malformed id is rejected outright.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Planwise-User-Id", "not-a-number")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
