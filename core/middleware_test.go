package core

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type guardFixture struct {
	router  *gin.Engine
	tokens  *TokenService
	owners  *fakeOwnerRepository
	members *fakeMemberRepository
}

func newGuardFixture(t *testing.T) *guardFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	owners, members := newFakeIdentityStores()
	tokens := NewTokenService("test-secret", time.Hour)
	resolver := NewIdentityResolver(owners, members)

	r := gin.New()
	authed := r.Group("", AuthRequired(tokens, resolver))
	authed.GET("/whoami", func(c *gin.Context) {
		p, _ := CurrentPrincipal(c)
		c.JSON(http.StatusOK, p)
	})
	authed.GET("/owner-area", OwnerOnly(), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	return &guardFixture{router: r, tokens: tokens, owners: owners, members: members}
}

func (f *guardFixture) get(path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestAuthRequiredRejectsMissingAndMalformedTokens(t *testing.T) {
	f := newGuardFixture(t)

	assert.Equal(t, http.StatusUnauthorized, f.get("/whoami", "").Code)
	assert.Equal(t, http.StatusUnauthorized, f.get("/whoami", "garbage").Code)

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Basic abc123")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthRequiredAcceptsValidOwnerToken(t *testing.T) {
	f := newGuardFixture(t)
	owner, err := f.owners.Create(context.Background(), "Alice", "a@x.com", "hash", "111")
	require.NoError(t, err)

	token, err := f.tokens.Issue(ownerPrincipal(owner))
	require.NoError(t, err)

	w := f.get("/whoami", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"OWNER"`)
	assert.NotContains(t, w.Body.String(), "hash")
}

func TestAuthRequiredRejectsDeletedPrincipal(t *testing.T) {
	f := newGuardFixture(t)
	ctx := context.Background()
	member, err := f.members.Create(ctx, "Bob", "b@x.com", "hash", "333", 1, time.Now().Add(time.Hour))
	require.NoError(t, err)

	token, err := f.tokens.Issue(memberPrincipal(member))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, f.get("/whoami", token).Code)

	// Signature still checks out, but the subject no longer resolves.
	require.NoError(t, f.members.SoftDelete(ctx, 1, member.ID))
	assert.Equal(t, http.StatusUnauthorized, f.get("/whoami", token).Code)
}

func TestAuthRequiredRejectsMemberExpiredWithinTokenWindow(t *testing.T) {
	f := newGuardFixture(t)
	member, err := f.members.Create(context.Background(), "Bob", "b@x.com", "hash", "333", 1, time.Now().Add(50*time.Millisecond))
	require.NoError(t, err)

	token, err := f.tokens.Issue(memberPrincipal(member))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, f.get("/whoami", token).Code)

	// The token is still signed and unexpired, but the membership is not.
	time.Sleep(60 * time.Millisecond)
	w := f.get("/whoami", token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "MEMBERSHIP_EXPIRED")
}

func TestAuthRequiredRejectsRoleMismatch(t *testing.T) {
	f := newGuardFixture(t)
	member, err := f.members.Create(context.Background(), "Bob", "b@x.com", "hash", "333", 1, time.Now().Add(time.Hour))
	require.NoError(t, err)

	// Token claims OWNER, but the id resolves as a member.
	forged, err := f.tokens.Issue(Principal{ID: member.ID, Name: "Bob", Email: "b@x.com", Role: RoleOwner})
	require.NoError(t, err)

	assert.Equal(t, http.StatusUnauthorized, f.get("/whoami", forged).Code)
}

func TestMemberCreatedAfterOwnerCanAuthenticate(t *testing.T) {
	f := newGuardFixture(t)
	ctx := context.Background()

	owner, err := f.owners.Create(ctx, "Alice", "a@x.com", "hash", "111")
	require.NoError(t, err)
	member, err := f.members.Create(ctx, "Bob", "b@x.com", "hash", "333", owner.ID, time.Now().Add(time.Hour))
	require.NoError(t, err)

	// Ids come from one sequence; a member id must never shadow an owner id,
	// or owner-first resolution would report a role mismatch.
	require.NotEqual(t, owner.ID, member.ID)

	token, err := f.tokens.Issue(memberPrincipal(member))
	require.NoError(t, err)

	w := f.get("/whoami", token)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"role":"MEMBER"`)
}

func TestOwnerOnlyForbidsMembers(t *testing.T) {
	f := newGuardFixture(t)
	ctx := context.Background()

	owner, err := f.owners.Create(ctx, "Alice", "a@x.com", "hash", "111")
	require.NoError(t, err)
	member, err := f.members.Create(ctx, "Bob", "b@x.com", "hash", "333", owner.ID, time.Now().Add(time.Hour))
	require.NoError(t, err)

	ownerToken, err := f.tokens.Issue(ownerPrincipal(owner))
	require.NoError(t, err)
	memberToken, err := f.tokens.Issue(memberPrincipal(member))
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, f.get("/owner-area", ownerToken).Code)
	assert.Equal(t, http.StatusForbidden, f.get("/owner-area", memberToken).Code)
}
