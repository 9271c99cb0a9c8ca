package echo

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	echolib "github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.pilab.hu/authgate/cache"
	"go.pilab.hu/authgate/domain"
	serrors "go.pilab.hu/authgate/errors"
	"go.pilab.hu/authgate/middleware"
	"go.pilab.hu/authgate/services"
)

const internalKey = "internal-test-key"

type staticSubjects map[string]*domain.Subject

func (s staticSubjects) GetSubjectByID(_ context.Context, id string) (*domain.Subject, error) {
	subject, ok := s[id]
	if !ok {
		return nil, serrors.ErrSubjectNotFound
	}
	return subject, nil
}

type apiFixture struct {
	e        *echolib.Echo
	subjects staticSubjects
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	signer, err := services.NewTokenSigner("HS256", "0123456789abcdef0123456789abcdef", "", "")
	require.NoError(t, err)
	codec := services.NewTokenCodec(signer, "authgate-test", "platform-services")

	distributed := cache.NewMemoryCache()
	t.Cleanup(func() { distributed.Close() })

	subjects := staticSubjects{
		"user-1": {ID: "user-1", Email: "u1@example.com", Role: domain.RoleCustomer, Status: domain.AccountStatusActive},
		"user-2": {ID: "user-2", Email: "u2@example.com", Role: domain.RoleCustomer, Status: domain.AccountStatusSuspended},
	}

	tokens := services.NewTokenService(codec, services.NewRevocationStore(distributed),
		subjects, nil, distributed, time.Hour, 30*24*time.Hour)
	t.Cleanup(tokens.Close)

	e := echolib.New()
	NewAuthAPI(tokens, subjects).RegisterRoutes(e,
		middleware.AuthConfig{Verifier: tokens, InternalAPIKey: internalKey},
		middleware.IdempotencyConfig{ServiceName: "authgate-test", Cache: distributed})

	return &apiFixture{e: e, subjects: subjects}
}

// issueAsInternal obtains a token pair the way a trusted upstream service
// would, via the internal header bypass.
func (f *apiFixture) issueAsInternal(t *testing.T, subjectID string) (tokenResponse, *httptest.ResponseRecorder) {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/auth/token",
		strings.NewReader(`{"subject_id":"`+subjectID+`"}`))
	req.Header.Set(echolib.HeaderContentType, echolib.MIMEApplicationJSON)
	req.Header.Set(middleware.HeaderInternalAPIKey, internalKey)
	req.Header.Set(middleware.HeaderServiceName, "login-service")
	req.Header.Set(middleware.HeaderUserID, "login-service")
	req.Header.Set(middleware.HeaderUserRole, domain.RoleAdmin)

	rec := httptest.NewRecorder()
	f.e.ServeHTTP(rec, req)

	var resp tokenResponse
	if rec.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return resp, rec
}

func TestIssueHandler(t *testing.T) {
	f := newAPIFixture(t)

	resp, rec := f.issueAsInternal(t, "user-1")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Greater(t, resp.ExpiresIn, 0)

	_, rec = f.issueAsInternal(t, "nobody")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	_, rec = f.issueAsInternal(t, "user-2")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestIssueHandler_RequiresPermission(t *testing.T) {
	f := newAPIFixture(t)

	pair, rec := f.issueAsInternal(t, "user-1")
	require.Equal(t, http.StatusOK, rec.Code)

	// A customer bearer token cannot mint tokens for other subjects.
	req := httptest.NewRequest(http.MethodPost, "/auth/token", strings.NewReader(`{"subject_id":"user-1"}`))
	req.Header.Set(echolib.HeaderContentType, echolib.MIMEApplicationJSON)
	req.Header.Set(echolib.HeaderAuthorization, "Bearer "+pair.AccessToken)
	rec2 := httptest.NewRecorder()
	f.e.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusForbidden, rec2.Code)
}

func TestRefreshHandler(t *testing.T) {
	f := newAPIFixture(t)

	pair, rec := f.issueAsInternal(t, "user-1")
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh",
		strings.NewReader(`{"refresh_token":"`+pair.RefreshToken+`"}`))
	req.Header.Set(echolib.HeaderContentType, echolib.MIMEApplicationJSON)
	rec2 := httptest.NewRecorder()
	f.e.ServeHTTP(rec2, req)

	require.Equal(t, http.StatusOK, rec2.Code)
	var resp tokenResponse
	require.NoError(t, json.Unmarshal(rec2.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.Empty(t, resp.RefreshToken)
	assert.Equal(t, "Bearer", resp.TokenType)
}

func TestRefreshHandler_Rejections(t *testing.T) {
	f := newAPIFixture(t)

	_, rec := f.issueAsInternal(t, "user-2")
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Garbage refresh token maps to 401, not 5xx.
	req := httptest.NewRequest(http.MethodPost, "/auth/refresh",
		strings.NewReader(`{"refresh_token":"garbage"}`))
	req.Header.Set(echolib.HeaderContentType, echolib.MIMEApplicationJSON)
	rec2 := httptest.NewRecorder()
	f.e.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusUnauthorized, rec2.Code)

	// Missing body field is a 400.
	req = httptest.NewRequest(http.MethodPost, "/auth/refresh", strings.NewReader(`{}`))
	req.Header.Set(echolib.HeaderContentType, echolib.MIMEApplicationJSON)
	rec3 := httptest.NewRecorder()
	f.e.ServeHTTP(rec3, req)
	assert.Equal(t, http.StatusBadRequest, rec3.Code)
}

func TestRefreshHandler_SuspendedAccountIs401(t *testing.T) {
	f := newAPIFixture(t)

	pair, rec := f.issueAsInternal(t, "user-1")
	require.Equal(t, http.StatusOK, rec.Code)

	f.subjects["user-1"].Status = domain.AccountStatusSuspended

	req := httptest.NewRequest(http.MethodPost, "/auth/refresh",
		strings.NewReader(`{"refresh_token":"`+pair.RefreshToken+`"}`))
	req.Header.Set(echolib.HeaderContentType, echolib.MIMEApplicationJSON)
	rec2 := httptest.NewRecorder()
	f.e.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusUnauthorized, rec2.Code)
}

func TestLogoutHandler_RevokesBearer(t *testing.T) {
	f := newAPIFixture(t)

	pair, rec := f.issueAsInternal(t, "user-1")
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set(echolib.HeaderAuthorization, "Bearer "+pair.AccessToken)
	rec2 := httptest.NewRecorder()
	f.e.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusOK, rec2.Code)

	// The token no longer authenticates.
	req = httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set(echolib.HeaderAuthorization, "Bearer "+pair.AccessToken)
	rec3 := httptest.NewRecorder()
	f.e.ServeHTTP(rec3, req)
	assert.Equal(t, http.StatusUnauthorized, rec3.Code)
}

func TestRevokeAllHandler_OwnershipEnforced(t *testing.T) {
	f := newAPIFixture(t)

	pair, rec := f.issueAsInternal(t, "user-1")
	require.Equal(t, http.StatusOK, rec.Code)

	// A customer cannot revoke another user's tokens.
	req := httptest.NewRequest(http.MethodPost, "/auth/users/user-9/revoke-all", nil)
	req.Header.Set(echolib.HeaderAuthorization, "Bearer "+pair.AccessToken)
	rec2 := httptest.NewRecorder()
	f.e.ServeHTTP(rec2, req)
	assert.Equal(t, http.StatusForbidden, rec2.Code)

	// Revoking their own is allowed and invalidates outstanding tokens.
	req = httptest.NewRequest(http.MethodPost, "/auth/users/user-1/revoke-all", nil)
	req.Header.Set(echolib.HeaderAuthorization, "Bearer "+pair.AccessToken)
	rec3 := httptest.NewRecorder()
	f.e.ServeHTTP(rec3, req)
	assert.Equal(t, http.StatusOK, rec3.Code)

	req = httptest.NewRequest(http.MethodPost, "/auth/logout", nil)
	req.Header.Set(echolib.HeaderAuthorization, "Bearer "+pair.AccessToken)
	rec4 := httptest.NewRecorder()
	f.e.ServeHTTP(rec4, req)
	assert.Equal(t, http.StatusUnauthorized, rec4.Code)
}
