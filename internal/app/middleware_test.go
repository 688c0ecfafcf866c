package app

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/gorilla/mux"
	"github.com/obrafin/obrafin/internal/config"
	"github.com/obrafin/obrafin/pkg/user"
	"github.com/stretchr/testify/assert"
)

func probeRouter() *mux.Router {
	deps := &Dependencies{
		UserService: user.NewUserService(user.NewStubUserRepository(
			user.User{Id: 1, Uid: "u-1", TenantId: 7, Username: "ana", Role: user.RoleOwner},
		)),
	}
	cfg := config.Defaults()
	cfg.Metrics.Enabled = false

	r := mux.NewRouter()
	SetupMiddleware(r, deps, cfg)
	r.HandleFunc("/probe", func(w http.ResponseWriter, req *http.Request) {
		tenantId, err := user.CurrentTenantId(req.Context())
		if err != nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		_, _ = w.Write([]byte(strconv.Itoa(tenantId)))
	})
	return r
}

func TestMiddleware_UserPropagation(t *testing.T) {
	r := probeRouter()

	t.Run("should put the user into the context", func(t *testing.T) {
		// given
		req := httptest.NewRequest(http.MethodGet, "/probe", nil)
		req.Header.Set("X-User-Id", "u-1")
		rr := httptest.NewRecorder()

		// when
		r.ServeHTTP(rr, req)

		// then
		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "7", rr.Body.String())
	})

	t.Run("should reject an unknown user", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/probe", nil)
		req.Header.Set("X-User-Id", "nobody")
		rr := httptest.NewRecorder()

		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusForbidden, rr.Code)
	})

	t.Run("should pass anonymous requests through", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/probe", nil)
		rr := httptest.NewRecorder()

		r.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNoContent, rr.Code)
	})
}

func TestMiddleware_RequestId(t *testing.T) {
	r := probeRouter()

	t.Run("should generate a request id", func(t *testing.T) {
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/probe", nil))

		assert.Len(t, rr.Header().Get(requestIdHeader), 36)
	})

	t.Run("should echo the caller's request id", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/probe", nil)
		req.Header.Set(requestIdHeader, "abc-123")
		rr := httptest.NewRecorder()

		r.ServeHTTP(rr, req)

		assert.Equal(t, "abc-123", rr.Header().Get(requestIdHeader))
	})
}
