package app

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/obrafin/obrafin/internal/config"
	"github.com/obrafin/obrafin/internal/metrics"
	"github.com/obrafin/obrafin/pkg/user"
	log "github.com/sirupsen/logrus"
)

const requestIdHeader = "X-Request-Id"

// SetupMiddleware wires all HTTP middlewares for the application.
func SetupMiddleware(r *mux.Router, deps *Dependencies, cfg config.Application) {

	r.Use(requestLogging)

	if cfg.Metrics.Enabled {
		r.Use(metrics.Middleware)
	}

	// Propagate X-User-Id header into context for downstream services
	r.Use(userPropagation(deps.UserService, cfg.Metrics.Path))
}

func requestLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		requestId := req.Header.Get(requestIdHeader)
		if requestId == "" {
			requestId = uuid.NewString()
		}
		w.Header().Set(requestIdHeader, requestId)
		start := time.Now()
		next.ServeHTTP(w, req)
		log.WithFields(log.Fields{
			"request_id": requestId,
			"method":     req.Method,
			"path":       req.URL.Path,
			"duration":   time.Since(start).String(),
		}).Debug("request handled")
	})
}

func userPropagation(userService user.Service, metricsPath string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			userIdHeader := req.Header.Get("X-User-Id")
			ctx := req.Context()

			if userIdHeader == "" || req.URL.Path == metricsPath {
				next.ServeHTTP(w, req)
				return
			}

			u, err := userService.GetUserByUid(ctx, userIdHeader)
			if err != nil {
				if errors.Is(err, user.ErrUserNotFound) {
					log.Debugf("user not found: %s", userIdHeader)
					http.Error(w, "user not found", http.StatusForbidden)
					return
				}
				log.Errorf("failed to get user: %v", err)
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			log.Debugf("user found: %s", u.Uid)
			next.ServeHTTP(w, req.WithContext(user.WithUser(ctx, u)))
		})
	}
}
