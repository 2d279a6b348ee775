package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"shop-service/internal/access"
	"shop-service/internal/apperr"
	"shop-service/internal/util"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const actorKey = "actor"

// SessionLookup resolves bearer tokens. It is implemented by redisclient.Client.
type SessionLookup interface {
	LookupSession(ctx context.Context, token string) (userID int64, ok bool, err error)
}

// authMiddleware attaches the acting user to the request. A request without
// credentials is anonymous; a request with unknown credentials is rejected.
func (h *Handler) authMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, present := bearerToken(c.GetHeader("Authorization"))
		if !present {
			c.Set(actorKey, access.Anonymous)
			c.Next()
			return
		}

		ctx := c.Request.Context()
		userID, ok, err := h.sessions.LookupSession(ctx, token)
		if err != nil {
			h.abort(c, apperr.Persistence(err, "failed to look up session"))
			return
		}
		if ok {
			// sessions of removed users may outlive a failed revocation
			if _, err := h.repo.GetUser(ctx, userID); err != nil {
				if apperr.KindOf(err) != apperr.KindNotFound {
					h.abort(c, err)
					return
				}
				ok = false
			}
		}
		if !ok {
			h.abort(c, apperr.Unauthenticated("invalid token"))
			return
		}

		c.Set(actorKey, access.User(userID))
		c.Next()
	}
}

// bearerToken accepts "Bearer <token>" and "Token <token>".
func bearerToken(header string) (string, bool) {
	if header == "" {
		return "", false
	}
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found {
		return "", true
	}
	switch strings.ToLower(scheme) {
	case "bearer", "token":
		return strings.TrimSpace(token), true
	}
	return "", true
}

func actorFrom(c *gin.Context) access.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(access.Actor); ok {
			return actor
		}
	}
	return access.Anonymous
}

// abort writes the status mapped from the error kind. Persistence failures
// are logged and reported without their cause.
func (h *Handler) abort(c *gin.Context, err error) {
	status := apperr.HTTPStatus(err)
	detail := err.Error()
	if status == http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		detail = "internal server error"
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error":   apperr.KindOf(err).String(),
		"details": detail,
	})
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		util.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, status).Observe(duration)
		util.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, status).Inc()
	}
}

// TrimTrailingSlash serves "/shops/" and "/shops" alike by dropping the
// trailing slash before routing.
func TrimTrailingSlash(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if p := r.URL.Path; len(p) > 1 && strings.HasSuffix(p, "/") {
			r.URL.Path = strings.TrimSuffix(p, "/")
			r.URL.RawPath = strings.TrimSuffix(r.URL.RawPath, "/")
		}
		next.ServeHTTP(w, r)
	})
}
