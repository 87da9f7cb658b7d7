// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

package httpapi

import (
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/eventhub/eventauth/internal/auth"
	"github.com/eventhub/eventauth/internal/logging"
	"github.com/eventhub/eventauth/internal/observability"
)

// RequestIDHeader carries the request id on requests and responses.
const RequestIDHeader = "X-Request-ID"

const (
	maxRequestIDLength = 128
	principalKey       = "principal"
	unmatchedRoute     = "unmatched"
)

// requestID reuses a caller-supplied X-Request-ID or generates one, echoes it
// on the response and stores it in the request context for logging.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(RequestIDHeader))
		if id == "" || len(id) > maxRequestIDLength {
			id = uuid.NewString()
		}
		c.Writer.Header().Set(RequestIDHeader, id)
		c.Request = c.Request.WithContext(logging.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

func accessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.Writer.Status() >= http.StatusInternalServerError {
			level = slog.LevelWarn
		}
		logger.Log(c.Request.Context(), level, "request completed",
			"method", c.Request.Method,
			"route", routeOf(c),
			"status", c.Writer.Status(),
			"latency", time.Since(start),
			"ip", c.ClientIP(),
		)
	}
}

func observe(m *observability.Metrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		m.ObserveRequest(routeOf(c), c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}

// recoverPanics turns a panic into a logged 500 with the standard error body.
func (a *API) recoverPanics() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(io.Discard, func(c *gin.Context, rec any) {
		a.logger.ErrorContext(c.Request.Context(), "panic serving request",
			"route", routeOf(c),
			"panic", rec)
		abortWithError(c, http.StatusInternalServerError, ErrorDetail{Code: CodeInternal, Message: internalMessage})
	})
}

// bearer authenticates the Authorization header and stores the principal.
func (a *API) bearer() gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
		token = strings.TrimSpace(token)
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			abortWithError(c, http.StatusUnauthorized, ErrorDetail{
				Code:    CodeUnauthorized,
				Message: "missing bearer token",
			})
			return
		}

		principal, err := a.auth.Authenticate(c.Request.Context(), token)
		if err != nil {
			a.respondError(c, "authenticate", errorMapping{}, err)
			return
		}
		c.Set(principalKey, principal)
		c.Next()
	}
}

func principalFrom(c *gin.Context) (*auth.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return nil, false
	}
	p, ok := v.(*auth.Principal)
	return p, ok
}

func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return unmatchedRoute
}
