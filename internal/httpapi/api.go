// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/samber/oops"

	"github.com/eventhub/eventauth/internal/auth"
	"github.com/eventhub/eventauth/internal/observability"
)

// Registrar creates accounts.
type Registrar interface {
	Register(ctx context.Context, req auth.RegisterRequest) (*auth.PublicUser, error)
}

// Authenticator logs users in and verifies bearer tokens.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	Authenticate(ctx context.Context, token string) (*auth.Principal, error)
}

// Recoverer runs the password reset flow.
type Recoverer interface {
	RequestCode(ctx context.Context, email string) (*auth.CodeIssued, error)
	VerifyCode(ctx context.Context, userID, code string) (*auth.CodeVerified, error)
	ResetPassword(ctx context.Context, resetID, newPassword string) error
}

// Dependencies are the collaborators of the API.
type Dependencies struct {
	Registration Registrar
	Auth         Authenticator
	Recovery     Recoverer
	Logger       *slog.Logger
	// Metrics may be nil.
	Metrics *observability.Metrics
	// UniformLoginErrors answers unknown emails on login with the 401 used
	// for wrong passwords.
	UniformLoginErrors bool
}

// API is the HTTP surface of the auth services.
type API struct {
	registration Registrar
	auth         Authenticator
	recovery     Recoverer
	logger       *slog.Logger
	metrics      *observability.Metrics
	uniformLogin bool
	engine       *gin.Engine
}

// New builds the API and its routes.
func New(deps Dependencies) (*API, error) {
	if deps.Registration == nil {
		return nil, oops.Errorf("registration service is required")
	}
	if deps.Auth == nil {
		return nil, oops.Errorf("auth service is required")
	}
	if deps.Recovery == nil {
		return nil, oops.Errorf("recovery service is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	a := &API{
		registration: deps.Registration,
		auth:         deps.Auth,
		recovery:     deps.Recovery,
		logger:       logger,
		metrics:      deps.Metrics,
		uniformLogin: deps.UniformLoginErrors,
	}
	a.engine = a.routes()
	return a, nil
}

// Handler returns the root http.Handler.
func (a *API) Handler() http.Handler {
	return a.engine
}

func (a *API) routes() *gin.Engine {
	router := gin.New()
	router.Use(requestID())
	router.Use(accessLog(a.logger))
	router.Use(observe(a.metrics))
	router.Use(a.recoverPanics())
	router.NoRoute(func(c *gin.Context) {
		abortWithError(c, http.StatusNotFound, ErrorDetail{Code: CodeRouteNotFound, Message: "route not found"})
	})

	group := router.Group("/auth")
	{
		group.POST("/register", a.register)
		group.POST("/login", a.login)
		group.POST("/forgot-password", a.forgotPassword)
		group.POST("/verify-code", a.verifyCode)
		group.POST("/reset-password", a.resetPassword)
	}

	protected := router.Group("/auth")
	protected.Use(a.bearer())
	{
		protected.GET("/me", a.me)
	}

	return router
}
