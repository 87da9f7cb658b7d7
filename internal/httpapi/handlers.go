// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/eventhub/eventauth/internal/auth"
)

const maxBodyBytes = 1 << 20

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Role      string `json:"role"`
}

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse is returned by POST /auth/login.
type LoginResponse struct {
	Token     string `json:"token"`
	Role      string `json:"role"`
	FirstName string `json:"firstName"`
}

// ForgotPasswordRequest is the body of POST /auth/forgot-password.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// VerifyCodeRequest is the body of POST /auth/verify-code.
type VerifyCodeRequest struct {
	UserID string `json:"userId"`
	Code   string `json:"code"`
}

// ResetPasswordRequest is the body of POST /auth/reset-password.
type ResetPasswordRequest struct {
	ResetID     string `json:"resetId"`
	NewPassword string `json:"newPassword"`
}

// MessageResponse is a plain acknowledgement.
type MessageResponse struct {
	Message string `json:"message"`
}

// ForgotPasswordResponse is returned by POST /auth/forgot-password.
type ForgotPasswordResponse struct {
	Message string `json:"message"`
	UserID  string `json:"userId"`
}

// VerifyCodeResponse is returned by POST /auth/verify-code.
type VerifyCodeResponse struct {
	Message string `json:"message"`
	ResetID string `json:"resetId"`
}

// MeResponse is returned by GET /auth/me.
type MeResponse struct {
	UserID    string    `json:"userId"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// bind decodes the JSON body into dst. It answers 400 and returns false when
// the body is not a JSON object of the expected shape.
func bind(c *gin.Context, dst any) bool {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes)
	if err := c.ShouldBindJSON(dst); err != nil {
		abortWithError(c, http.StatusBadRequest, ErrorDetail{
			Code:    CodeMalformedRequest,
			Message: "request body must be a JSON object",
		})
		return false
	}
	return true
}

func (a *API) register(c *gin.Context) {
	var req RegisterRequest
	if !bind(c, &req) {
		return
	}

	_, err := a.registration.Register(c.Request.Context(), auth.RegisterRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Role:      req.Role,
	})
	if err != nil {
		a.respondError(c, "register", errorMapping{}, err)
		return
	}

	a.metrics.RecordOutcome("register", "")
	c.JSON(http.StatusCreated, MessageResponse{Message: "user registered successfully"})
}

func (a *API) login(c *gin.Context) {
	var req LoginRequest
	if !bind(c, &req) {
		return
	}

	res, err := a.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		a.respondError(c, "login", errorMapping{uniformAuth: a.uniformLogin}, err)
		return
	}

	a.metrics.RecordOutcome("login", "")
	c.JSON(http.StatusOK, LoginResponse{
		Token:     res.Token,
		Role:      string(res.Role),
		FirstName: res.FirstName,
	})
}

func (a *API) forgotPassword(c *gin.Context) {
	var req ForgotPasswordRequest
	if !bind(c, &req) {
		return
	}

	issued, err := a.recovery.RequestCode(c.Request.Context(), req.Email)
	if err != nil {
		a.respondError(c, "request_code", errorMapping{}, err)
		return
	}

	a.metrics.RecordOutcome("request_code", "")
	c.JSON(http.StatusOK, ForgotPasswordResponse{
		Message: "verification code sent",
		UserID:  issued.UserID.String(),
	})
}

func (a *API) verifyCode(c *gin.Context) {
	var req VerifyCodeRequest
	if !bind(c, &req) {
		return
	}

	verified, err := a.recovery.VerifyCode(c.Request.Context(), req.UserID, req.Code)
	if err != nil {
		a.respondError(c, "verify_code", errorMapping{collapseNotFound: auth.CodeRecoveryCodeInvalid}, err)
		return
	}

	a.metrics.RecordOutcome("verify_code", "")
	c.JSON(http.StatusOK, VerifyCodeResponse{
		Message: "code verified",
		ResetID: verified.ResetID.String(),
	})
}

func (a *API) resetPassword(c *gin.Context) {
	var req ResetPasswordRequest
	if !bind(c, &req) {
		return
	}

	err := a.recovery.ResetPassword(c.Request.Context(), req.ResetID, req.NewPassword)
	if err != nil {
		a.respondError(c, "reset_password", errorMapping{collapseNotFound: auth.CodeResetInvalid}, err)
		return
	}

	a.metrics.RecordOutcome("reset_password", "")
	c.JSON(http.StatusOK, MessageResponse{Message: "password reset successfully"})
}

func (a *API) me(c *gin.Context) {
	p, ok := principalFrom(c)
	if !ok {
		abortWithError(c, http.StatusUnauthorized, ErrorDetail{Code: CodeUnauthorized, Message: "missing bearer token"})
		return
	}
	c.JSON(http.StatusOK, MeResponse{
		UserID:    p.UserID.String(),
		Role:      string(p.Role),
		ExpiresAt: p.ExpiresAt.UTC(),
	})
}
