// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/eventhub/eventauth/internal/auth"
	"github.com/eventhub/eventauth/pkg/errutil"
)

// Codes produced by the transport itself.
const (
	CodeMalformedRequest = "REQUEST_MALFORMED"
	CodeUnauthorized     = "UNAUTHORIZED"
	CodeInternal         = "INTERNAL"
	CodeRouteNotFound    = "ROUTE_NOT_FOUND"
)

const internalMessage = "internal server error"

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail carries a stable code and a message safe to show the caller.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// errorMapping decides status, code and message for one failed operation.
type errorMapping struct {
	// collapseNotFound, when set, answers not-found failures as 400 with this code.
	collapseNotFound string
	// uniformAuth answers not-found failures like invalid credentials.
	uniformAuth bool
}

func (m errorMapping) resolve(err error) (int, ErrorDetail) {
	code := errutil.Code(err)
	switch auth.KindOf(err) {
	case auth.KindValidation:
		return http.StatusBadRequest, ErrorDetail{Code: code, Message: err.Error()}
	case auth.KindNotFound:
		if m.uniformAuth {
			return http.StatusUnauthorized, ErrorDetail{
				Code:    auth.CodeInvalidCredentials,
				Message: "invalid email or password",
			}
		}
		if m.collapseNotFound != "" {
			return http.StatusBadRequest, ErrorDetail{
				Code:    m.collapseNotFound,
				Message: "invalid or expired request",
			}
		}
		return http.StatusNotFound, ErrorDetail{Code: code, Message: err.Error()}
	case auth.KindAuthorization:
		return http.StatusUnauthorized, ErrorDetail{Code: code, Message: err.Error()}
	case auth.KindConflict:
		return http.StatusConflict, ErrorDetail{Code: code, Message: err.Error()}
	default:
		return http.StatusInternalServerError, ErrorDetail{Code: CodeInternal, Message: internalMessage}
	}
}

// respondError writes the mapped error and logs internal failures.
func (a *API) respondError(c *gin.Context, op string, m errorMapping, err error) {
	status, detail := m.resolve(err)
	if status == http.StatusInternalServerError {
		errutil.LogError(c.Request.Context(), a.logger, "request failed", err,
			"operation", op)
	}
	a.metrics.RecordOutcome(op, errutil.Code(err))
	abortWithError(c, status, detail)
}

func abortWithError(c *gin.Context, status int, detail ErrorDetail) {
	c.AbortWithStatusJSON(status, ErrorBody{Error: detail})
}
