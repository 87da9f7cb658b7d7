// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

package auth

import (
	"errors"

	"github.com/eventhub/eventauth/pkg/errutil"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrEmailTaken is returned by repositories when an email is already registered.
var ErrEmailTaken = errors.New("email already registered")

// Error codes raised by the services.
const (
	CodeMissingField          = "AUTH_MISSING_FIELD"
	CodeInvalidEmail          = "AUTH_INVALID_EMAIL"
	CodeInvalidRole           = "AUTH_INVALID_ROLE"
	CodePasswordTooWeak       = "AUTH_PASSWORD_TOO_WEAK"
	CodeEmailInUse            = "AUTH_EMAIL_IN_USE"
	CodeUserNotFound          = "AUTH_USER_NOT_FOUND"
	CodeAccountMisconfigured  = "AUTH_ACCOUNT_MISCONFIGURED"
	CodeInvalidCredentials    = "AUTH_INVALID_CREDENTIALS"
	CodeTokenInvalid          = "TOKEN_INVALID"
	CodeTokenExpired          = "TOKEN_EXPIRED"
	CodeRecoveryCodeMalformed = "RECOVERY_CODE_MALFORMED"
	CodeRecoveryCodeInvalid   = "RECOVERY_INVALID_CODE"
	CodeResetInvalid          = "RECOVERY_RESET_INVALID"
)

// Kind groups error codes into the categories the transport layer maps to
// responses.
type Kind int

// Error kinds.
const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindAuthorization
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindAuthorization:
		return "authorization"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

var codeKinds = map[string]Kind{
	CodeMissingField:          KindValidation,
	CodeInvalidEmail:          KindValidation,
	CodeInvalidRole:           KindValidation,
	CodePasswordTooWeak:       KindValidation,
	CodeRecoveryCodeMalformed: KindValidation,
	CodeRecoveryCodeInvalid:   KindValidation,
	CodeResetInvalid:          KindValidation,
	CodeUserNotFound:          KindNotFound,
	CodeInvalidCredentials:    KindAuthorization,
	CodeTokenInvalid:          KindAuthorization,
	CodeTokenExpired:          KindAuthorization,
	CodeEmailInUse:            KindConflict,
}

// KindOf classifies err by its oops code. Unknown codes and plain errors are
// KindInternal. AUTH_ACCOUNT_MISCONFIGURED is internal on purpose: the caller
// did nothing wrong.
func KindOf(err error) Kind {
	if err == nil {
		return KindInternal
	}
	if kind, ok := codeKinds[errutil.Code(err)]; ok {
		return kind
	}
	return KindInternal
}
