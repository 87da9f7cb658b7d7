// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

// Package httpapi exposes the auth services as a JSON API on gin.
//
// Each handler decodes one request, calls exactly one service operation and
// maps the typed failure to a status code and a safe message. Errors are
// answered as {"error":{"code":...,"message":...}}.
package httpapi
