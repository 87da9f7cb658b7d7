// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

// Package errutil holds helpers for logging and asserting oops errors.
package errutil

import (
	"context"
	"log/slog"

	"github.com/samber/oops"
)

// LogError logs err at error level with its oops code and context, if any.
func LogError(ctx context.Context, logger *slog.Logger, msg string, err error, attrs ...any) {
	logAt(ctx, logger, slog.LevelError, msg, err, attrs)
}

// LogWarn logs err at warn level. Used for best-effort side effects whose
// failure must not change the outcome of the primary operation.
func LogWarn(ctx context.Context, logger *slog.Logger, msg string, err error, attrs ...any) {
	logAt(ctx, logger, slog.LevelWarn, msg, err, attrs)
}

// Code returns the oops code of err, or "" for plain errors.
func Code(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if code, ok := any(oopsErr.Code()).(string); ok {
			return code
		}
	}
	return ""
}

func logAt(ctx context.Context, logger *slog.Logger, level slog.Level, msg string, err error, extra []any) {
	if logger == nil {
		logger = slog.Default()
	}
	attrs := make([]any, 0, len(extra)+6)
	attrs = append(attrs, extra...)
	if oopsErr, ok := oops.AsOops(err); ok {
		attrs = append(attrs, "error", oopsErr.Error())
		if code := Code(err); code != "" {
			attrs = append(attrs, "code", code)
		}
		if octx := oopsErr.Context(); len(octx) > 0 {
			attrs = append(attrs, "context", octx)
		}
	} else {
		attrs = append(attrs, "error", err)
	}
	logger.Log(ctx, level, msg, attrs...)
}
