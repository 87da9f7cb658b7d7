// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

package store_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/eventhub/eventauth/internal/store"
	"github.com/eventhub/eventauth/pkg/errutil"
)

func TestConnect_MissingURL(t *testing.T) {
	_, err := store.Connect(context.Background(), "", store.ConnectOptions{})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "DB_URL_MISSING")
}

func TestConnect_InvalidURL(t *testing.T) {
	_, err := store.Connect(context.Background(), "postgres://host:notaport/db", store.ConnectOptions{})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "DB_CONFIG_INVALID")
}

func TestConnect_GivesUpAfterMaxAttempts(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Port 1 on loopback refuses connections immediately.
	_, err := store.Connect(ctx, "postgres://u:p@127.0.0.1:1/db?connect_timeout=1", store.ConnectOptions{
		MaxAttempts: 2,
		BaseDelay:   time.Millisecond,
		Logger:      slog.New(slog.DiscardHandler),
	})
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "DB_CONNECT_FAILED")
	errutil.AssertErrorContext(t, err, "attempts", 2)
}
