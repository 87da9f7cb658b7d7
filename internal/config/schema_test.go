// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 EventHub Contributors

package config

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eventhub/eventauth/pkg/errutil"
)

func TestSchema_DescribesSections(t *testing.T) {
	data, err := Schema()
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, SchemaID, doc["$id"])

	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	for _, key := range []string{"http", "metrics", "log", "storage", "database", "token", "recovery", "policy", "notify"} {
		assert.Contains(t, props, key)
	}

	token := props["token"].(map[string]any)["properties"].(map[string]any)
	ttl := token["ttl"].(map[string]any)
	assert.Equal(t, "string", ttl["type"], "durations are written as strings")
}

func TestValidateYAML(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr bool
	}{
		{"minimal", "storage:\n  driver: memory\n", false},
		{"durations", "token:\n  ttl: 1h30m\nrecovery:\n  code_ttl: 15m\n", false},
		{"policy", "policy:\n  min_length: 8\n  require_upper: true\n  default_role: admin\n", false},
		{"unknown top-level key", "telnet:\n  addr: :4201\n", true},
		{"unknown nested key", "token:\n  algorithm: none\n", true},
		{"bad storage driver", "storage:\n  driver: sqlite\n", true},
		{"bad duration", "token:\n  ttl: forever\n", true},
		{"numeric duration", "token:\n  ttl: 3600\n", true},
		{"min length out of range", "policy:\n  min_length: 0\n", true},
		{"bad role", "policy:\n  default_role: root\n", true},
		{"empty", "   \n", true},
		{"not yaml", "token: [unclosed\n", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateYAML([]byte(tt.yaml))
			if tt.wantErr {
				errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestValidateFile(t *testing.T) {
	good := writeFile(t, "log:\n  format: text\n")
	assert.NoError(t, ValidateFile(good))

	bad := writeFile(t, "log:\n  format: xml\n")
	err := ValidateFile(bad)
	errutil.AssertErrorCode(t, err, "CONFIG_INVALID")
	errutil.AssertErrorContext(t, err, "path", bad)

	err = ValidateFile(filepath.Join(t.TempDir(), "missing.yaml"))
	errutil.AssertErrorCode(t, err, "CONFIG_LOAD_FAILED")
}
