package internal

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_ProductionWritesJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "production", "info")

	logger.Info("Customer created", "customer_id", "c-1")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "Customer created", entry["msg"])
	assert.Equal(t, "taqa", entry["service"])
	assert.Equal(t, "c-1", entry["customer_id"])
	assert.NotContains(t, entry, "source")
}

func TestNewLogger_DevelopmentWritesTextWithSource(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "development", "debug")

	logger.Debug("Wizard loaded")

	out := buf.String()
	assert.Contains(t, out, `msg="Wizard loaded"`)
	assert.Contains(t, out, "source=")
	assert.Contains(t, out, "logger_test.go")
}

func TestNewLogger_Levels(t *testing.T) {
	tests := []struct {
		level     string
		wantDebug bool
		wantInfo  bool
		wantWarn  bool
	}{
		{"debug", true, true, true},
		{"DEBUG", true, true, true},
		{"info", false, true, true},
		{"warn", false, false, true},
		{"error", false, false, false},
		{"", false, true, true},
		{"verbose", false, true, true},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var buf bytes.Buffer
			logger := NewLogger(&buf, "production", tt.level)

			logger.Debug("d")
			logger.Info("i")
			logger.Warn("w")

			out := buf.String()
			assert.Equal(t, tt.wantDebug, bytes.Contains([]byte(out), []byte(`"msg":"d"`)))
			assert.Equal(t, tt.wantInfo, bytes.Contains([]byte(out), []byte(`"msg":"i"`)))
			assert.Equal(t, tt.wantWarn, bytes.Contains([]byte(out), []byte(`"msg":"w"`)))
		})
	}
}

func TestNewLogger_RedactsCredentials(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "production", "info")

	logger.Info("Signed in", "token", "tok-123", "Authorization", "Bearer tok-123", "password", "hunter2", "email", "a@b.co")

	out := buf.String()
	assert.NotContains(t, out, "tok-123")
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, `"token":"[redacted]"`)
	assert.Contains(t, out, `"email":"a@b.co"`)
}
