package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"pos-device-service/internal/config"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.LoggingConfig
		wantErr bool
	}{
		{"stdout json", config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, false},
		{"stderr console", config.LoggingConfig{Level: "debug", Format: "console", Output: "stderr"}, false},
		{"rotated file", config.LoggingConfig{Level: "warn", Output: filepath.Join(t.TempDir(), "logs", "svc.log"), MaxSize: 1}, false},
		{"bad level", config.LoggingConfig{Level: "loud", Output: "stdout"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := NewLogger(&tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			logger.Info("hello")
		})
	}
}

func TestServiceLogger_LogAPIRequestLevels(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	sl := NewServiceLogger(zap.New(core), "http-server")

	sl.LogAPIRequest("GET", "/health", "test", "127.0.0.1", http.StatusOK, time.Millisecond)
	sl.LogAPIRequest("POST", "/api/v1/sales/finalize", "test", "127.0.0.1", http.StatusConflict, time.Millisecond)
	sl.LogAPIRequest("GET", "/api/v1/hardware/status", "test", "127.0.0.1", http.StatusInternalServerError, time.Millisecond)

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zap.InfoLevel, entries[0].Level)
	assert.Equal(t, zap.WarnLevel, entries[1].Level)
	assert.Equal(t, zap.ErrorLevel, entries[2].Level)
	assert.Equal(t, "http-server", entries[0].ContextMap()["service"])
}

func TestServiceLogger_LogDatabaseQuery(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	sl := NewServiceLogger(zap.New(core), "device-repository")

	sl.LogDatabaseQuery("list devices", time.Millisecond, nil)
	sl.LogDatabaseQuery("list devices", time.Millisecond, errors.New("conn refused"))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zap.DebugLevel, entries[0].Level)
	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
}

func TestOperationLogger_Progress(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	ol := NewOperationLogger(zap.New(core), "finalize_operation", "op-1")

	ol.Progress("Receipt print progress", 0.5)

	entries := logs.FilterMessage("Receipt print progress").All()
	require.Len(t, entries, 1)
	assert.Equal(t, 0.5, entries[0].ContextMap()["progress"])
	assert.Equal(t, "op-1", entries[0].ContextMap()["operation_id"])
}

func TestLogPanic(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	assert.NotPanics(t, func() {
		defer LogPanic(logger)
		panic("printer exploded")
	})
	assert.Equal(t, 1, logs.FilterMessage("Background task panicked").Len())
}

func TestResponses(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("error", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Set("request_id", "req-1")

		ErrorResponse(c, http.StatusServiceUnavailable, "Printer offline", errors.New("timeout"))

		var resp APIResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.False(t, resp.Success)
		assert.Equal(t, "req-1", resp.RequestID)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "DEVICE_UNAVAILABLE", resp.Error.Code)
		assert.Equal(t, "timeout", resp.Error.Details)
	})

	t.Run("validation", func(t *testing.T) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)

		ValidationErrorResponse(c, map[string]string{"Name": "required"})

		var resp APIResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, http.StatusBadRequest, w.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
		assert.Empty(t, resp.RequestID)
	})
}
