package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
)

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	assert.Error(t, err)
}

func TestNewLevels(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		enabled  zapcore.Level
		disabled zapcore.Level
	}{
		{"empty means info", Config{}, zapcore.InfoLevel, zapcore.DebugLevel},
		{"warn", Config{Level: "warn"}, zapcore.WarnLevel, zapcore.InfoLevel},
		{"development", Config{Level: "info", Development: true}, zapcore.InfoLevel, zapcore.DebugLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, err := New(tt.cfg)
			require.NoError(t, err)

			assert.True(t, logger.Core().Enabled(tt.enabled))
			assert.False(t, logger.Core().Enabled(tt.disabled))
		})
	}
}

func TestNamedKeepsCore(t *testing.T) {
	logger, err := New(Config{Level: "error"})
	require.NoError(t, err)

	child := logger.Named("parser")
	require.NotNil(t, child)
	assert.False(t, child.Core().Enabled(zapcore.WarnLevel))
	assert.NotNil(t, NewNop().Named("server"))
}
