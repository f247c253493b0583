package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger(t *testing.T) {
	log, err := NewLogger("debug", "json")
	assert.NoError(t, err)
	assert.True(t, log.Core().Enabled(zapcore.DebugLevel))

	log, err = NewLogger("warn", "console")
	assert.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.InfoLevel))

	_, err = NewLogger("loud", "console")
	assert.Error(t, err)
}

func TestNewLogger_Off(t *testing.T) {
	log, err := NewLogger("OFF", "json")
	assert.NoError(t, err)
	assert.False(t, log.Core().Enabled(zapcore.ErrorLevel))
}
