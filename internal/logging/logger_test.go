package logging

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewVerbosity(t *testing.T) {
	logger, err := New(DEFAULT, false)
	require.NoError(t, err)

	assert.True(t, logger.V(DEFAULT).Enabled())
	assert.False(t, logger.V(DEBUG).Enabled())
}

func TestNewRejectsNegative(t *testing.T) {
	_, err := New(-1, false)
	require.Error(t, err)
}

func TestNewTestLoggerEnablesTrace(t *testing.T) {
	assert.True(t, NewTestLogger().V(TRACE).Enabled())
}
