package logger

import (
	"testing"

	sdklogging "github.com/Layr-Labs/eigensdk-go/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnsureLogger(t *testing.T) {
	l := EnsureLogger(nil)
	require.NotNil(t, l)
	assert.NotPanics(t, func() {
		l.Info("ignored", "key", "value")
		l.With("key", "value").WithComponent("paymaster").Warnf("ignored %d", 1)
	})
	assert.NoError(t, l.Sync())

	dev, err := New(sdklogging.Development)
	require.NoError(t, err)
	assert.Same(t, dev, EnsureLogger(dev))
}
