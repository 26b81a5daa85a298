package telemetry

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tphakala/sentinel/internal/errors"
)

func TestInit_DisabledIsNoop(t *testing.T) {
	require.NoError(t, Init(Settings{Enabled: false}))
	assert.False(t, Enabled())

	// Must not panic or block while disabled.
	CaptureError(errors.Newf("ignored").Build(), "test")
	CaptureError(nil, "test")
	Flush(10 * time.Millisecond)
}
