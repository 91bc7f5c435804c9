package color

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateStyle(t *testing.T) {
	assert.Equal(t, SuccessStyle.GetForeground(), StateStyle("running").GetForeground())
	assert.Equal(t, WarningStyle.GetForeground(), StateStyle("starting").GetForeground())
	assert.Equal(t, FailureStyle.GetForeground(), StateStyle("exited").GetForeground())
	assert.Equal(t, MutedStyle.GetForeground(), StateStyle("whatever").GetForeground())
}
