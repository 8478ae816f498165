package contract

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	assert.NotPanics(t, func() { Check(true, "fine") })

	defer func() {
		r := recover()
		require.NotNil(t, r)
		err, ok := r.(error)
		require.True(t, ok, "panic value should be an error")

		var v *Violation
		require.True(t, errors.As(err, &v))
		assert.Equal(t, "no current GC phase", v.Message)
		assert.Equal(t, "contract violation: no current GC phase", err.Error())
	}()
	Check(false, "no current GC phase")
}

func TestCheckf(t *testing.T) {
	assert.NotPanics(t, func() { Checkf(true, "worker %d", 3) })
	assert.PanicsWithError(t, "contract violation: worker 3 already set", func() {
		Checkf(false, "worker %d already set", 3)
	})
}

func TestDebugCheck(t *testing.T) {
	if !Debug {
		assert.NotPanics(t, func() { DebugCheck(false, "ignored in release builds") })
		return
	}
	assert.PanicsWithError(t, "contract violation: must be set", func() {
		DebugCheck(false, "must be set")
	})
}
