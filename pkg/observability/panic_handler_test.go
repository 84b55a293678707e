package observability

import (
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoverToError(t *testing.T) {
	logger, hook := test.NewNullLogger()

	run := func() (err error) {
		defer RecoverToError(logger, "unit", &err)
		panic("boom")
	}

	err := run()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panic in unit: boom")
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, "unit", hook.LastEntry().Data["context"])
}

func TestRecoverToError_NoPanicKeepsError(t *testing.T) {
	logger, hook := test.NewNullLogger()
	sentinel := errors.New("plain failure")

	run := func() (err error) {
		defer RecoverToError(logger, "unit", &err)
		return sentinel
	}

	assert.ErrorIs(t, run(), sentinel)
	assert.Empty(t, hook.AllEntries())
}
