package logging

import (
	"testing"

	"github.com/apex/log"
	"github.com/stretchr/testify/assert"
)

func TestSetup(t *testing.T) {
	assert.NoError(t, Setup("debug", "json"))
	assert.Equal(t, log.DebugLevel, log.Log.(*log.Logger).Level)

	assert.NoError(t, Setup("", ""))
	assert.Equal(t, log.InfoLevel, log.Log.(*log.Logger).Level)

	assert.Error(t, Setup("loud", "cli"))
	assert.Error(t, Setup("info", "xml"))
}
