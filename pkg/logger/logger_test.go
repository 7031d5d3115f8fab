package logger

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit(t *testing.T) {
	t.Run("rejects unknown level", func(t *testing.T) {
		err := Init("verbose", "text")
		assert.Error(t, err)
	})

	t.Run("empty level defaults to info", func(t *testing.T) {
		require.NoError(t, Init("", "text"))
		var buf bytes.Buffer
		SetOutput(&buf)

		Debugf("hidden %d", 1)
		Infof("shown %d", 2)

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), "shown 2")
	})

	t.Run("json format carries fields", func(t *testing.T) {
		require.NoError(t, Init("debug", "json"))
		var buf bytes.Buffer
		SetOutput(&buf)

		WithFields(Fields{"conversation_id": "c1"}).Warn("frame dropped")

		assert.Contains(t, buf.String(), `"conversation_id":"c1"`)
		assert.Contains(t, buf.String(), `"level":"warning"`)
	})
}
