package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_JSON(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	var buf bytes.Buffer
	require.NoError(t, Setup(&buf, "warn", false))

	log.Info().Msg("dropped")
	log.Warn().Str("session_id", "abc").Msg("kept")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "warn", line["level"])
	assert.Equal(t, "kept", line["message"])
	assert.Equal(t, "abc", line["session_id"])
}

func TestSetup_EmptyLevelDefaultsToInfo(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.InfoLevel) })

	var buf bytes.Buffer
	require.NoError(t, Setup(&buf, "", true))
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	log.Info().Msg("hello")
	assert.Contains(t, buf.String(), "hello")
}

func TestSetup_InvalidLevel(t *testing.T) {
	var buf bytes.Buffer
	err := Setup(&buf, "loud", false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "loud")
}
