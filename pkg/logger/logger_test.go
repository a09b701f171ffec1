package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name     string
		expected zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warn", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"", zerolog.InfoLevel},
		{"verbose", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.name))
		})
	}
}

func TestNewBuffered_IsDeterministic(t *testing.T) {
	write := func() string {
		var buf bytes.Buffer
		log := NewBuffered(&buf)
		log.Log().Str("date", "2024-01-02").Float64("price", 90).Msg("BUY")
		log.Log().Str("date", "2024-01-03").Float64("price", 100).Msg("SELL")
		return buf.String()
	}

	first := write()
	second := write()

	assert.Equal(t, first, second)
	assert.Equal(t, 2, strings.Count(first, "\n"))
	assert.Contains(t, first, "BUY")
	assert.Contains(t, first, "price=90")
	assert.NotContains(t, first, "???")
}

func TestNewWithWriter_JSON(t *testing.T) {
	t.Cleanup(func() { zerolog.SetGlobalLevel(zerolog.TraceLevel) })

	var buf bytes.Buffer
	log := NewWithWriter(Config{Level: "warn"}, &buf)
	log.Info().Msg("filtered")
	log.Warn().Str("symbol", "AAA").Msg("kept")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, "AAA", entry["symbol"])
	assert.Contains(t, entry, "time")
	assert.Contains(t, entry, "caller")
}
