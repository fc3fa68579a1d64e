package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mantonx/viewra-playback/internal/config"
)

func TestNew_Levels(t *testing.T) {
	tests := []struct {
		level string
		want  hclog.Level
	}{
		{"debug", hclog.Debug},
		{"WARN", hclog.Warn},
		{"", hclog.Info},
		{"loud", hclog.Info},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			l, closer, err := New("test", config.LoggingConfig{Level: tt.level, Output: "stderr"})
			require.NoError(t, err)
			defer closer.Close()
			assert.Equal(t, tt.want, l.GetLevel())
		})
	}
}

func TestNew_FileOutputJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "playback.log")
	l, closer, err := New("playback", config.LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: path,
	})
	require.NoError(t, err)

	l.Named("engine").Info("decision made", "kind", "direct_play")
	l.Debug("filtered out")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "decision made", entry["@message"])
	assert.Equal(t, "playback.engine", entry["@module"])
	assert.Equal(t, "direct_play", entry["kind"])
}

func TestNew_Errors(t *testing.T) {
	_, _, err := New("x", config.LoggingConfig{Output: "file"})
	assert.Error(t, err)

	_, _, err = New("x", config.LoggingConfig{Output: "syslog"})
	assert.Error(t, err)
}
