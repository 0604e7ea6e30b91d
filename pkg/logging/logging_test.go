package logging

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_WritesConsoleAndFile(t *testing.T) {
	dir := t.TempDir()
	var console bytes.Buffer

	closer, err := Setup(Options{Level: "debug", Dir: dir, Name: "tweet", Console: &console})
	require.NoError(t, err)

	log.Info().Str("topic", "roguelike").Msg("Posted")
	require.NoError(t, closer.Close())

	assert.Contains(t, console.String(), "Posted")

	data, err := os.ReadFile(filepath.Join(dir, "tweet.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"topic":"roguelike"`)
	assert.Contains(t, string(data), `"message":"Posted"`)
	assert.Equal(t, zerolog.DebugLevel, zerolog.GlobalLevel())
}

func TestSetup_NoFile(t *testing.T) {
	var console bytes.Buffer
	closer, err := Setup(Options{Level: "bogus", Console: &console})
	require.NoError(t, err)
	defer closer.Close()

	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
	log.Debug().Msg("hidden")
	assert.NotContains(t, console.String(), "hidden")
}

func TestSetup_RotatesWhileRunning(t *testing.T) {
	dir := t.TempDir()
	closer, err := Setup(Options{Dir: dir, Name: "serve", Console: io.Discard, MaxSizeMB: 1, Backups: 2})
	require.NoError(t, err)
	defer closer.Close()

	// each line is well over half the limit, so the second one forces a rotation
	blob := strings.Repeat("x", 600<<10)
	for i := 0; i < 3; i++ {
		log.Info().Str("blob", blob).Int("n", i).Msg("Cycle finished")
	}

	backups, err := filepath.Glob(filepath.Join(dir, "serve-*.log"))
	require.NoError(t, err)
	assert.NotEmpty(t, backups)

	info, err := os.Stat(filepath.Join(dir, "serve.log"))
	require.NoError(t, err)
	assert.Less(t, info.Size(), int64(1<<20))
}
