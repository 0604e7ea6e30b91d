package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func samplePost(text, topic, phase string, at time.Time) Post {
	return Post{Text: text, Topic: topic, Phase: phase, CreatedAt: at}
}

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	recent, err := s.Recent(ctx, 5)
	require.NoError(t, err)
	assert.Empty(t, recent)

	has, err := s.HasTopic(ctx, TopicIntroduction)
	require.NoError(t, err)
	assert.False(t, has)

	require.NoError(t, s.Append(ctx, samplePost("hi, i'm riley", TopicIntroduction, "", base)))
	require.NoError(t, s.Append(ctx, samplePost("hades again", "roguelike", "phase_1", base.Add(time.Hour))))
	require.NoError(t, s.Append(ctx, samplePost("turnip money", "farming sim", "phase_2", base.Add(2*time.Hour))))

	// round trip through Recent(1)
	last, err := s.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, last, 1)
	assert.Equal(t, "turnip money", last[0].Text)
	assert.Equal(t, "farming sim", last[0].Topic)
	assert.Equal(t, "phase_2", last[0].Phase)
	assert.True(t, last[0].CreatedAt.Equal(base.Add(2*time.Hour)))

	// oldest first
	recent, err = s.Recent(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"hades again", "turnip money"}, Texts(recent))

	recent, err = s.Recent(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, recent, 3)

	n, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	has, err = s.HasTopic(ctx, TopicIntroduction)
	require.NoError(t, err)
	assert.True(t, has)
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(filepath.Join(t.TempDir(), "data", "posts.jsonl"))
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)
}

func TestFileStore_SkipsMalformedLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "posts.jsonl")
	content := `{"text":"first","topic":"retro","phase":"","timestamp":"2024-03-01T12:00:00Z"}
not json at all
{"text":"second","topic":"retro","phase":"phase_1","timestamp":"2024-03-01T13:00:00Z"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	s, err := NewFileStore(path)
	require.NoError(t, err)

	posts, err := s.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second"}, Texts(posts))
}

func TestFileStore_WriteError(t *testing.T) {
	dir := t.TempDir()
	// a directory where the file should be makes every append fail
	path := filepath.Join(dir, "posts.jsonl")
	require.NoError(t, os.Mkdir(path, 0755))

	s, err := NewFileStore(path)
	require.NoError(t, err)

	err = s.Append(context.Background(), samplePost("x", "retro", "", time.Now()))
	require.Error(t, err)
	assert.True(t, IsWriteError(err))
}

func TestSQLiteStore(t *testing.T) {
	s, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)
}

func TestSQLiteStore_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "posts.db")
	s, err := OpenSQLite(path)
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, s.Append(ctx, samplePost("persisted", "retro", "phase_1", time.Now())))
	require.NoError(t, s.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()

	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestTail(t *testing.T) {
	posts := []Post{{Text: "a"}, {Text: "b"}, {Text: "c"}}
	assert.Equal(t, []string{"b", "c"}, Texts(tail(posts, 2)))
	assert.Len(t, tail(posts, 5), 3)
	assert.Nil(t, tail(posts, 0))
}
