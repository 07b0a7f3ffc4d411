package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFSPutGetRoundTrip(t *testing.T) {
	st, err := NewFS(t.TempDir(), "https://news.example.com")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, st.Put(ctx, "config/config.json", []byte(`{"version":1}`), "application/json"))

	data, err := st.Get(ctx, "config/config.json")
	require.NoError(t, err)
	assert.Equal(t, `{"version":1}`, string(data))
}

func TestFSGetMissingReturnsErrNotFound(t *testing.T) {
	st, err := NewFS(t.TempDir(), "")
	require.NoError(t, err)

	_, err = st.Get(context.Background(), "episodes/nope_manifest.json")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestFSPutOverwrites(t *testing.T) {
	st, err := NewFS(t.TempDir(), "")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, st.Put(ctx, "runs/index.json", []byte("old"), "application/json"))
	require.NoError(t, st.Put(ctx, "runs/index.json", []byte("new"), "application/json"))

	data, err := st.Get(ctx, "runs/index.json")
	require.NoError(t, err)
	assert.Equal(t, "new", string(data))
}

func TestFSListFiltersByPrefix(t *testing.T) {
	st, err := NewFS(t.TempDir(), "")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, st.Put(ctx, "episodes/2026-08-20_manifest.json", []byte("{}"), "application/json"))
	require.NoError(t, st.Put(ctx, "episodes/2026-08-21_manifest.json", []byte("{}"), "application/json"))
	require.NoError(t, st.Put(ctx, "feed.xml", []byte("<rss/>"), "application/rss+xml"))

	keys, err := st.List(ctx, "episodes/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"episodes/2026-08-20_manifest.json",
		"episodes/2026-08-21_manifest.json",
	}, keys)
}

func TestFSExistsAndDelete(t *testing.T) {
	st, err := NewFS(t.TempDir(), "")
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, st.Put(ctx, "music/intro.mp3", []byte{0xFF, 0xFB}, "audio/mpeg"))

	ok, err := st.Exists(ctx, "music/intro.mp3")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, st.Delete(ctx, "music/intro.mp3"))

	ok, err = st.Exists(ctx, "music/intro.mp3")
	require.NoError(t, err)
	assert.False(t, ok)

	// Deleting a missing object is not an error.
	assert.NoError(t, st.Delete(ctx, "music/intro.mp3"))
}

func TestFSPublicURL(t *testing.T) {
	st, err := NewFS(t.TempDir(), "https://news.example.com/")
	require.NoError(t, err)
	assert.Equal(t, "https://news.example.com/feed.xml", st.PublicURL("feed.xml"))
}
