package modelstore

import (
	"io"
	"testing"
	"time"

	"github.com/edgeorchestra/orchestrator/pkg/clock"
	"github.com/edgeorchestra/orchestrator/pkg/utils"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() (*Store, *clock.Fake) {
	fc := clock.NewFake(time.Unix(0, 0))
	return New(afero.NewMemMapFs(), fc, time.Hour), fc
}

func TestPutDeduplicatesOnContent(t *testing.T) {
	store, _ := newTestStore()

	id1, err := store.Put([]byte("hello"))
	require.NoError(t, err)

	id2, err := store.Put([]byte("hello"))
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
}

func TestPutOpenRoundTrip(t *testing.T) {
	store, _ := newTestStore()

	id, err := store.Put([]byte("model bytes"))
	require.NoError(t, err)

	reader, err := store.Open(id)
	require.NoError(t, err)
	defer reader.Close()

	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "model bytes", string(data))
}

func TestStatUnknownModelReturnsNotFound(t *testing.T) {
	store, _ := newTestStore()
	_, err := store.Stat(utils.DigestOf([]byte("nope")).Hex())
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestGCDeletesUnreferencedAgedBlobs(t *testing.T) {
	store, fc := newTestStore()

	id, err := store.Put([]byte("stale"))
	require.NoError(t, err)

	fc.Advance(2 * time.Hour)
	require.NoError(t, store.GC())

	_, err = store.Stat(id)
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestGCSparesPinnedBlobs(t *testing.T) {
	store, fc := newTestStore()

	id, err := store.Put([]byte("pinned"))
	require.NoError(t, err)
	require.NoError(t, store.Pin(id, "job-1"))

	fc.Advance(2 * time.Hour)
	require.NoError(t, store.GC())

	_, err = store.Stat(id)
	assert.NoError(t, err)
}

func TestGCSparesYoungBlobs(t *testing.T) {
	store, fc := newTestStore()

	id, err := store.Put([]byte("young"))
	require.NoError(t, err)

	fc.Advance(time.Minute)
	require.NoError(t, store.GC())

	_, err = store.Stat(id)
	assert.NoError(t, err)
}

func TestUnpinAllowsSubsequentGC(t *testing.T) {
	store, fc := newTestStore()

	id, err := store.Put([]byte("unpin me"))
	require.NoError(t, err)
	require.NoError(t, store.Pin(id, "job-1"))
	require.NoError(t, store.Unpin(id, "job-1"))

	fc.Advance(2 * time.Hour)
	require.NoError(t, store.GC())

	_, err = store.Stat(id)
	assert.ErrorIs(t, err, utils.ErrNotFound)
}
