// Package modelstore is the content-addressed model store (spec.md
// §4.5): put/open/stat/pin/unpin over a blob directory, grounded on
// cache_lru.go's afero-backed temp-file-then-rename write path and
// cache_grpc.go's chunked streaming contract — generalized from an
// LRU-size eviction policy to spec.md's refcount-and-age GC policy,
// since model blobs are pinned by active jobs rather than reclaimed
// purely by recency.
package modelstore

import (
	"io"
	"path"
	"path/filepath"
	"sync"
	"time"

	"github.com/edgeorchestra/orchestrator/pkg/clock"
	"github.com/edgeorchestra/orchestrator/pkg/log"
	"github.com/edgeorchestra/orchestrator/pkg/utils"
	"github.com/spf13/afero"
)

// Stat is the metadata spec.md §4.5's stat(model_id) returns.
type Stat struct {
	ModelID   string
	Size      int64
	CreatedAt time.Time
}

type blob struct {
	digest    utils.Digest
	size      int64
	createdAt time.Time
	refs      map[string]struct{}
}

// Key and Size satisfy utils.Sized, letting the store track every blob
// in the same generic LRU index cache_lru.go uses for its size-bounded
// eviction. Size always reports 1: GC's eviction criterion is
// refcount-and-age, not byte budget, so the index is kept permanently
// "over capacity" (maxSize 0) and every Add forces evictBlob to judge
// the least-recently-touched entry.
func (b *blob) Key() any    { return b.digest.Hex() }
func (b *blob) Size() int64 { return 1 }

// Store is the model store. Safe for concurrent use.
type Store struct {
	mu    sync.Mutex
	fs    afero.Fs
	clock clock.Clock

	retention time.Duration
	blobs     map[string]*blob

	lruMu sync.Mutex
	lru   *utils.LRU[*blob]
}

func New(fs afero.Fs, clk clock.Clock, retention time.Duration) *Store {
	s := &Store{fs: fs, clock: clk, retention: retention, blobs: make(map[string]*blob)}
	s.lru = utils.NewLRU[*blob](0, s.evictBlob)
	return s
}

// evictBlob is the LRU index's evict callback (spec.md §4.5's GC
// policy): refuses eviction of a still-referenced or not-yet-aged
// blob, otherwise removes its file and drops it from s.blobs.
func (s *Store) evictBlob(b *blob) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(b.refs) > 0 {
		return false
	}
	if s.clock.Now().Sub(b.createdAt) <= s.retention {
		return false
	}

	if err := s.fs.Remove(pathFor(b.digest)); err != nil {
		log.Warn("model store gc: failed to remove blob:", b.digest.Hex(), err)
		return false
	}

	delete(s.blobs, b.digest.Hex())
	return true
}

// touch (re)inserts b into the LRU index, forcing a reclaim pass over
// the least-recently-touched entries.
func (s *Store) touch(b *blob) {
	s.lruMu.Lock()
	defer s.lruMu.Unlock()
	s.lru.Add(b)
}

// pathFor returns the two-level sharded path spec.md §9's persisted
// state layout specifies: <dir>/<sha256>[0:2]/<sha256>.
func pathFor(digest utils.Digest) string {
	hex := digest.Hex()
	return path.Join(hex[:2], hex)
}

// Put stores data under its content digest, deduplicating on existing
// content, and returns the resulting model_id (the hex digest).
func (s *Store) Put(data []byte) (string, error) {
	digest := utils.DigestOf(data)

	s.mu.Lock()
	if b, ok := s.blobs[digest.Hex()]; ok {
		b.createdAt = s.clock.Now()
		s.mu.Unlock()
		s.touch(b)
		return digest.Hex(), nil
	}
	s.mu.Unlock()

	dest := pathFor(digest)
	if err := s.fs.MkdirAll(filepath.Dir(dest), 0777); err != nil {
		return "", err
	}

	tmp, err := afero.TempFile(s.fs, filepath.Dir(dest), "")
	if err != nil {
		return "", err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		s.fs.Remove(tmpName)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		s.fs.Remove(tmpName)
		return "", err
	}
	if err := s.fs.Rename(tmpName, dest); err != nil {
		s.fs.Remove(tmpName)
		return "", err
	}

	b := &blob{
		digest:    digest,
		size:      int64(len(data)),
		createdAt: s.clock.Now(),
		refs:      make(map[string]struct{}),
	}
	s.mu.Lock()
	s.blobs[digest.Hex()] = b
	s.mu.Unlock()
	s.touch(b)

	return digest.Hex(), nil
}

// Open returns a chunked reader for model_id.
func (s *Store) Open(modelID string) (io.ReadCloser, error) {
	digest, err := utils.ParseDigest(modelID)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	_, ok := s.blobs[digest.Hex()]
	s.mu.Unlock()
	if !ok {
		return nil, utils.ErrNotFound
	}

	return s.fs.Open(pathFor(digest))
}

// Stat returns size and timestamps for model_id.
func (s *Store) Stat(modelID string) (Stat, error) {
	digest, err := utils.ParseDigest(modelID)
	if err != nil {
		return Stat{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.blobs[digest.Hex()]
	if !ok {
		return Stat{}, utils.ErrNotFound
	}
	return Stat{ModelID: digest.Hex(), Size: b.size, CreatedAt: b.createdAt}, nil
}

// Pin adds a GC reference for model_id under ref, e.g. a job id that
// still needs the blob retained.
func (s *Store) Pin(modelID, ref string) error {
	digest, err := utils.ParseDigest(modelID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.blobs[digest.Hex()]
	if !ok {
		return utils.ErrNotFound
	}
	b.refs[ref] = struct{}{}
	return nil
}

// Unpin removes a GC reference. The blob becomes eligible for GC once
// no references remain and it has aged past retention.
func (s *Store) Unpin(modelID, ref string) error {
	digest, err := utils.ParseDigest(modelID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.blobs[digest.Hex()]
	if !ok {
		return utils.ErrNotFound
	}
	delete(b.refs, ref)
	return nil
}

// GC sweeps every tracked blob through the LRU index, which evicts
// (via evictBlob) any entry with zero references whose age exceeds
// retention (spec.md §4.5). Intended to run on idle, e.g. from the
// sweeper's ticker.
func (s *Store) GC() error {
	s.mu.Lock()
	snapshot := make([]*blob, 0, len(s.blobs))
	for _, b := range s.blobs {
		snapshot = append(snapshot, b)
	}
	s.mu.Unlock()

	for _, b := range snapshot {
		s.touch(b)
	}

	return nil
}
