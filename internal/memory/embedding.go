package memory

import (
	"crypto/sha256"
	"encoding/hex"
	"hash/fnv"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"

	"forge/internal/logging"
)

// embeddingDim is the fixed width of the hashed n-gram vectors. There is no
// embedding-capable model wired into this engine's stack, so similarity runs
// on a local, dependency-light feature-hashing scheme instead of a real
// embedding model — present only to satisfy the optional layer's contract
// that absent embeddings change no testable property.
const embeddingDim = 256

const ngramSize = 3

// FileEmbedding is (path, content-hash, vector) — present only when
// computed; the zero value is never returned from a successful lookup.
type FileEmbedding struct {
	Path        string                `yaml:"path"`
	ContentHash string                `yaml:"content_hash"`
	Vector      [embeddingDim]float64 `yaml:"vector"`
}

// EmbeddingIndex is the optional similarity layer (spec layer f). Retrieval
// methods return empty results deterministically when an entry is missing,
// matching "absent embeddings must not change any testable property."
type EmbeddingIndex struct {
	mu      sync.RWMutex
	byPath  map[string]FileEmbedding
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewEmbeddingIndex returns an empty EmbeddingIndex.
func NewEmbeddingIndex() *EmbeddingIndex {
	return &EmbeddingIndex{byPath: make(map[string]FileEmbedding)}
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// Upsert computes and stores the embedding for path's content, skipping
// recomputation when the content hash is unchanged.
func (idx *EmbeddingIndex) Upsert(path, content string) {
	hash := contentHash(content)

	idx.mu.RLock()
	existing, ok := idx.byPath[path]
	idx.mu.RUnlock()
	if ok && existing.ContentHash == hash {
		return
	}

	vec := hashNGramVector(content)
	idx.mu.Lock()
	idx.byPath[path] = FileEmbedding{Path: path, ContentHash: hash, Vector: vec}
	idx.mu.Unlock()
}

// Invalidate drops path's embedding, forcing recomputation on next Upsert.
func (idx *EmbeddingIndex) Invalidate(path string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.byPath, path)
}

// Get returns path's embedding, if present.
func (idx *EmbeddingIndex) Get(path string) (FileEmbedding, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	e, ok := idx.byPath[path]
	return e, ok
}

// TopK returns the k entries most similar to query content by cosine
// similarity, excluding excludePath (typically the file being generated).
// Returns nil, never an error, when the index is empty.
func (idx *EmbeddingIndex) TopK(queryContent, excludePath string, k int) []FileEmbedding {
	if k <= 0 {
		return nil
	}
	query := hashNGramVector(queryContent)

	idx.mu.RLock()
	type scored struct {
		emb   FileEmbedding
		score float64
	}
	candidates := make([]scored, 0, len(idx.byPath))
	for path, emb := range idx.byPath {
		if path == excludePath {
			continue
		}
		candidates = append(candidates, scored{emb: emb, score: cosine(query, emb.Vector)})
	}
	idx.mu.RUnlock()

	sort.Slice(candidates, func(i, j int) bool { return candidates[i].score > candidates[j].score })
	if k > len(candidates) {
		k = len(candidates)
	}
	out := make([]FileEmbedding, k)
	for i := 0; i < k; i++ {
		out[i] = candidates[i].emb
	}
	return out
}

// All returns a copy of every stored embedding, used when serializing a
// session to disk.
func (idx *EmbeddingIndex) All() []FileEmbedding {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]FileEmbedding, 0, len(idx.byPath))
	for _, e := range idx.byPath {
		out = append(out, e)
	}
	return out
}

// Restore replaces the index's contents with a previously serialized
// snapshot, used when resuming a session.
func (idx *EmbeddingIndex) Restore(embeddings []FileEmbedding) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.byPath = make(map[string]FileEmbedding, len(embeddings))
	for _, e := range embeddings {
		idx.byPath[e.Path] = e
	}
}

// hashNGramVector feature-hashes a content string's character trigrams into
// a fixed-width, L2-normalized vector.
func hashNGramVector(content string) [embeddingDim]float64 {
	var vec [embeddingDim]float64
	runes := []rune(content)
	if len(runes) < ngramSize {
		return vec
	}
	for i := 0; i+ngramSize <= len(runes); i++ {
		gram := string(runes[i : i+ngramSize])
		h := fnv.New32a()
		h.Write([]byte(gram))
		idx := h.Sum32() % embeddingDim
		vec[idx]++
	}

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return vec
	}
	for i := range vec {
		vec[i] /= norm
	}
	return vec
}

func cosine(a, b [embeddingDim]float64) float64 {
	var dot float64
	for i := range a {
		dot += a[i] * b[i]
	}
	return dot // both vectors are already L2-normalized
}

// Watch starts an fsnotify watcher on root and invalidates an embedding
// whenever its underlying file's content hash no longer matches what is
// stored — a file edited outside the engine (e.g. by the run command)
// between waves must not feed a stale vector into the next Coder call.
func (idx *EmbeddingIndex) Watch(root string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := addRecursive(watcher, root); err != nil {
		watcher.Close()
		return err
	}

	idx.watcher = watcher
	idx.done = make(chan struct{})
	go idx.watchLoop(root)
	return nil
}

func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || !info.IsDir() {
			return nil
		}
		return watcher.Add(path)
	})
}

func (idx *EmbeddingIndex) watchLoop(root string) {
	for {
		select {
		case <-idx.done:
			return
		case event, ok := <-idx.watcher.Events:
			if !ok {
				return
			}
			idx.handleEvent(root, event)
		case err, ok := <-idx.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn("embedding watcher error", "error", err)
		}
	}
}

func (idx *EmbeddingIndex) handleEvent(root string, event fsnotify.Event) {
	rel, err := filepath.Rel(root, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)

	if event.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
		idx.Invalidate(rel)
		return
	}
	if event.Op&fsnotify.Write == 0 && event.Op&fsnotify.Create == 0 {
		return
	}

	data, err := os.ReadFile(event.Name)
	if err != nil {
		return
	}

	idx.mu.RLock()
	existing, ok := idx.byPath[rel]
	idx.mu.RUnlock()
	if ok && existing.ContentHash != contentHash(string(data)) {
		idx.Invalidate(rel)
	}
}

// Close stops the watcher, if running.
func (idx *EmbeddingIndex) Close() error {
	if idx.watcher == nil {
		return nil
	}
	close(idx.done)
	return idx.watcher.Close()
}
