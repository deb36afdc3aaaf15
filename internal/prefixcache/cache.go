// Package prefixcache indexes token prefixes of cached prompts against
// content-addressed payload objects. The index lives in memory; payloads go
// to a pluggable Storage backend (S3-compatible store, Redis, or process
// memory). A lookup walks the aligned prefixes of a token sequence and
// reports the longest one stored, together with how many payload bytes a hit
// at that length may reuse.
package prefixcache

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
)

// tokenSep joins tokens before hashing so token boundaries survive in the
// digest: ["ab","c"] and ["a","bc"] index different prefixes.
const tokenSep = "\x1f"

// Config holds cache settings.
type Config struct {
	// BlockSize is the prefix alignment in tokens. Only prefixes whose
	// length is a multiple of it are indexed. Must be positive.
	BlockSize int

	// BytesPerToken maps prefix tokens to usable payload bytes. Zero selects
	// the proportional mapping based on the prefix share of the full token
	// sequence.
	BytesPerToken int

	// Storage persists payloads. Required.
	Storage Storage

	// Logger receives debug events for stores and lookups.
	Logger zerolog.Logger
}

// ObjectMeta tracks one stored payload.
type ObjectMeta struct {
	TotalBytes    int64
	LastAccess    time.Time
	InflightReads int
}

// PrefixEntry maps one aligned token prefix to a usable slice of an object.
type PrefixEntry struct {
	ObjID          string
	UsableLenBytes int64
	Version        int64
	Owner          string
	Priority       int
}

// StoreResult reports what Store recorded.
type StoreResult struct {
	ObjID           string
	PrefixesIndexed int
}

// LookupResult describes the longest indexed prefix of a token sequence.
type LookupResult struct {
	ObjID          string
	UsableLenBytes int64
	PrefixTokens   int
}

// Stats is a point-in-time summary of the index.
type Stats struct {
	Objects   int
	Prefixes  int
	BlockSize int
}

// Cache is the in-memory prefix index over a Storage backend.
type Cache struct {
	blockSize     int
	bytesPerToken int
	storage       Storage
	logger        zerolog.Logger

	mu       sync.RWMutex
	version  int64
	objects  map[string]*ObjectMeta
	prefixes map[uint64]PrefixEntry
}

// New validates cfg and returns an empty cache.
func New(cfg Config) (*Cache, error) {
	if cfg.Storage == nil {
		return nil, errors.New("storage is required")
	}
	if cfg.BlockSize <= 0 {
		return nil, fmt.Errorf("block size must be positive, got %d", cfg.BlockSize)
	}
	if cfg.BytesPerToken < 0 {
		return nil, fmt.Errorf("bytes per token must not be negative, got %d", cfg.BytesPerToken)
	}

	return &Cache{
		blockSize:     cfg.BlockSize,
		bytesPerToken: cfg.BytesPerToken,
		storage:       cfg.Storage,
		logger:        cfg.Logger.With().Str("component", "prefixcache").Logger(),
		objects:       make(map[string]*ObjectMeta),
		prefixes:      make(map[uint64]PrefixEntry),
	}, nil
}

// Store persists data and indexes every aligned prefix of tokens against it.
// The payload reaches storage before any index mutation, so a storage
// failure leaves the index untouched. Colliding prefixes are overwritten;
// the latest store wins.
func (c *Cache) Store(ctx context.Context, tokens []string, data []byte, owner string, priority int) (StoreResult, error) {
	objID := ObjectID(data)
	if err := c.storage.Put(ctx, objID, data); err != nil {
		return StoreResult{}, fmt.Errorf("store object %s: %w", objID, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.version++
	c.objects[objID] = &ObjectMeta{
		TotalBytes: int64(len(data)),
		LastAccess: time.Now(),
	}

	indexed := 0
	for length := c.blockSize; length <= len(tokens); length += c.blockSize {
		c.prefixes[hashTokens(tokens[:length])] = PrefixEntry{
			ObjID:          objID,
			UsableLenBytes: c.UsableBytes(length, len(tokens), int64(len(data))),
			Version:        c.version,
			Owner:          owner,
			Priority:       priority,
		}
		indexed++
	}

	c.logger.Debug().
		Str("obj_id", objID).
		Int("tokens", len(tokens)).
		Int("prefixes", indexed).
		Msg("object stored")

	return StoreResult{ObjID: objID, PrefixesIndexed: indexed}, nil
}

// Lookup finds the longest indexed prefix of tokens, walking aligned lengths
// upward and stopping at the first miss. maxLen > 0 bounds how many leading
// tokens are considered. A hit refreshes the object's access time.
func (c *Cache) Lookup(ctx context.Context, tokens []string, maxLen int) (LookupResult, bool) {
	limit := len(tokens)
	if maxLen > 0 && maxLen < limit {
		limit = maxLen
	}

	var best PrefixEntry
	bestLen := 0

	c.mu.RLock()
	for length := c.blockSize; length <= limit; length += c.blockSize {
		entry, ok := c.prefixes[hashTokens(tokens[:length])]
		if !ok {
			break
		}
		best = entry
		bestLen = length
	}
	c.mu.RUnlock()

	if bestLen == 0 {
		return LookupResult{}, false
	}

	c.touch(best.ObjID)

	c.logger.Debug().
		Str("obj_id", best.ObjID).
		Int("prefix_tokens", bestLen).
		Int64("usable_len_bytes", best.UsableLenBytes).
		Msg("prefix hit")

	return LookupResult{
		ObjID:          best.ObjID,
		UsableLenBytes: best.UsableLenBytes,
		PrefixTokens:   bestLen,
	}, true
}

// Load fetches up to maxBytes leading bytes of an object straight from
// storage. maxBytes <= 0 loads the whole object.
func (c *Cache) Load(ctx context.Context, objID string, maxBytes int64) ([]byte, error) {
	return c.storage.GetRange(ctx, objID, maxBytes)
}

// UsableBytes converts a prefix length in tokens to the payload bytes a hit
// at that length may reuse. The result never exceeds totalBytes and never
// decreases as prefixLen grows.
func (c *Cache) UsableBytes(prefixLen, totalTokens int, totalBytes int64) int64 {
	if c.bytesPerToken > 0 {
		usable := int64(prefixLen) * int64(c.bytesPerToken)
		if usable > totalBytes {
			return totalBytes
		}
		return usable
	}

	if totalTokens == 0 || totalBytes == 0 {
		return 0
	}

	frac := float64(prefixLen) / float64(totalTokens)
	usable := int64(frac * float64(totalBytes))
	if usable < 1 {
		usable = 1
	}
	if usable > totalBytes {
		usable = totalBytes
	}
	return usable
}

// Stats reports index counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{
		Objects:   len(c.objects),
		Prefixes:  len(c.prefixes),
		BlockSize: c.blockSize,
	}
}

func (c *Cache) touch(objID string) {
	c.mu.Lock()
	if meta, ok := c.objects[objID]; ok {
		meta.LastAccess = time.Now()
	}
	c.mu.Unlock()
}

// ObjectID derives the content address of a payload.
func ObjectID(data []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(data))
}

func hashTokens(tokens []string) uint64 {
	d := xxhash.New()
	for i, tok := range tokens {
		if i > 0 {
			d.WriteString(tokenSep)
		}
		d.WriteString(tok)
	}
	return d.Sum64()
}
