package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/shwndea/automated-padc-processor/internal/attendance"
	"github.com/shwndea/automated-padc-processor/internal/config"
)

// KeyPrefix namespaces result keys.
const KeyPrefix = "ada:result:"

var (
	// ErrCacheMiss is returned when the key is absent or expired.
	ErrCacheMiss = errors.New("cache: key not found")

	// ErrCacheConnection is returned when the backend cannot be reached.
	ErrCacheConnection = errors.New("cache: connection failed")

	// ErrCacheSerialization is returned when an entry cannot be encoded or decoded.
	ErrCacheSerialization = errors.New("cache: serialization failed")

	// ErrCacheKeyEmpty is returned for an empty key.
	ErrCacheKeyEmpty = errors.New("cache: key cannot be empty")
)

// Cache stores audit results.
type Cache interface {
	Get(ctx context.Context, key string) (Entry, error)
	Set(ctx context.Context, key string, entry Entry) error
	Close() error
}

// Figure is one keyed value as stored in an entry.
type Figure struct {
	Key   attendance.Key `json:"key"`
	Value float64        `json:"value"`
}

// Entry is the serialisable form of an extraction and consolidation.
type Entry struct {
	Months       []int                  `json:"months"`
	Raw          []Figure               `json:"raw"`
	Consolidated []Figure               `json:"consolidated"`
	Breakdowns   []attendance.Breakdown `json:"breakdowns"`
	CachedAt     time.Time              `json:"cached_at"`
}

// NewEntry captures a computed result.
func NewEntry(raw attendance.Values, cons attendance.Consolidation, months []int) Entry {
	return Entry{
		Months:       append([]int(nil), months...),
		Raw:          figures(raw),
		Consolidated: figures(cons.Values),
		Breakdowns:   cons.Breakdowns,
		CachedAt:     time.Now().UTC(),
	}
}

func figures(v attendance.Values) []Figure {
	keys := v.SortedKeys(nil)
	out := make([]Figure, 0, len(keys))
	for _, k := range keys {
		out = append(out, Figure{Key: k, Value: v[k]})
	}
	return out
}

// Result restores the values held by the entry.
func (e Entry) Result() (attendance.Values, attendance.Consolidation, error) {
	if e.Raw == nil || e.Consolidated == nil {
		return nil, attendance.Consolidation{}, fmt.Errorf("%w: entry holds no values", ErrCacheSerialization)
	}
	raw, err := restore(e.Raw)
	if err != nil {
		return nil, attendance.Consolidation{}, err
	}
	cons, err := restore(e.Consolidated)
	if err != nil {
		return nil, attendance.Consolidation{}, err
	}
	return raw, attendance.Consolidation{Values: cons, Breakdowns: e.Breakdowns}, nil
}

func restore(figs []Figure) (attendance.Values, error) {
	out := make(attendance.Values, len(figs))
	for _, f := range figs {
		if f.Key.Program == "" {
			return nil, fmt.Errorf("%w: figure without a program", ErrCacheSerialization)
		}
		if _, dup := out[f.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate figure %s", ErrCacheSerialization, f.Key.Field())
		}
		out[f.Key] = f.Value
	}
	return out, nil
}

// computation is everything besides the sheet contents that shapes a result.
type computation struct {
	Sheet    string                         `json:"sheet"`
	Layout   attendance.Layout              `json:"layout"`
	Mappings []attendance.ProgramMapping    `json:"mappings"`
	Rules    []attendance.ConsolidationRule `json:"rules"`
	Repairs  []attendance.RepairRule        `json:"repairs"`
	AgeBands []string                       `json:"age_bands"`
}

// Key derives the cache key for a workbook digest, the sheet read from it,
// the resolved boundaries and the options the result is computed with.
// Defaults are applied to opts before hashing.
func Key(digest, sheet string, b attendance.Boundaries, opts attendance.Options) string {
	opts = opts.WithDefaults()
	var sb strings.Builder
	sb.WriteString(digest)
	for _, code := range b.Codes() {
		fmt.Fprintf(&sb, "|%s=%s", code, b[code])
	}
	// The struct holds only slices, strings and ints, so encoding cannot fail.
	spec, _ := json.Marshal(computation{
		Sheet:    sheet,
		Layout:   opts.Layout,
		Mappings: opts.Mappings,
		Rules:    opts.Rules,
		Repairs:  opts.Repairs,
		AgeBands: opts.AgeBands,
	})
	sb.WriteByte('|')
	sb.Write(spec)
	sum := sha256.Sum256([]byte(sb.String()))
	return KeyPrefix + hex.EncodeToString(sum[:])
}

type memoryItem struct {
	entry   Entry
	expires time.Time
}

// MemoryCache is an in-process Cache with per-entry expiry.
type MemoryCache struct {
	mu    sync.RWMutex
	items map[string]memoryItem
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryCache creates a cache whose entries live for ttl. ttl <= 0 never expires.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{items: make(map[string]memoryItem), ttl: ttl, now: time.Now}
}

// Get returns the entry for key or ErrCacheMiss.
func (c *MemoryCache) Get(ctx context.Context, key string) (Entry, error) {
	if key == "" {
		return Entry{}, ErrCacheKeyEmpty
	}
	if err := ctx.Err(); err != nil {
		return Entry{}, err
	}
	c.mu.RLock()
	item, ok := c.items[key]
	c.mu.RUnlock()
	if !ok {
		return Entry{}, ErrCacheMiss
	}
	if !item.expires.IsZero() && c.now().After(item.expires) {
		c.mu.Lock()
		delete(c.items, key)
		c.mu.Unlock()
		return Entry{}, ErrCacheMiss
	}
	return item.entry, nil
}

// Set stores entry under key.
func (c *MemoryCache) Set(ctx context.Context, key string, entry Entry) error {
	if key == "" {
		return ErrCacheKeyEmpty
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	item := memoryItem{entry: entry}
	if c.ttl > 0 {
		item.expires = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	c.items[key] = item
	c.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close drops every entry.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	c.items = make(map[string]memoryItem)
	c.mu.Unlock()
	return nil
}

// Open returns a RedisCache when cfg names an address and a MemoryCache otherwise.
func Open(ctx context.Context, cfg config.CacheConfig, logger *slog.Logger) (Cache, error) {
	if cfg.RedisAddr == "" {
		if logger != nil {
			logger.Info("result cache kept in memory", slog.Duration("ttl", cfg.TTL))
		}
		return NewMemoryCache(cfg.TTL), nil
	}
	c, err := NewRedisCache(ctx, RedisConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
		TTL:      cfg.TTL,
	})
	if err != nil {
		return nil, err
	}
	if logger != nil {
		logger.Info("result cache backed by redis", slog.String("addr", cfg.RedisAddr))
	}
	return c, nil
}
