package sheet

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	gocache "github.com/patrickmn/go-cache"

	"github.com/ginjaninja78/rowimport/internal/extract"
)

// CachingDecoder memoizes decoded tables by content hash, so the same upload
// submitted twice (or imported under two profiles with the same decoding
// options) is only parsed once.
//
// Cached tables are shared between callers and must not be modified.
type CachingDecoder struct {
	next   FormatDecoder
	cache  *gocache.Cache
	hits   atomic.Int64
	misses atomic.Int64
}

// FormatDecoder decodes data whose format is already known.
type FormatDecoder interface {
	DecodeAs(format Format, name string, data []byte, opts Options) (extract.RawTable, error)
}

// FormatDecoderFunc adapts a function to the FormatDecoder interface.
type FormatDecoderFunc func(format Format, name string, data []byte, opts Options) (extract.RawTable, error)

// DecodeAs calls f.
func (f FormatDecoderFunc) DecodeAs(format Format, name string, data []byte, opts Options) (extract.RawTable, error) {
	return f(format, name, data, opts)
}

// NewCachingDecoder wraps next with a cache of the given TTL. The format is
// detected once per call and handed to next on a miss.
func NewCachingDecoder(next FormatDecoder, ttl time.Duration) *CachingDecoder {
	return &CachingDecoder{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

// Decode returns the cached table for data, decoding it on a miss.
// Decoding errors are not cached.
func (c *CachingDecoder) Decode(name string, data []byte, opts Options) (extract.RawTable, error) {
	format, err := DetectFormat(name, data)
	if err != nil {
		return nil, err
	}

	key := cacheKey(format, name, data, opts)
	if v, found := c.cache.Get(key); found {
		c.hits.Add(1)
		return v.(extract.RawTable), nil
	}

	c.misses.Add(1)
	table, err := c.next.DecodeAs(format, name, data, opts)
	if err != nil {
		return nil, err
	}

	c.cache.SetDefault(key, table)
	return table, nil
}

// Stats returns the number of cache hits and misses so far.
func (c *CachingDecoder) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Flush drops every cached table.
func (c *CachingDecoder) Flush() {
	c.cache.Flush()
}

func cacheKey(format Format, name string, data []byte, opts Options) string {
	sum := sha256.Sum256(data)
	key := fmt.Sprintf("%s|%s|%s", format, hex.EncodeToString(sum[:]), opts.Sheet)
	switch format {
	case FormatCSV:
		key += fmt.Sprintf("|%s|%s|%s|%t|%t", strings.ToLower(filepath.Ext(name)), opts.CSV.Delimiter, opts.CSV.Encoding, opts.CSV.Trim(), opts.CSV.SkipBlank())
	default:
		key += fmt.Sprintf("|%t|%t", opts.Workbook.Trim(), opts.Workbook.SkipBlank())
	}
	return key
}
