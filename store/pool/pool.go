package pool

import (
	"container/list"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/joshuapare/pagekit/internal/assert"
	"github.com/joshuapare/pagekit/store"
)

// FetchMode tells Fetch whether the caller needs the page's current
// contents.
type FetchMode int

const (
	// FetchData loads the page from the store on a cache miss.
	FetchData FetchMode = iota

	// IgnoreData skips the disk read on a cache miss. The caller promises
	// to overwrite the page before anyone reads it.
	IgnoreData
)

// DefaultFrames is the default pool capacity. At the default page size this
// caches 256 KiB, enough that free-list churn stays in memory.
const DefaultFrames = 64

// Options configures a Pool.
type Options struct {
	// Frames is the number of page frames to cache. Zero means
	// DefaultFrames.
	Frames int

	// Logger receives eviction and flush diagnostics. Nil means no logging.
	Logger *zap.Logger
}

// Stats are cumulative pool counters.
type Stats struct {
	Hits      uint64 // fetches served from a resident frame
	Misses    uint64 // fetches that allocated a frame
	Evictions uint64 // frames reclaimed from unpinned pages
	Flushes   uint64 // dirty pages written back by an explicit flush
}

// Pool is a fixed-capacity page cache. See the package doc for the pinning
// and eviction contract.
type Pool struct {
	mu     sync.Mutex
	s      *store.Store
	frames map[store.PageID]*Page
	lru    *list.List // front = most recently used; holds *Page
	spare  [][]byte   // recycled frame buffers
	limit  int
	stats  Stats
	lg     *zap.Logger
}

// New creates a pool over s.
func New(s *store.Store, opts Options) *Pool {
	limit := opts.Frames
	if limit <= 0 {
		limit = DefaultFrames
	}
	lg := opts.Logger
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Pool{
		s:      s,
		frames: make(map[store.PageID]*Page, limit),
		lru:    list.New(),
		limit:  limit,
		lg:     lg,
	}
}

// PageSize returns the page size of the underlying store.
func (po *Pool) PageSize() int { return po.s.PageSize() }

// Store returns the store the pool caches pages for.
func (po *Pool) Store() *store.Store { return po.s }

// Fetch returns page id pinned. Unpin it on every exit path.
func (po *Pool) Fetch(id store.PageID, mode FetchMode) (*Page, error) {
	assert.That(id != store.NilPage, "fetch of the header page")

	po.mu.Lock()
	defer po.mu.Unlock()

	if p, ok := po.frames[id]; ok {
		po.stats.Hits++
		p.pins++
		po.lru.MoveToFront(p.elem)
		return p, nil
	}

	po.stats.Misses++
	if len(po.frames) >= po.limit {
		if err := po.evictLocked(); err != nil {
			return nil, err
		}
	}

	p := &Page{id: id, buf: po.takeBuffer(), pins: 1}
	if mode == FetchData {
		if err := po.s.ReadPage(id, p.buf); err != nil {
			po.spare = append(po.spare, p.buf)
			return nil, err
		}
		p.loaded = true
	}
	p.elem = po.lru.PushFront(p)
	po.frames[id] = p
	return p, nil
}

// Pin takes an additional pin on a page the caller already holds. It cannot
// fail: a held page is resident by definition.
func (po *Pool) Pin(p *Page) {
	po.mu.Lock()
	defer po.mu.Unlock()
	assert.That(p.pins > 0, "pin of a page the caller does not hold")
	p.pins++
	po.lru.MoveToFront(p.elem)
}

// Unpin releases one pin on p.
func (po *Pool) Unpin(p *Page) {
	po.mu.Lock()
	defer po.mu.Unlock()
	assert.That(p.pins > 0, "unpin of an unpinned page")
	if p.pins > 0 {
		p.pins--
	}
}

// MarkDirty records that p's bytes will change. The page stays resident
// until the modification is flushed or discarded.
func (po *Pool) MarkDirty(p *Page) {
	po.mu.Lock()
	defer po.mu.Unlock()
	p.dirty = true
}

// MarkClean drops p's dirty flag without writing it back. Used after a
// rollback has restored the page's previous contents.
func (po *Pool) MarkClean(p *Page) {
	po.mu.Lock()
	defer po.mu.Unlock()
	p.dirty = false
}

// FlushPage writes p back to the store if it is dirty.
func (po *Pool) FlushPage(p *Page) error {
	po.mu.Lock()
	defer po.mu.Unlock()
	return po.flushLocked(p)
}

// FlushDirty writes every dirty resident page back to the store.
func (po *Pool) FlushDirty() error {
	po.mu.Lock()
	defer po.mu.Unlock()
	for _, p := range po.frames {
		if err := po.flushLocked(p); err != nil {
			return err
		}
	}
	return nil
}

// Forget drops page id's frame without writing it back. The page must be
// unpinned. Callers use this when the underlying page is about to be
// truncated away and its cached bytes must not outlive it.
func (po *Pool) Forget(id store.PageID) {
	po.mu.Lock()
	defer po.mu.Unlock()
	p, ok := po.frames[id]
	if !ok {
		return
	}
	assert.That(p.pins == 0, "forget of a pinned page")
	po.lru.Remove(p.elem)
	delete(po.frames, id)
	po.spare = append(po.spare, p.buf)
	p.buf = nil
}

// Stats returns a snapshot of the pool counters.
func (po *Pool) Stats() Stats {
	po.mu.Lock()
	defer po.mu.Unlock()
	return po.stats
}

// Resident returns the number of pages currently cached.
func (po *Pool) Resident() int {
	po.mu.Lock()
	defer po.mu.Unlock()
	return len(po.frames)
}

func (po *Pool) flushLocked(p *Page) error {
	if !p.dirty {
		return nil
	}
	if err := po.s.WritePage(p.id, p.buf); err != nil {
		return fmt.Errorf("pool: flush page %d: %w", p.id, err)
	}
	p.dirty = false
	p.loaded = true
	po.stats.Flushes++
	return nil
}

// evictLocked reclaims the least-recently-used unpinned frame, writing it
// back first when dirty.
func (po *Pool) evictLocked() error {
	for elem := po.lru.Back(); elem != nil; elem = elem.Prev() {
		p := elem.Value.(*Page)
		if p.pins > 0 {
			continue
		}
		if p.dirty {
			if err := po.s.WritePage(p.id, p.buf); err != nil {
				return fmt.Errorf("pool: evict page %d: %w", p.id, err)
			}
			po.lg.Debug("wrote back dirty page on eviction",
				zap.Uint64("page", uint64(p.id)))
		}
		po.lru.Remove(elem)
		delete(po.frames, p.id)
		po.spare = append(po.spare, p.buf)
		p.buf = nil
		po.stats.Evictions++
		return nil
	}
	po.lg.Warn("page pool exhausted", zap.Int("frames", po.limit))
	return ErrPoolFull
}

func (po *Pool) takeBuffer() []byte {
	if n := len(po.spare); n > 0 {
		buf := po.spare[n-1]
		po.spare = po.spare[:n-1]
		return buf
	}
	return make([]byte, po.s.PageSize())
}
