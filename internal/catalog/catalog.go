// Package catalog owns the published record set and its search index. It
// runs builds in the background, publishes each successful build as a new
// immutable generation and makes queries wait for any build in flight.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jcdickinson/rbxdocs/internal/records"
	"github.com/jcdickinson/rbxdocs/internal/search"
)

var (
	// ErrNotLoaded is returned by queries issued before any build succeeded.
	ErrNotLoaded = errors.New("catalog: no record set loaded")
	// ErrNotFound is returned by Lookup for unknown names.
	ErrNotFound = errors.New("catalog: record not found")
	// ErrClosed is returned by Reload after Close.
	ErrClosed = errors.New("catalog: closed")
)

const defaultCacheSize = 256

// Builder produces a fresh record set.
type Builder interface {
	Build(ctx context.Context) (*records.Set, error)
}

// BuilderFunc adapts a function to Builder.
type BuilderFunc func(ctx context.Context) (*records.Set, error)

func (f BuilderFunc) Build(ctx context.Context) (*records.Set, error) { return f(ctx) }

// BuildReport describes one finished build attempt.
type BuildReport struct {
	ID         string
	Version    string
	Active     int
	Deprecated int
	DataTypes  int
	Started    time.Time
	Finished   time.Time
	Err        error
}

func (r BuildReport) Duration() time.Duration { return r.Finished.Sub(r.Started) }

// Status is a point-in-time view of the catalog.
type Status struct {
	Loaded     bool
	Version    string
	Active     int
	Deprecated int
	DataTypes  int
	BuiltAt    time.Time
	Building   bool
	LastError  error
	LastBuild  *BuildReport
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithCacheSize sets how many distinct queries each generation remembers.
func WithCacheSize(n int) Option {
	return func(c *Catalog) { c.cacheSize = n }
}

// WithOnBuild registers a hook called after every build attempt.
func WithOnBuild(fn func(BuildReport)) Option {
	return func(c *Catalog) { c.onBuild = fn }
}

type queryKey struct {
	query string
	opts  search.Options
}

// generation is one published build. Nothing in it changes after publication
// except the query cache, which is itself safe for concurrent use.
type generation struct {
	set    *records.Set
	index  *search.Index
	byName map[string]*records.Record
	cache  *lru.Cache[queryKey, []search.Hit]
}

func newGeneration(set *records.Set, cacheSize int) *generation {
	g := &generation{
		set:    set,
		index:  search.NewIndex(set),
		byName: make(map[string]*records.Record, set.Len()),
	}
	for _, recs := range [][]records.Record{set.Active, set.Deprecated} {
		for i := range recs {
			g.byName[strings.ToLower(recs[i].FullName())] = &recs[i]
		}
	}
	if cacheSize > 0 {
		// lru.New only fails for non-positive sizes.
		g.cache, _ = lru.New[queryKey, []search.Hit](cacheSize)
	}
	return g
}

type build struct {
	done chan struct{}
	err  error
}

// Catalog is safe for concurrent use.
type Catalog struct {
	builder   Builder
	cacheSize int
	onBuild   func(BuildReport)

	current atomic.Pointer[generation]

	mu         sync.Mutex
	pending    *build
	lastErr    error
	lastReport *BuildReport
	closed     bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func New(builder Builder, opts ...Option) *Catalog {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Catalog{
		builder:   builder,
		cacheSize: defaultCacheSize,
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start begins the initial build without waiting for it.
func (c *Catalog) Start() {
	c.trigger()
}

// Reload rebuilds the record set and waits for the result. If a build is
// already running, Reload waits for that one instead of starting another. On
// failure the previously published generation stays in place.
func (c *Catalog) Reload(ctx context.Context) error {
	b := c.trigger()
	if b == nil {
		return ErrClosed
	}
	select {
	case <-b.done:
		return b.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Catalog) trigger() *build {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	if c.pending != nil {
		return c.pending
	}

	b := &build{done: make(chan struct{})}
	c.pending = b
	c.wg.Add(1)
	go c.run(b)
	return b
}

func (c *Catalog) run(b *build) {
	defer c.wg.Done()

	report := BuildReport{ID: uuid.NewString(), Started: time.Now()}
	slog.Info("catalog: build started", "id", report.ID)

	set, err := c.builder.Build(c.ctx)
	if err == nil && set == nil {
		err = errors.New("builder returned no record set")
	}
	if err == nil {
		c.current.Store(newGeneration(set, c.cacheSize))
		report.Version = set.Version
		report.Active = len(set.Active)
		report.Deprecated = len(set.Deprecated)
		report.DataTypes = len(set.DataTypes)
	} else {
		err = fmt.Errorf("building record set: %w", err)
	}
	report.Finished = time.Now()
	report.Err = err

	c.mu.Lock()
	b.err = err
	c.lastErr = err
	c.lastReport = &report
	c.mu.Unlock()

	if err != nil {
		slog.Error("catalog: build failed", "id", report.ID, "error", err, "duration", report.Duration())
	} else {
		slog.Info("catalog: build finished", "id", report.ID, "version", report.Version,
			"active", report.Active, "deprecated", report.Deprecated, "duration", report.Duration())
	}
	// The hook runs before waiters are released so they observe its effects.
	if c.onBuild != nil {
		c.onBuild(report)
	}

	c.mu.Lock()
	c.pending = nil
	c.mu.Unlock()
	close(b.done)
}

// await blocks until no build is in flight or ctx is done.
func (c *Catalog) await(ctx context.Context) error {
	c.mu.Lock()
	b := c.pending
	c.mu.Unlock()
	if b == nil {
		return nil
	}
	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// loaded waits for any in-flight build and returns the current generation.
func (c *Catalog) loaded(ctx context.Context) (*generation, error) {
	if err := c.await(ctx); err != nil {
		return nil, err
	}
	if g := c.current.Load(); g != nil {
		return g, nil
	}

	c.mu.Lock()
	lastErr := c.lastErr
	c.mu.Unlock()
	if lastErr != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotLoaded, lastErr)
	}
	return nil, ErrNotLoaded
}

// Search runs query against the current generation, waiting first for any
// build in flight.
func (c *Catalog) Search(ctx context.Context, query string, opts search.Options) ([]search.Hit, error) {
	g, err := c.loaded(ctx)
	if err != nil {
		return nil, err
	}

	key := queryKey{query: strings.TrimSpace(query), opts: opts}
	if g.cache != nil {
		if hits, ok := g.cache.Get(key); ok {
			return slices.Clone(hits), nil
		}
	}
	hits := search.Search(g.index, query, opts)
	if g.cache != nil {
		g.cache.Add(key, hits)
	}
	return slices.Clone(hits), nil
}

// Lookup finds a record by its case-insensitive full name, deprecated
// records included.
func (c *Catalog) Lookup(ctx context.Context, fullName string) (*records.Record, error) {
	g, err := c.loaded(ctx)
	if err != nil {
		return nil, err
	}
	r, ok := g.byName[strings.ToLower(strings.TrimSpace(fullName))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, fullName)
	}
	return r, nil
}

// Version is the client version of the current generation, or "" if none.
func (c *Catalog) Version() string {
	if g := c.current.Load(); g != nil {
		return g.set.Version
	}
	return ""
}

func (c *Catalog) Status() Status {
	c.mu.Lock()
	st := Status{
		Building:  c.pending != nil,
		LastError: c.lastErr,
	}
	if c.lastReport != nil {
		r := *c.lastReport
		st.LastBuild = &r
	}
	c.mu.Unlock()

	if g := c.current.Load(); g != nil {
		st.Loaded = true
		st.Version = g.set.Version
		st.Active = len(g.set.Active)
		st.Deprecated = len(g.set.Deprecated)
		st.DataTypes = len(g.set.DataTypes)
		st.BuiltAt = g.set.BuiltAt
	}
	return st
}

// Close cancels any running build and waits for it to return. The last
// published generation stays queryable.
func (c *Catalog) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.cancel()
	c.wg.Wait()
}
