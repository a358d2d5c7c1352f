package catalog

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jcdickinson/rbxdocs/internal/api"
	"github.com/jcdickinson/rbxdocs/internal/icons"
	"github.com/jcdickinson/rbxdocs/internal/records"
	"golang.org/x/sync/errgroup"
)

// Pipeline builds record sets from the live API sources. Icons and Cache are
// optional.
type Pipeline struct {
	API          *api.Client
	Icons        icons.Source
	Cache        *api.DumpCache
	EnumItemIcon string
}

// Build resolves the current client version, then fetches the dump, the
// documentation map and the icon listing concurrently. Any failure fails the
// whole build.
func (p *Pipeline) Build(ctx context.Context) (*records.Set, error) {
	version, err := p.API.CurrentVersion(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching version: %w", err)
	}

	var (
		dump     *api.Dump
		docs     api.DocMap
		resolver icons.Resolver
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		d, err := p.loadDump(gctx, version)
		if err != nil {
			return fmt.Errorf("fetching dump: %w", err)
		}
		dump = d
		return nil
	})
	g.Go(func() error {
		d, err := p.API.FetchDocs(gctx)
		if err != nil {
			return fmt.Errorf("fetching docs: %w", err)
		}
		docs = d
		return nil
	})
	if p.Icons != nil {
		g.Go(func() error {
			r, err := p.Icons.Load(gctx)
			if err != nil {
				return fmt.Errorf("loading icons: %w", err)
			}
			resolver = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return records.Build(dump, docs, records.Options{
		Version:      version,
		Icons:        resolver,
		EnumItemIcon: p.EnumItemIcon,
	}), nil
}

// loadDump prefers the on-disk copy for version and falls back to the network.
// A fetched dump is cached only after it parses.
func (p *Pipeline) loadDump(ctx context.Context, version string) (*api.Dump, error) {
	if p.Cache != nil && p.Cache.Has(version) {
		data, err := p.Cache.Load(version)
		if err == nil {
			var dump *api.Dump
			if dump, err = api.ParseDump(data); err == nil {
				slog.Debug("catalog: dump loaded from cache", "version", version)
				return dump, nil
			}
		}
		slog.Warn("catalog: discarding cached dump", "version", version, "error", err)
	}

	data, err := p.API.FetchDumpJSON(ctx, version)
	if err != nil {
		return nil, err
	}
	dump, err := api.ParseDump(data)
	if err != nil {
		return nil, err
	}
	if p.Cache != nil {
		if err := p.Cache.Save(version, data); err != nil {
			slog.Warn("catalog: caching dump", "version", version, "error", err)
		}
	}
	return dump, nil
}
