package windowcache

import (
	"context"
	"fmt"

	"github.com/grailbio/bamcache/encoding/bamprovider"
	"github.com/grailbio/bamcache/interval"
	"github.com/grailbio/bamcache/recordstore"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// refresh replaces the current window by the one computed by nextWindow for
// region, and populates a new store and index with its records.  On error the
// cache is left without a window, so that the next query tries again.
//
// REQUIRES: c.mu is held.
func (c *Cache) refresh(ctx context.Context, region interval.Region, mode bamprovider.Containment) error {
	next, err := nextWindow(c.window, region, c.opts.WindowCapacity)
	if err != nil {
		return err
	}
	ctx, span := tracer.Start(ctx, "Cache.refresh", trace.WithAttributes(
		attribute.String("bamcache.window", next.String()),
		attribute.String("bamcache.mode", mode.String())))
	defer span.End()
	c.stats.refreshes.add(1)

	// At most one store holds records at any time.
	c.dropWindow()

	store, index, err := c.populate(ctx, next, mode)
	if err != nil {
		c.stats.failedRefreshes.add(1)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return errors.E(err, fmt.Sprintf("windowcache: populate %v", next))
	}
	c.window = &Window{Region: next, Mode: mode}
	c.index = index
	c.store = store
	span.SetAttributes(attribute.Int("bamcache.records", index.NumKeys()))
	log.Debug.Printf("windowcache: window %v holds %d record(s) in %d span(s), store %s",
		c.window, index.NumKeys(), index.Len(), store.ID())
	return nil
}

// populate reads the records of window from the provider into a new store and
// index.  The store is disposed if populate fails.
func (c *Cache) populate(ctx context.Context, window interval.Region, mode bamprovider.Containment) (*recordstore.Store, *interval.Index, error) {
	store, err := c.manager.NewStore(c.opts.StorePrefix, recordstore.Opts{
		Dir:         c.opts.StoreDir,
		MaxInMemory: c.opts.MaxInMemoryEntries,
		MaxLifetime: c.opts.MaxEntryLifetime,
		Backend:     c.opts.SpillBackend,
		Header:      c.header,
	})
	if err != nil {
		return nil, nil, err
	}
	index := interval.NewIndex()
	iter := c.provider.Query(window, mode)
	for iter.Scan() {
		if err = ctx.Err(); err != nil {
			break
		}
		rec := iter.Record()
		if !c.opts.Valid(rec) {
			continue
		}
		key := recordstore.KeyOf(rec)
		if perr := store.Put(key, rec); perr != nil {
			log.Error.Printf("windowcache: store %s: %v", store.ID(), perr)
			c.stats.skippedWrites.add(1)
		}
		// The key is indexed even if the write failed; lookups tolerate the
		// missing record.
		if ierr := index.Insert(rec.Pos, rec.End(), string(key)); ierr != nil {
			log.Error.Printf("windowcache: skipping %s: %v", key, ierr)
		}
	}
	if cerr := iter.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		c.manager.Dispose(store)
		return nil, nil, err
	}
	return store, index, nil
}

// dropWindow disposes the current store and forgets the window.
//
// REQUIRES: c.mu is held.
func (c *Cache) dropWindow() {
	c.manager.Dispose(c.store)
	c.window = nil
	c.index = nil
	c.store = nil
}
