// Package windowcache answers repeated "which records overlap this region"
// queries against a bamprovider.Provider without rescanning the source for
// every query.
//
// A Cache keeps one window: a coordinate range on one chromosome whose records
// have been read from the provider into a recordstore.Store and indexed by
// aligned span in an interval.Index.  Queries inside the window are answered
// from the index.  A query outside it slides the window: forward when the
// query reaches past the window's end, so that the new window starts at the
// query start, and backward when it reaches before the window's start, so that
// the new window ends at the query end.  A query on another chromosome, or
// with another containment mode, replaces the window too.  Queries wider than
// Opts.WindowCapacity bypass the cache altogether.
//
// Callers typically scan the genome left to right in steps much smaller than
// the window, so most queries are hits.
package windowcache
