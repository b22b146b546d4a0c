package windowcache

import (
	"fmt"
	"strings"

	"github.com/grailbio/bamcache/encoding/bamprovider"
	"github.com/grailbio/bamcache/interval"
	"github.com/grailbio/base/errors"
)

// Window is the coordinate range whose records are currently cached, and the
// containment mode they were fetched with.  Start may be negative after a
// backward slide near the beginning of a chromosome.
type Window struct {
	interval.Region
	Mode bamprovider.Containment
}

// Serves reports whether a query for region in mode can be answered from w.
func (w *Window) Serves(region interval.Region, mode bamprovider.Containment) bool {
	return w != nil && w.Mode == mode && w.Contains(region)
}

// String implements fmt.Stringer.
func (w *Window) String() string {
	if w == nil {
		return "<none>"
	}
	return fmt.Sprintf("%v(%v)", w.Region, w.Mode)
}

// nextWindow computes the window to populate for a query on region, given the
// current window cur (nil if none).
//
// On a new chromosome the window is exactly the query.  On the same
// chromosome a query that reaches past the window's end slides it forward, so
// that it starts at the query start.  A query that reaches before the window's
// start slides it backward, so that it ends at the query end.  Otherwise the
// window keeps its bounds; this happens when only the mode changed.
func nextWindow(cur *Window, region interval.Region, capacity int) (interval.Region, error) {
	if region.Len() > capacity {
		return interval.Region{}, errors.E(errors.Invalid,
			fmt.Sprintf("windowcache: region %v is wider than the window capacity %d", region, capacity))
	}
	if cur == nil || !strings.EqualFold(cur.Chrom, region.Chrom) {
		return region, nil
	}
	switch {
	case region.End > cur.End:
		return interval.Region{Chrom: region.Chrom, Start: region.Start, End: region.Start + capacity}, nil
	case region.Start < cur.Start:
		return interval.Region{Chrom: region.Chrom, Start: region.End - capacity, End: region.End}, nil
	}
	return cur.Region, nil
}
