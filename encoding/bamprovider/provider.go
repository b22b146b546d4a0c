package bamprovider

import (
	"strings"

	"github.com/grailbio/bamcache/interval"
	"github.com/grailbio/hts/sam"
)

// Containment selects which records a region query yields.
type Containment int

const (
	// AnyOverlap yields every record whose aligned span intersects the region.
	AnyOverlap Containment = iota
	// FullyContained yields only records whose aligned span lies entirely
	// inside the region.
	FullyContained
)

// String implements fmt.Stringer.
func (c Containment) String() string {
	switch c {
	case AnyOverlap:
		return "any-overlap"
	case FullyContained:
		return "fully-contained"
	}
	return "unknown"
}

// ParseContainment parses the output of Containment.String, plus the short
// forms "any" and "contained".
func ParseContainment(s string) (Containment, bool) {
	switch s {
	case "any", "any-overlap":
		return AnyOverlap, true
	case "contained", "fully-contained":
		return FullyContained, true
	}
	return AnyOverlap, false
}

// Provider reads the alignments of one BAM-like source by genomic region.
// Thread safe.
type Provider interface {
	// GetHeader returns the header of the source. The callee must not modify
	// the returned header object.
	//
	// REQUIRES: Close has not been called.
	GetHeader() (*sam.Header, error)

	// Query returns an iterator over the records that satisfy mode against
	// region, in coordinate order. Errors, including an unknown chromosome, are
	// reported through the iterator's Err.
	//
	// REQUIRES: Close has not been called.
	Query(region interval.Region, mode Containment) Iterator

	// Close must be called exactly once. It returns any error encountered by
	// the provider, or any iterator created by the provider.
	//
	// REQUIRES: All the iterators created by Query have been closed.
	Close() error
}

// Iterator iterates over sam.Records in a particular genomic range, in
// coordinate order. Thread compatible.
type Iterator interface {
	// Scan returns where there are any records remaining in the iterator,
	// and if so, advances the iterator to the next record. If the iterator
	// reaches the end of its range, Scan() returns false.  If an error
	// occurs, Scan() returns false and the error can be retrieved by
	// calling Error().
	//
	// REQUIRES: Close has not been called.
	Scan() bool

	// Record returns the current record in the iterator. This must be
	// called only after a call to Scan() returns true.
	//
	// REQUIRES: Close has not been called.
	Record() *sam.Record

	// Err returns the error encoutered during iteration, or nil if no error
	// occurred.  An io.EOF error will be translated to nil.
	Err() error

	// Close must be called exactly once. It returns the value of Err().
	Close() error
}

// Matches reports whether r satisfies mode against region. The record's span
// is [r.Pos, r.End()).
func Matches(r *sam.Record, region interval.Region, mode Containment) bool {
	if r.Ref == nil || !strings.EqualFold(r.Ref.Name(), region.Chrom) {
		return false
	}
	start, end := r.Pos, r.End()
	if mode == FullyContained {
		return region.Start <= start && end <= region.End
	}
	return start < region.End && region.Start < end
}

// FindRef returns the reference named chrom in header. An exact match is
// preferred; otherwise names are compared case-insensitively.
func FindRef(header *sam.Header, chrom string) *sam.Reference {
	var folded *sam.Reference
	for _, ref := range header.Refs() {
		if ref.Name() == chrom {
			return ref
		}
		if folded == nil && strings.EqualFold(ref.Name(), chrom) {
			folded = ref
		}
	}
	return folded
}
