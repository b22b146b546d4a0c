package bamprovider

import (
	"sync"

	"github.com/grailbio/bamcache/interval"
	"github.com/grailbio/hts/sam"
)

// FakeProvider is only for unittests. It yields the given records, which must
// be sorted by coordinate.
type FakeProvider struct {
	header *sam.Header
	recs   []*sam.Record

	mu      sync.Mutex
	queries []interval.Region
	// Err, if set, is returned by every iterator.
	Err error
}

type fakeIterator struct {
	recs []*sam.Record
	rec  *sam.Record

	region interval.Region
	mode   Containment
}

// NewFakeProvider creates a provider that returns "header" in response to a
// GetHeader() call, and the subset of recs matching each Query.
func NewFakeProvider(header *sam.Header, recs []*sam.Record) *FakeProvider {
	return &FakeProvider{header: header, recs: recs}
}

// GetHeader implements the Provider interface. It returns the header passed to
// the constructor.
func (b *FakeProvider) GetHeader() (*sam.Header, error) {
	return b.header, nil
}

// Close implements the Provider interface.
func (b *FakeProvider) Close() error {
	return nil
}

// Query implements the Provider interface.
func (b *FakeProvider) Query(region interval.Region, mode Containment) Iterator {
	b.mu.Lock()
	b.queries = append(b.queries, region)
	err := b.Err
	b.mu.Unlock()
	if err != nil {
		return NewErrorIterator(err)
	}
	return &fakeIterator{recs: b.recs, region: region, mode: mode}
}

// Queries returns the regions passed to Query so far, in call order.
func (b *FakeProvider) Queries() []interval.Region {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]interval.Region(nil), b.queries...)
}

// Err implements the Iterator interface.
func (i *fakeIterator) Err() error {
	return nil
}

// Close implements the Iterator interface.
func (i *fakeIterator) Close() error {
	return nil
}

func (i *fakeIterator) Scan() bool {
	for {
		if len(i.recs) == 0 {
			return false
		}
		i.rec = i.recs[0]
		i.recs = i.recs[1:]
		if Matches(i.rec, i.region, i.mode) {
			return true
		}
	}
}

func (i *fakeIterator) Record() *sam.Record {
	// Return a copy so that the code under test cannot alter the
	// original test input data.
	copy := &sam.Record{}
	*copy = *i.rec
	return copy
}
