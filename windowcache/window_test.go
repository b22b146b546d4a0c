package windowcache

import (
	"testing"

	"github.com/grailbio/bamcache/encoding/bamprovider"
	"github.com/grailbio/bamcache/interval"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextWindow(t *testing.T) {
	cur := func(chrom string, start, end int) *Window {
		return &Window{Region: interval.Region{Chrom: chrom, Start: start, End: end}}
	}
	tests := []struct {
		name   string
		cur    *Window
		region interval.Region
		want   interval.Region
	}{
		{"first", nil, interval.Region{Chrom: "chr1", Start: 100, End: 200}, interval.Region{Chrom: "chr1", Start: 100, End: 200}},
		{"new chromosome", cur("chr1", 0, 1000), interval.Region{Chrom: "chr2", Start: 5, End: 10}, interval.Region{Chrom: "chr2", Start: 5, End: 10}},
		{"forward", cur("chr1", 100, 1100), interval.Region{Chrom: "chr1", Start: 1050, End: 1150}, interval.Region{Chrom: "chr1", Start: 1050, End: 2050}},
		{"backward", cur("chr1", 1050, 2050), interval.Region{Chrom: "chr1", Start: 900, End: 950}, interval.Region{Chrom: "chr1", Start: -50, End: 950}},
		{"straddles both ends", cur("chr1", 100, 200), interval.Region{Chrom: "chr1", Start: 50, End: 250}, interval.Region{Chrom: "chr1", Start: 50, End: 1050}},
		{"inside", cur("chr1", 100, 1100), interval.Region{Chrom: "chr1", Start: 200, End: 300}, interval.Region{Chrom: "chr1", Start: 100, End: 1100}},
		{"case-insensitive chromosome", cur("chr1", 100, 1100), interval.Region{Chrom: "CHR1", Start: 200, End: 300}, interval.Region{Chrom: "chr1", Start: 100, End: 1100}},
		{"full capacity", nil, interval.Region{Chrom: "chr1", Start: 0, End: 1000}, interval.Region{Chrom: "chr1", Start: 0, End: 1000}},
	}
	for _, tt := range tests {
		got, err := nextWindow(tt.cur, tt.region, 1000)
		require.NoError(t, err, tt.name)
		assert.Equal(t, tt.want, got, tt.name)
	}

	_, err := nextWindow(nil, interval.Region{Chrom: "chr1", Start: 0, End: 1001}, 1000)
	assert.True(t, errors.Is(errors.Invalid, err))
}

func TestWindowServes(t *testing.T) {
	var none *Window
	region := interval.Region{Chrom: "chr1", Start: 150, End: 200}
	assert.False(t, none.Serves(region, bamprovider.AnyOverlap))
	assert.Equal(t, "<none>", none.String())

	w := &Window{Region: interval.Region{Chrom: "chr1", Start: 100, End: 1100}, Mode: bamprovider.AnyOverlap}
	assert.True(t, w.Serves(region, bamprovider.AnyOverlap))
	assert.True(t, w.Serves(interval.Region{Chrom: "chr1", Start: 100, End: 1100}, bamprovider.AnyOverlap))
	assert.False(t, w.Serves(region, bamprovider.FullyContained))
	assert.False(t, w.Serves(interval.Region{Chrom: "chr1", Start: 99, End: 200}, bamprovider.AnyOverlap))
	assert.False(t, w.Serves(interval.Region{Chrom: "chr1", Start: 1000, End: 1101}, bamprovider.AnyOverlap))
	assert.False(t, w.Serves(interval.Region{Chrom: "chr2", Start: 150, End: 200}, bamprovider.AnyOverlap))
	assert.Equal(t, "chr1:100-1100(any-overlap)", w.String())
}

func TestFlagFilter(t *testing.T) {
	r := newRecord(t, "a", chr1, 100, 10)
	assert.True(t, DefaultFlagFilter.Valid(r))
	for _, f := range []sam.Flags{sam.Unmapped, sam.Secondary, sam.QCFail, sam.Duplicate} {
		r.Flags = f
		assert.False(t, DefaultFlagFilter.Valid(r), "flag %v", f)
	}
	r.Flags = 0
	assert.False(t, FlagFilter{MinMapQ: 61}.Valid(r))
	assert.True(t, FlagFilter{MinMapQ: 60}.Valid(r))
}
