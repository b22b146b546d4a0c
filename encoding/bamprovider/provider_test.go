package bamprovider_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/grailbio/bamcache/encoding/bamprovider"
	"github.com/grailbio/bamcache/interval"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/hts/bam"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	chr1, _   = sam.NewReference("chr1", "", "", 100000, nil, nil)
	chr2, _   = sam.NewReference("chr2", "", "", 100000, nil, nil)
	header, _ = sam.NewHeader(nil, []*sam.Reference{chr1, chr2})
)

func newRecord(t *testing.T, name string, ref *sam.Reference, pos, length int) *sam.Record {
	r, err := sam.NewRecord(name, ref, nil, pos, -1, 0, 60,
		[]sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, length)},
		bytes.Repeat([]byte("A"), length), bytes.Repeat([]byte{30}, length), nil)
	require.NoError(t, err)
	return r
}

func testRecords(t *testing.T) []*sam.Record {
	return []*sam.Record{
		newRecord(t, "a", chr1, 90, 20),   // [90,110)
		newRecord(t, "b", chr1, 100, 10),  // [100,110)
		newRecord(t, "c", chr1, 150, 50),  // [150,200)
		newRecord(t, "d", chr1, 195, 10),  // [195,205)
		newRecord(t, "e", chr1, 5000, 10), // [5000,5010)
		newRecord(t, "f", chr2, 100, 10),  // chr2 [100,110)
	}
}

func names(t *testing.T, iter bamprovider.Iterator) []string {
	var n []string
	for iter.Scan() {
		n = append(n, iter.Record().Name)
	}
	require.NoError(t, iter.Err())
	require.NoError(t, iter.Close())
	return n
}

func TestContainment(t *testing.T) {
	c, ok := bamprovider.ParseContainment("contained")
	assert.True(t, ok)
	assert.Equal(t, bamprovider.FullyContained, c)
	c, ok = bamprovider.ParseContainment(bamprovider.AnyOverlap.String())
	assert.True(t, ok)
	assert.Equal(t, bamprovider.AnyOverlap, c)
	_, ok = bamprovider.ParseContainment("bogus")
	assert.False(t, ok)
}

func TestMatches(t *testing.T) {
	r := newRecord(t, "a", chr1, 100, 10) // [100,110)
	tests := []struct {
		region     interval.Region
		any, fully bool
	}{
		{interval.Region{Chrom: "chr1", Start: 100, End: 110}, true, true},
		{interval.Region{Chrom: "chr1", Start: 0, End: 1000}, true, true},
		{interval.Region{Chrom: "chr1", Start: 105, End: 200}, true, false},
		{interval.Region{Chrom: "chr1", Start: 0, End: 101}, true, false},
		{interval.Region{Chrom: "chr1", Start: 110, End: 200}, false, false},
		{interval.Region{Chrom: "chr1", Start: 0, End: 100}, false, false},
		{interval.Region{Chrom: "CHR1", Start: 0, End: 1000}, true, true},
		{interval.Region{Chrom: "chr2", Start: 0, End: 1000}, false, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.any, bamprovider.Matches(r, tt.region, bamprovider.AnyOverlap), "%v", tt.region)
		assert.Equal(t, tt.fully, bamprovider.Matches(r, tt.region, bamprovider.FullyContained), "%v", tt.region)
	}
}

func TestFakeProvider(t *testing.T) {
	p := bamprovider.NewFakeProvider(header, testRecords(t))
	region := interval.Region{Chrom: "chr1", Start: 100, End: 200}
	assert.Equal(t, []string{"a", "b", "c", "d"}, names(t, p.Query(region, bamprovider.AnyOverlap)))
	assert.Equal(t, []string{"b", "c"}, names(t, p.Query(region, bamprovider.FullyContained)))
	assert.Equal(t, []interval.Region{region, region}, p.Queries())

	p.Err = errors.E("injected")
	iter := p.Query(region, bamprovider.AnyOverlap)
	assert.False(t, iter.Scan())
	assert.Error(t, iter.Err())
	assert.Error(t, iter.Close())
	require.NoError(t, p.Close())
}

func TestFakeProviderRecordIsCopy(t *testing.T) {
	recs := testRecords(t)
	p := bamprovider.NewFakeProvider(header, recs)
	iter := p.Query(interval.Region{Chrom: "chr2", Start: 0, End: 1000}, bamprovider.AnyOverlap)
	require.True(t, iter.Scan())
	iter.Record().Name = "mutated"
	assert.Equal(t, "f", recs[5].Name)
	require.NoError(t, iter.Close())
}

func TestErrorIterator(t *testing.T) {
	err := errors.E("boom")
	iter := bamprovider.NewErrorIterator(err)
	assert.False(t, iter.Scan())
	assert.Equal(t, err, iter.Err())
	assert.Equal(t, err, iter.Close())
}

func TestFindRef(t *testing.T) {
	assert.Equal(t, chr1, bamprovider.FindRef(header, "chr1"))
	assert.Equal(t, chr2, bamprovider.FindRef(header, "Chr2"))
	assert.Nil(t, bamprovider.FindRef(header, "chr3"))
}

// writeIndexedBAM writes recs to dir/test.bam and builds test.bam.bai.
func writeIndexedBAM(t *testing.T, dir string, h *sam.Header, recs []*sam.Record) string {
	path := filepath.Join(dir, "test.bam")
	out, err := os.Create(path)
	require.NoError(t, err)
	w, err := bam.NewWriter(out, h, 1)
	require.NoError(t, err)
	for _, r := range recs {
		require.NoError(t, w.Write(r))
	}
	require.NoError(t, w.Close())
	require.NoError(t, out.Close())

	in, err := os.Open(path)
	require.NoError(t, err)
	br, err := bam.NewReader(in, 1)
	require.NoError(t, err)
	var idx bam.Index
	for {
		r, err := br.Read()
		if err != nil {
			break
		}
		require.NoError(t, idx.Add(r, br.LastChunk()))
	}
	require.NoError(t, br.Close())
	require.NoError(t, in.Close())

	baiOut, err := os.Create(path + ".bai")
	require.NoError(t, err)
	require.NoError(t, bam.WriteIndex(baiOut, &idx))
	require.NoError(t, baiOut.Close())
	return path
}

func TestBAMProvider(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	ref1, _ := sam.NewReference("chr1", "", "", 100000, nil, nil)
	ref2, _ := sam.NewReference("chr2", "", "", 100000, nil, nil)
	h, err := sam.NewHeader(nil, []*sam.Reference{ref1, ref2})
	require.NoError(t, err)
	h.SortOrder = sam.Coordinate
	recs := []*sam.Record{
		newRecord(t, "a", ref1, 90, 20),
		newRecord(t, "b", ref1, 100, 10),
		newRecord(t, "c", ref1, 150, 50),
		newRecord(t, "d", ref1, 195, 10),
		newRecord(t, "e", ref1, 5000, 10),
		newRecord(t, "f", ref2, 100, 10),
	}
	path := writeIndexedBAM(t, tmpDir, h, recs)

	p := bamprovider.NewProvider(path, "")
	got, err := p.GetHeader()
	require.NoError(t, err)
	assert.Len(t, got.Refs(), 2)

	// Run twice to exercise iterator reuse.
	for i := 0; i < 2; i++ {
		region := interval.Region{Chrom: "chr1", Start: 100, End: 200}
		assert.Equal(t, []string{"a", "b", "c", "d"}, names(t, p.Query(region, bamprovider.AnyOverlap)))
		assert.Equal(t, []string{"b", "c"}, names(t, p.Query(region, bamprovider.FullyContained)))
	}
	assert.Equal(t, []string{"f"}, names(t, p.Query(interval.Region{Chrom: "chr2", Start: -50, End: 950}, bamprovider.AnyOverlap)))
	assert.Empty(t, names(t, p.Query(interval.Region{Chrom: "chr1", Start: 1000, End: 2000}, bamprovider.AnyOverlap)))

	iter := p.Query(interval.Region{Chrom: "chrUn", Start: 0, End: 10}, bamprovider.AnyOverlap)
	assert.False(t, iter.Scan())
	assert.True(t, errors.Is(errors.NotExist, iter.Err()))
	assert.Error(t, iter.Close())
	// An unknown chromosome fails only its own query.
	assert.Equal(t, []string{"f"}, names(t, p.Query(interval.Region{Chrom: "chr2", Start: 0, End: 200}, bamprovider.AnyOverlap)))
	assert.NoError(t, p.Close())
}
