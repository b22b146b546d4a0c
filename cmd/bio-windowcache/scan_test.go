package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/grailbio/bamcache/encoding/bamprovider"
	"github.com/grailbio/bamcache/interval"
	"github.com/grailbio/bamcache/recordstore"
	"github.com/grailbio/bamcache/windowcache"
	"github.com/grailbio/hts/sam"
	"github.com/grailbio/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSteps(t *testing.T) {
	r := interval.Region{Chrom: "chr1", Start: 0, End: 250}
	assert.Equal(t, []interval.Region{r}, steps(r, 0))
	assert.Equal(t, []interval.Region{r}, steps(r, 300))
	assert.Equal(t, []interval.Region{
		{Chrom: "chr1", Start: 0, End: 100},
		{Chrom: "chr1", Start: 100, End: 200},
		{Chrom: "chr1", Start: 200, End: 250},
	}, steps(r, 100))
}

func TestScan(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()

	ref, err := sam.NewReference("chr1", "", "", 10000, nil, nil)
	require.NoError(t, err)
	h, err := sam.NewHeader(nil, []*sam.Reference{ref})
	require.NoError(t, err)
	var recs []*sam.Record
	for i, pos := range []int{10, 10, 120, 250} {
		r, err := sam.NewRecord(string(rune('a'+i)), ref, nil, pos, -1, 0, 60,
			[]sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, 20)}, []byte(strings.Repeat("A", 20)), nil, nil)
		require.NoError(t, err)
		recs = append(recs, r)
	}
	opts := windowcache.DefaultOpts
	opts.WindowCapacity = 1000
	opts.StoreDir = tmpDir
	manager := recordstore.NewManager(nil)
	defer manager.DisposeAll()
	cache, err := windowcache.New(bamprovider.NewFakeProvider(h, recs), manager, opts)
	require.NoError(t, err)

	var out bytes.Buffer
	regions := []interval.Region{{Chrom: "chr1", Start: 0, End: 300}}
	require.NoError(t, scan(context.Background(), cache, regions, bamprovider.AnyOverlap, 100, &out))
	assert.Equal(t, "#CHROM\tSTART\tEND\tGROUPS\tRECORDS\n"+
		"chr1\t0\t100\t1\t2\n"+
		"chr1\t100\t200\t1\t1\n"+
		"chr1\t200\t300\t1\t1\n", out.String())
	// The first step sets the window, the second slides it forward to
	// [100,1100), and the third is a hit.
	assert.Equal(t, int64(1), cache.Stats().Hits)
	assert.Equal(t, int64(2), cache.Stats().Refreshes)
	require.NoError(t, cache.Close())
}
