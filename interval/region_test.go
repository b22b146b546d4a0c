package interval

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRegion(t *testing.T) {
	tests := []struct {
		region string
		chrom  string
		start  int
		end    int
	}{
		{"chr1:1-1000", "chr1", 0, 1000},
		{"chr1:1000", "chr1", 999, 1000},
		{"chr1:1,001-2,000", "chr1", 1000, 2000},
		{"HLA-A*01:01:1-5", "HLA-A*01:01", 0, 5},
	}
	for _, tt := range tests {
		result, err := ParseRegion(tt.region)
		expect.NoError(t, err)
		expect.EQ(t, result.Chrom, tt.chrom)
		expect.EQ(t, result.Start, tt.start)
		expect.EQ(t, result.End, tt.end)
	}

	for _, bad := range []string{"", "chr1", ":1-10", "chr1:0-10", "chr1:20-10", "chr1:a-b"} {
		_, err := ParseRegion(bad)
		assert.Error(t, err, bad)
		assert.True(t, errors.Is(errors.Invalid, err), bad)
	}
}

func TestParseRegions(t *testing.T) {
	regions, err := ParseRegions("chr1:1-100; chr2:5-10\tchr3:7")
	require.NoError(t, err)
	assert.Equal(t, []Region{
		{"chr1", 0, 100},
		{"chr2", 4, 10},
		{"chr3", 6, 7},
	}, regions)
}

func TestRegionContains(t *testing.T) {
	w := Region{"chr1", 100, 1100}
	assert.True(t, w.Contains(Region{"chr1", 100, 1100}))
	assert.True(t, w.Contains(Region{"CHR1", 500, 600}))
	assert.False(t, w.Contains(Region{"chr1", 1050, 1150}))
	assert.False(t, w.Contains(Region{"chr1", 50, 150}))
	assert.False(t, w.Contains(Region{"chr2", 500, 600}))
	assert.Equal(t, 1000, w.Len())
	assert.Equal(t, "chr1:100-1100", w.String())
}

func TestScanBED(t *testing.T) {
	bed := `track name=test
# comment
chr1	100	200	a
chr1	150	250

chr2	0	10
`
	regions, err := ScanBED(strings.NewReader(bed))
	require.NoError(t, err)
	assert.Equal(t, []Region{
		{"chr1", 100, 200},
		{"chr1", 150, 250},
		{"chr2", 0, 10},
	}, regions)

	_, err = ScanBED(strings.NewReader("chr1\t10\n"))
	assert.Error(t, err)
	_, err = ScanBED(strings.NewReader("chr1\t10\t5\n"))
	assert.Error(t, err)
}

func TestReadBEDGzip(t *testing.T) {
	tmpDir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	path := filepath.Join(tmpDir, "regions.bed.gz")
	f, err := os.Create(path)
	require.NoError(t, err)
	w := gzip.NewWriter(f)
	_, err = w.Write([]byte("chr1\t1\t2\nchr1\t3\t4\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, f.Close())

	regions, err := ReadBED(path)
	require.NoError(t, err)
	assert.Equal(t, []Region{{"chr1", 1, 2}, {"chr1", 3, 4}}, regions)
}
