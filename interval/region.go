package interval

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/fileio"
	"github.com/grailbio/base/log"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/grailbio/base/vcontext"
	"github.com/klauspost/compress/gzip"
)

// Region is a 0-based, half-open coordinate range [Start, End) on one
// chromosome.  Start may be negative: a window slid backward past the
// beginning of a chromosome keeps its nominal bounds.
type Region struct {
	Chrom string
	Start int
	End   int
}

// Len returns the number of positions covered by the region.
func (r Region) Len() int {
	return r.End - r.Start
}

// Contains reports whether o lies within r.  Chromosome names are compared
// case-insensitively.
func (r Region) Contains(o Region) bool {
	return strings.EqualFold(r.Chrom, o.Chrom) && r.Start <= o.Start && o.End <= r.End
}

// String returns the region as "chrom:start-end", with 0-based half-open
// coordinates.
func (r Region) String() string {
	return fmt.Sprintf("%s:%d-%d", r.Chrom, r.Start, r.End)
}

// getTokens identifies up to the first len(tokens) tokens from curLine,
// returning the number of tokens saved.  Any (group of) characters <= ' ' is
// treated as a delimiter.
func getTokens(tokens [][]byte, curLine []byte) int {
	posEnd := 0
	lineLen := len(curLine)
	for tokenIdx := range tokens {
		pos := posEnd
		for ; pos != lineLen; pos++ {
			if curLine[pos] > ' ' {
				break
			}
		}
		if pos == lineLen {
			return tokenIdx
		}
		posEnd = pos
		for ; posEnd != lineLen; posEnd++ {
			if curLine[posEnd] <= ' ' {
				break
			}
		}
		tokens[tokenIdx] = curLine[pos:posEnd]
	}
	return len(tokens)
}

// ParseRegion parses a region string of one of the forms
//   [contig ID]:[1-based first pos]-[last pos]
//   [contig ID]:[1-based pos]
// returning a Region with 0-based half-open boundaries.  A bare contig ID is
// rejected, since a whole-chromosome query has no meaningful window.
func ParseRegion(region string) (Region, error) {
	if len(region) == 0 {
		return Region{}, errors.E(errors.Invalid, "interval.ParseRegion: empty region string")
	}
	colonPos := strings.LastIndexByte(region, ':')
	if colonPos == -1 {
		return Region{}, errors.E(errors.Invalid, fmt.Sprintf("interval.ParseRegion: %q has no position range", region))
	}
	if colonPos == 0 {
		return Region{}, errors.E(errors.Invalid, "interval.ParseRegion: empty contig ID")
	}
	result := Region{Chrom: region[:colonPos]}
	rangeStr := strings.Replace(region[colonPos+1:], ",", "", -1)
	dashPos := strings.IndexByte(rangeStr, '-')
	if dashPos == -1 {
		pos1, err := strconv.Atoi(rangeStr)
		if err != nil {
			return Region{}, errors.E(errors.Invalid, err, "interval.ParseRegion:", region)
		}
		if pos1 <= 0 {
			return Region{}, errors.E(errors.Invalid, fmt.Sprintf("interval.ParseRegion: position %v out of range", rangeStr))
		}
		result.Start = pos1 - 1
		result.End = pos1
		return result, nil
	}
	start1, err := strconv.Atoi(rangeStr[:dashPos])
	if err != nil {
		return Region{}, errors.E(errors.Invalid, err, "interval.ParseRegion:", region)
	}
	if start1 <= 0 {
		return Region{}, errors.E(errors.Invalid, fmt.Sprintf("interval.ParseRegion: position %v out of range", rangeStr[:dashPos]))
	}
	end, err := strconv.Atoi(rangeStr[dashPos+1:])
	if err != nil {
		return Region{}, errors.E(errors.Invalid, err, "interval.ParseRegion:", region)
	}
	if end < start1 {
		return Region{}, errors.E(errors.Invalid, fmt.Sprintf("interval.ParseRegion: invalid range %v", rangeStr))
	}
	result.Start = start1 - 1
	result.End = end
	return result, nil
}

// ParseRegions parses a comma-free list of regions separated by whitespace or
// semicolons.
func ParseRegions(list string) ([]Region, error) {
	var regions []Region
	for _, s := range strings.FieldsFunc(list, func(r rune) bool { return r == ';' || r <= ' ' }) {
		r, err := ParseRegion(s)
		if err != nil {
			return nil, err
		}
		regions = append(regions, r)
	}
	return regions, nil
}

// ScanBED reads the first three columns of every BED line.  Unlike a BED
// union, overlapping and unsorted intervals are kept as given: each line is one
// query.  Header ("track", "browser") and '#' lines are skipped.
func ScanBED(reader io.Reader) ([]Region, error) {
	scanner := bufio.NewScanner(reader)
	var (
		tokens  [3][]byte
		regions []Region
	)
	lineIdx := 0
	for scanner.Scan() {
		lineIdx++
		curLine := scanner.Bytes()
		nToken := getTokens(tokens[:], curLine)
		if nToken == 0 {
			continue
		}
		chrom := gunsafe.BytesToString(tokens[0])
		if chrom[0] == '#' || chrom == "track" || chrom == "browser" {
			continue
		}
		if nToken != 3 {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("interval.ScanBED: line %d has fewer tokens than expected", lineIdx))
		}
		start, err := strconv.Atoi(gunsafe.BytesToString(tokens[1]))
		if err != nil {
			return nil, errors.E(errors.Invalid, err, fmt.Sprintf("interval.ScanBED: line %d", lineIdx))
		}
		end, err := strconv.Atoi(gunsafe.BytesToString(tokens[2]))
		if err != nil {
			return nil, errors.E(errors.Invalid, err, fmt.Sprintf("interval.ScanBED: line %d", lineIdx))
		}
		if start < 0 || end < start {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("interval.ScanBED: invalid coordinate pair on line %d", lineIdx))
		}
		// tokens[0] refers to bytes on curLine that will be overwritten soon.
		regions = append(regions, Region{Chrom: string(tokens[0]), Start: start, End: end})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	log.Debug.Printf("BED loaded, %d region(s)", len(regions))
	return regions, nil
}

// ReadBED is a wrapper for ScanBED that takes a path instead of an io.Reader.
// Gzipped files are detected by their extension.
func ReadBED(path string) (regions []Region, err error) {
	ctx := vcontext.Background()
	var infile file.File
	if infile, err = file.Open(ctx, path); err != nil {
		return
	}
	defer func() {
		if cerr := infile.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}()
	reader := io.Reader(infile.Reader(ctx))
	switch fileio.DetermineType(path) {
	case fileio.Gzip:
		if reader, err = gzip.NewReader(reader); err != nil {
			return
		}
	}
	return ScanBED(reader)
}
