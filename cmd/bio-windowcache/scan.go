// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/grailbio/bamcache/encoding/bamprovider"
	"github.com/grailbio/bamcache/interval"
	"github.com/grailbio/bamcache/windowcache"
)

// steps splits r into consecutive regions of at most step bases.  step <= 0
// yields r itself.
func steps(r interval.Region, step int) []interval.Region {
	if step <= 0 || r.Len() <= step {
		return []interval.Region{r}
	}
	var out []interval.Region
	for start := r.Start; start < r.End; start += step {
		end := start + step
		if end > r.End {
			end = r.End
		}
		out = append(out, interval.Region{Chrom: r.Chrom, Start: start, End: end})
	}
	return out
}

// scan queries cache for every step of every region, and writes one TSV line
// per query: chrom, 0-based start, end, number of groups, number of records.
func scan(ctx context.Context, cache *windowcache.Cache, regions []interval.Region, mode bamprovider.Containment, step int, out io.Writer) error {
	w := bufio.NewWriter(out)
	if _, err := fmt.Fprintln(w, "#CHROM\tSTART\tEND\tGROUPS\tRECORDS"); err != nil {
		return err
	}
	for _, region := range regions {
		for _, r := range steps(region, step) {
			groups, err := cache.Query(ctx, r, mode)
			if err != nil {
				return err
			}
			nGroups, nRecords := 0, 0
			for groups.Scan() {
				nGroups++
				nRecords += len(groups.Group().Records)
			}
			if err := groups.Close(); err != nil {
				return err
			}
			if _, err := fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\n", r.Chrom, r.Start, r.End, nGroups, nRecords); err != nil {
				return err
			}
		}
	}
	return w.Flush()
}
