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

/*
bio-windowcache scans the given regions of an indexed BAM through a sliding
window cache, and reports the number of record groups and records overlapping
each region.  It is mostly useful to measure how a scan pattern interacts with
the window capacity and the record store limits.
*/

import (
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/grailbio/bamcache/encoding/bamprovider"
	"github.com/grailbio/bamcache/interval"
	"github.com/grailbio/bamcache/recordstore"
	"github.com/grailbio/bamcache/windowcache"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/hts/sam"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	bedPath      = flag.String("bed", "", "Input BED path; this xor -regions required")
	regionList   = flag.String("regions", "", "Whitespace- or semicolon-separated regions, each formatted as <contig ID>:<1-based first pos>-<last pos> or <contig ID>:<1-based pos>; this xor -bed required")
	bamIndexPath = flag.String("index", "", "Input BAM index path. Defaults to bampath + .bai")
	modeName     = flag.String("mode", "any", "Containment mode: 'any' yields records overlapping each region, 'contained' only records inside it")
	mapq         = flag.Int("mapq", 0, "Reads with MAPQ below this level are skipped")
	flagExclude  = flag.Int("flag-exclude", int(windowcache.DefaultFlagFilter.Exclude), "Reads with a FLAG bit intersecting this value are skipped")
	step         = flag.Int("step", 0, "If positive, scan each region in consecutive steps of this many bases")
	capacity     = flag.Int("window", windowcache.DefaultOpts.WindowCapacity, "Width of the cached window, in bases")
	storeDir     = flag.String("store-dir", "", "Directory for spilled records. Defaults to $PWD/.windowcache")
	maxLifetime  = flag.Duration("max-lifetime", windowcache.DefaultOpts.MaxEntryLifetime, "Lifetime of a cached record")
	maxInMemory  = flag.Int("max-in-memory", windowcache.DefaultOpts.MaxInMemoryEntries, "Number of records kept in memory before spilling")
	spillBackend = flag.String("spill", windowcache.DefaultOpts.SpillBackend.String(), "Spill tier: 'spool' or 'sqlite'")
	outPath      = flag.String("out", "", "Output TSV path. Defaults to stdout")
	trace        = flag.Bool("trace", false, "Print window refresh spans to stderr")
	metricsAddr  = flag.String("metrics-addr", "", "If set, serve prometheus metrics on this address while scanning, e.g. ':2112'")
)

func bioWindowcacheUsage() {
	fmt.Printf("Usage: %s [OPTIONS] bampath\n", os.Args[0])
	fmt.Printf("Other options:\n")
	flag.PrintDefaults()
}

func main() {
	flag.Usage = bioWindowcacheUsage
	shutdown := grail.Init()
	defer shutdown()

	if flag.NArg() != 1 {
		log.Fatalf("Expected exactly one positional argument (bampath), got %d", flag.NArg())
	}
	if (*bedPath == "") == (*regionList == "") {
		log.Fatalf("Exactly one of -bed and -regions must be set")
	}
	var (
		regions []interval.Region
		err     error
	)
	if *bedPath != "" {
		regions, err = interval.ReadBED(*bedPath)
	} else {
		regions, err = interval.ParseRegions(*regionList)
	}
	if err != nil {
		log.Fatalf("%v", err)
	}
	mode, ok := bamprovider.ParseContainment(*modeName)
	if !ok {
		log.Fatalf("Unknown -mode %q", *modeName)
	}
	backend, err := recordstore.ParseBackend(*spillBackend)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if *trace {
		stopTracing := startTracing()
		defer stopTracing()
	}
	reg := prometheus.NewRegistry()
	if *metricsAddr != "" {
		serveMetrics(*metricsAddr, reg)
	}

	manager := recordstore.NewManager(recordstore.NewMetrics(reg))
	defer manager.DisposeAll()
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Printf("Received %v, removing spill files", sig)
		manager.DisposeAll()
		os.Exit(1)
	}()
	// log.Fatalf skips deferred calls.
	fatalf := func(format string, args ...interface{}) {
		manager.DisposeAll()
		log.Fatalf(format, args...)
	}

	provider := bamprovider.NewProvider(flag.Arg(0), *bamIndexPath)
	opts := windowcache.DefaultOpts
	opts.WindowCapacity = *capacity
	opts.StoreDir = *storeDir
	opts.MaxEntryLifetime = *maxLifetime
	opts.MaxInMemoryEntries = *maxInMemory
	opts.SpillBackend = backend
	opts.Registerer = reg
	opts.Valid = windowcache.FlagFilter{Exclude: sam.Flags(*flagExclude), MinMapQ: byte(*mapq)}.Valid
	cache, err := windowcache.New(provider, manager, opts)
	if err != nil {
		fatalf("%v", err)
	}

	ctx := vcontext.Background()
	var out io.Writer = os.Stdout
	var outFile file.File
	if *outPath != "" {
		if outFile, err = file.Create(ctx, *outPath); err != nil {
			fatalf("%v", err)
		}
		out = outFile.Writer(ctx)
	}
	if err := scan(ctx, cache, regions, mode, *step, out); err != nil {
		fatalf("%v", err)
	}
	if outFile != nil {
		if err := outFile.Close(ctx); err != nil {
			fatalf("close %s: %v", *outPath, err)
		}
	}
	if err := cache.Close(); err != nil {
		log.Error.Printf("close cache: %v", err)
	}
	if err := provider.Close(); err != nil {
		log.Error.Printf("close %s: %v", flag.Arg(0), err)
	}
	stats := cache.Stats()
	log.Printf("%d queries: %d hits, %d refreshes, %d bypasses, %d missing records",
		stats.Queries, stats.Hits, stats.Refreshes, stats.Bypasses, stats.MissingKeys)
	log.Debug.Printf("exiting")
}
