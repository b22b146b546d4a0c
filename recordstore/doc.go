// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package recordstore implements a capacity- and lifetime-bounded key→record
// store for sam.Records.
//
// A Store keeps up to Opts.MaxInMemory records in memory in LRU order. When
// the limit is exceeded, the least recently used record is serialized in BAM
// format and written to a spill tier on local disk: either a snappy-compressed
// spool file (SpoolFile) or a sqlite database (SQLite). Records older than
// Opts.MaxLifetime are treated as absent wherever they live.
//
// Stores are created through a Manager, which hands out unique identifiers and
// remembers every live store so that the host process can dispose all of them
// from a single teardown call.
package recordstore
