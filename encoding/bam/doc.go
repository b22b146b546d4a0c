// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

// Package bam serializes sam.Records in the BAM binary record layout.  The
// record store uses it to move alignments between its in-memory tier and its
// spill files.
//
// Unlike the hts decoder, Unmarshal copies every variable-length field out of
// the input buffer, so callers may reuse the buffer immediately.
package bam
