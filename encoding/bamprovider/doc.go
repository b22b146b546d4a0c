// Package bamprovider reads alignments from a BAM file by genomic region.
//
// The Provider is an interface for region queries; BAMProvider implements it
// for an indexed BAM, NewFakeProvider for tests. A query either yields every
// record overlapping the region (AnyOverlap) or only those lying entirely
// inside it (FullyContained).
package bamprovider
