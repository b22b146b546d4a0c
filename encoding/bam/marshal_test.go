// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package bam_test

import (
	"bytes"
	"encoding/binary"
	"testing"

	grailbam "github.com/grailbio/bamcache/encoding/bam"
	"github.com/grailbio/hts/sam"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	chr1, _   = sam.NewReference("chr1", "", "", 100000, nil, nil)
	chr2, _   = sam.NewReference("chr2", "", "", 100000, nil, nil)
	header, _ = sam.NewHeader(nil, []*sam.Reference{chr1, chr2})
)

func newAux(t *testing.T, tag string, v interface{}) sam.Aux {
	a, err := sam.NewAux(sam.NewTag(tag), v)
	require.NoError(t, err)
	return a
}

func TestMarshalRoundTrip(t *testing.T) {
	cigar := []sam.CigarOp{
		sam.NewCigarOp(sam.CigarSoftClipped, 2),
		sam.NewCigarOp(sam.CigarMatch, 6),
	}
	recs := []*sam.Record{}
	r, err := sam.NewRecord("read1", chr1, chr2, 1234, 5678, 0, 60, cigar,
		[]byte("ACGTACGT"), []byte{30, 31, 32, 33, 34, 35, 36, 37},
		[]sam.Aux{newAux(t, "NM", 1), newAux(t, "RG", "group1")})
	require.NoError(t, err)
	r.Flags = sam.Paired | sam.Read1
	recs = append(recs, r)

	// No sequence or quality, same-reference mate.  NewRecord insists on a
	// sequence.
	recs = append(recs, &sam.Record{
		Name:    "read2",
		Ref:     chr2,
		Pos:     10,
		Cigar:   []sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, 10)},
		MateRef: chr2,
		MatePos: 20,
		TempLen: 30,
	})

	for _, rec := range recs {
		buf := bytes.NewBuffer(nil)
		require.NoError(t, grailbam.Marshal(rec, buf))
		serialized := buf.Bytes()
		serializedLen := int(binary.LittleEndian.Uint32(serialized[:4]))
		require.Equal(t, serializedLen, len(serialized)-4)

		rec2, err := grailbam.Unmarshal(serialized[4:], header)
		require.NoError(t, err, "rec=", rec.String())
		assert.Equal(t, rec.String(), rec2.String())
		assert.Equal(t, rec.End(), rec2.End())
		assert.Equal(t, rec.Ref.ID(), rec2.Ref.ID())
		assert.Equal(t, rec.MateRef.ID(), rec2.MateRef.ID())
	}
}

func TestUnmarshalCopiesInput(t *testing.T) {
	r, err := sam.NewRecord("read1", chr1, nil, 10, -1, 0, 60,
		[]sam.CigarOp{sam.NewCigarOp(sam.CigarMatch, 4)}, []byte("ACGT"), nil,
		[]sam.Aux{newAux(t, "XS", "abc")})
	require.NoError(t, err)
	data, err := grailbam.MarshalBytes(r)
	require.NoError(t, err)
	rec2, err := grailbam.Unmarshal(data[4:], header)
	require.NoError(t, err)
	want := rec2.String()
	for i := range data {
		data[i] = 0
	}
	assert.Equal(t, want, rec2.String())
}

func TestUnmarshalErrors(t *testing.T) {
	_, err := grailbam.Unmarshal([]byte{1, 2, 3}, header)
	assert.Error(t, err)

	r, err := sam.NewRecord("read1", chr2, nil, 10, -1, 0, 60, nil, []byte("A"), nil, nil)
	require.NoError(t, err)
	data, err := grailbam.MarshalBytes(r)
	require.NoError(t, err)
	oneRef, _ := sam.NewHeader(nil, []*sam.Reference{mustRef(t, "chrX")})
	_, err = grailbam.Unmarshal(data[4:], oneRef)
	assert.Error(t, err)

	_, err = grailbam.MarshalBytes(&sam.Record{})
	assert.Error(t, err)
}

func mustRef(t *testing.T, name string) *sam.Reference {
	ref, err := sam.NewReference(name, "", "", 1000, nil, nil)
	require.NoError(t, err)
	return ref
}
