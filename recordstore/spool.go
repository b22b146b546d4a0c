// Copyright 2018 GRAIL, Inc. All rights reserved.
// Use of this source code is governed by the Apache 2.0
// license that can be found in the LICENSE file.

package recordstore

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"blainsmith.com/go/seahash"
	"github.com/golang/snappy"
	"github.com/grailbio/base/errors"
)

// Each spool frame is laid out as
//
//   uint64 seahash of the compressed body
//   uint32 length of the compressed body
//   snappy-compressed record, as produced by bam.MarshalBytes
//
// All integers are little endian.
const spoolFrameHeaderSize = 12

type spoolFrame struct {
	off int64
	n   int
}

// spoolFile is an append-only spill file.  Frames of removed keys stay in the
// file until it is closed.
//
// TODO: compact the file once dead frames make up most of it.
type spoolFile struct {
	path  string
	f     *os.File
	size  int64
	index map[Key]spoolFrame
	buf   []byte
}

func openSpool(dir, id string) (*spoolFile, error) {
	path := filepath.Join(dir, id+".spool")
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, errors.E(err, "recordstore: create spool")
	}
	return &spoolFile{path: path, f: f, index: map[Key]spoolFrame{}}, nil
}

func (s *spoolFile) write(key Key, payload []byte) error {
	if s.f == nil {
		return errors.E(errors.Precondition, "recordstore: write to closed spool", s.path)
	}
	n := spoolFrameHeaderSize + snappy.MaxEncodedLen(len(payload))
	if cap(s.buf) < n {
		s.buf = make([]byte, n)
	}
	s.buf = s.buf[:n]
	body := snappy.Encode(s.buf[spoolFrameHeaderSize:], payload)
	binary.LittleEndian.PutUint64(s.buf[0:8], seahash.Sum64(body))
	binary.LittleEndian.PutUint32(s.buf[8:12], uint32(len(body)))
	frame := s.buf[:spoolFrameHeaderSize+len(body)]
	if _, err := s.f.WriteAt(frame, s.size); err != nil {
		return errors.E(err, "recordstore: write", s.path)
	}
	s.index[key] = spoolFrame{off: s.size, n: len(body)}
	s.size += int64(len(frame))
	return nil
}

func (s *spoolFile) read(key Key) ([]byte, error) {
	if s.f == nil {
		return nil, errors.E(errors.Precondition, "recordstore: read from closed spool", s.path)
	}
	frame, ok := s.index[key]
	if !ok {
		return nil, errors.E(errors.NotExist, fmt.Sprintf("recordstore: %s not in %s", key, s.path))
	}
	buf := make([]byte, spoolFrameHeaderSize+frame.n)
	if _, err := s.f.ReadAt(buf, frame.off); err != nil {
		return nil, errors.E(err, "recordstore: read", s.path)
	}
	if n := int(binary.LittleEndian.Uint32(buf[8:12])); n != frame.n {
		return nil, errors.E(errors.Integrity, fmt.Sprintf("recordstore: frame of %s at offset %d has length %d, want %d", key, frame.off, n, frame.n))
	}
	body := buf[spoolFrameHeaderSize:]
	if want, got := binary.LittleEndian.Uint64(buf[0:8]), seahash.Sum64(body); want != got {
		return nil, errors.E(errors.Integrity, fmt.Sprintf("recordstore: checksum mismatch for %s: %x != %x", key, got, want))
	}
	payload, err := snappy.Decode(nil, body)
	if err != nil {
		return nil, errors.E(errors.Integrity, err, "recordstore: decompress", string(key))
	}
	return payload, nil
}

func (s *spoolFile) remove(key Key) error {
	delete(s.index, key)
	return nil
}

func (s *spoolFile) close() error {
	if s.f == nil {
		return nil
	}
	var once errors.Once
	once.Set(s.f.Close())
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		once.Set(err)
	}
	s.f = nil
	s.index = nil
	s.buf = nil
	return once.Err()
}
