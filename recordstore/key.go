package recordstore

import (
	"strconv"

	"github.com/grailbio/hts/sam"
)

// Key identifies one record within a Store and the interval index built over
// the same records.
type Key string

// KeyOf returns the key for r: the read name, a "/1" or "/2" suffix for paired
// reads, and the aligned span, e.g. "read7/1-1050:1150".
func KeyOf(r *sam.Record) Key {
	buf := make([]byte, 0, len(r.Name)+24)
	buf = append(buf, r.Name...)
	if r.Flags&sam.Paired != 0 {
		switch {
		case r.Flags&sam.Read1 != 0:
			buf = append(buf, "/1"...)
		case r.Flags&sam.Read2 != 0:
			buf = append(buf, "/2"...)
		}
	}
	buf = append(buf, '-')
	buf = strconv.AppendInt(buf, int64(r.Pos), 10)
	buf = append(buf, ':')
	buf = strconv.AppendInt(buf, int64(r.End()), 10)
	return Key(buf)
}
