package interval

import (
	"fmt"
	"sort"

	biointerval "github.com/biogo/store/interval"
	"github.com/grailbio/base/errors"
)

// Entry is one node of an Index: a half-open coordinate range and the keys of
// all records stored with exactly those bounds.
type Entry struct {
	Start int
	End   int
	Keys  []string
}

type span struct {
	start, end int
}

// node implements biointerval.IntInterface.
type node struct {
	id    uintptr
	start int
	end   int
	keys  []string
}

func (n *node) Overlap(r biointerval.IntRange) bool {
	return n.start < r.End && r.Start < n.end
}

func (n *node) ID() uintptr { return n.id }

func (n *node) Range() biointerval.IntRange {
	return biointerval.IntRange{Start: n.start, End: n.end}
}

func (n *node) hasKey(key string) bool {
	for _, k := range n.keys {
		if k == key {
			return true
		}
	}
	return false
}

// query is a half-open probe range.
type query struct {
	start, end int
}

func (q query) Overlap(r biointerval.IntRange) bool {
	return q.start < r.End && r.Start < q.end
}

// Index is an augmented interval tree mapping a coordinate range to the set of
// record keys stored there.  Records that share identical bounds share a node.
// Thread compatible.
type Index struct {
	tree  biointerval.IntTree
	nodes map[span]*node
	nKeys int
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{nodes: map[span]*node{}}
}

// Insert adds key to the node for [start, end), creating the node if needed.
// Inserting a key already present at that node is a no-op.
func (x *Index) Insert(start, end int, key string) error {
	if end < start {
		return errors.E(errors.Invalid, fmt.Sprintf("interval.Index: inverted range [%d, %d) for %s", start, end, key))
	}
	s := span{start, end}
	if n, ok := x.nodes[s]; ok {
		if !n.hasKey(key) {
			n.keys = append(n.keys, key)
			x.nKeys++
		}
		return nil
	}
	n := &node{id: uintptr(len(x.nodes) + 1), start: start, end: end, keys: []string{key}}
	if err := x.tree.Insert(n, false); err != nil {
		return errors.E(errors.Invalid, err, fmt.Sprintf("interval.Index: insert [%d, %d)", start, end))
	}
	x.nodes[s] = n
	x.nKeys++
	return nil
}

// Overlappers returns every node whose range intersects [start, end), ordered
// by (start, end).  The returned Keys slices are copies.
func (x *Index) Overlappers(start, end int) []Entry {
	if x.tree.Len() == 0 || end <= start {
		return nil
	}
	var entries []Entry
	x.tree.DoMatching(func(e biointerval.IntInterface) bool {
		n := e.(*node)
		keys := make([]string, len(n.keys))
		copy(keys, n.keys)
		entries = append(entries, Entry{Start: n.start, End: n.end, Keys: keys})
		return false
	}, query{start, end})
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Start != entries[j].Start {
			return entries[i].Start < entries[j].Start
		}
		return entries[i].End < entries[j].End
	})
	return entries
}

// Len returns the number of distinct ranges in the index.
func (x *Index) Len() int { return len(x.nodes) }

// NumKeys returns the number of keys in the index.
func (x *Index) NumKeys() int { return x.nKeys }
