package phlex

import (
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// segment is one step in a level path: a level name plus the ordinal of
// this instance within its parent.
type segment struct {
	name   string
	number uint64
}

// LevelID identifies one position in the nesting hierarchy as the full
// path of (name, number) pairs from the root. The root has depth 0 and
// is named "job" by convention.
//
// A LevelID is immutable once constructed. MakeChild returns a new ID
// and never modifies the receiver. Two IDs constructed from the same
// path are equal and share the same hash, which the scheduler relies on
// for join and flush keying.
type LevelID struct {
	segments []segment
	hash     uint64
}

// RootLevelName is the conventional name of the depth-0 level.
const RootLevelName = "job"

// Root returns the root level ID: depth 0, named "job", number 0.
func Root() *LevelID {
	return newLevelID([]segment{{name: RootLevelName, number: 0}})
}

func newLevelID(segs []segment) *LevelID {
	id := &LevelID{segments: segs}
	id.hash = xxhash.Sum64String(id.String())
	return id
}

// MakeChild returns a new ID extending this path by one segment.
// Repeated calls with identical arguments yield equal IDs.
func (id *LevelID) MakeChild(number uint64, name string) *LevelID {
	segs := make([]segment, len(id.segments)+1)
	copy(segs, id.segments)
	segs[len(id.segments)] = segment{name: name, number: number}
	return newLevelID(segs)
}

// Depth returns the number of segments below the root. The root is 0.
func (id *LevelID) Depth() int {
	return len(id.segments) - 1
}

// LevelName returns the name of the last segment.
func (id *LevelID) LevelName() string {
	return id.segments[len(id.segments)-1].name
}

// Number returns the ordinal of the last segment.
func (id *LevelID) Number() uint64 {
	return id.segments[len(id.segments)-1].number
}

// Parent returns the ID with the last segment removed, or nil for the root.
func (id *LevelID) Parent() *LevelID {
	if len(id.segments) <= 1 {
		return nil
	}
	return newLevelID(id.segments[:len(id.segments)-1])
}

// Hash returns a stable 64-bit hash of the full path.
func (id *LevelID) Hash() uint64 {
	return id.hash
}

// Equal reports whether both IDs consist of the same segments.
func (id *LevelID) Equal(other *LevelID) bool {
	if other == nil || len(id.segments) != len(other.segments) {
		return false
	}
	for i, s := range id.segments {
		if other.segments[i] != s {
			return false
		}
	}
	return true
}

// IsAncestorOf reports whether id is a strict prefix of other's path.
func (id *LevelID) IsAncestorOf(other *LevelID) bool {
	if other == nil || len(id.segments) >= len(other.segments) {
		return false
	}
	for i, s := range id.segments {
		if other.segments[i] != s {
			return false
		}
	}
	return true
}

// String renders the path as "job:0/event:3".
func (id *LevelID) String() string {
	var b strings.Builder
	for i, s := range id.segments {
		if i > 0 {
			b.WriteByte('/')
		}
		b.WriteString(s.name)
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(s.number, 10))
	}
	return b.String()
}
