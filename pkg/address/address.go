package address

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Logical is a 16-bit RF24Node logical address.
type Logical uint16

// Root node bases.
const (
	RootNode0 Logical = 0
	RootNode1 Logical = 1000
	RootNode2 Logical = 2000
	RootNode3 Logical = 3000
	RootNode4 Logical = 4000
)

// Tree geometry.
const (
	// RootSpan is the numeric distance between two root bases.
	RootSpan = 1000

	// MaxTrees is the number of independent trees.
	MaxTrees = 5

	// MaxLevel is the deepest level below a root.
	MaxLevel = 3

	// MaxChildren is the number of child slots per node (ids 1..MaxChildren).
	MaxChildren = 5

	// LevelInvalid is returned by Level for addresses outside the tree space.
	LevelInvalid = -1

	bitsPerLevel = 3
	digitMask    = 0o7
	maxOffset    = 0o555
)

// Reserved addresses.
const (
	// Invalid marks an absent address (e.g. the parent of a root node).
	Invalid Logical = 0xFFFF

	// Multicast delivers a frame to every node in radio range.
	Multicast Logical = 0xFFFE

	// UnassignedFirst is the first temporary address used during address negotiation.
	UnassignedFirst Logical = 0xF000

	// UnassignedLast is the last temporary address used during address negotiation.
	UnassignedLast Logical = 0xFFEF
)

// Roots lists the root bases in ascending order.
var Roots = [MaxTrees]Logical{RootNode0, RootNode1, RootNode2, RootNode3, RootNode4}

// Addressing errors.
var (
	ErrInvalidAddress = errors.New("invalid logical address")
	ErrInvalidChildID = errors.New("invalid child id")
	ErrTreeFull       = errors.New("maximum tree depth reached")
)

// inTreeSpace reports whether a falls inside the five root ranges.
func (a Logical) inTreeSpace() bool {
	return uint16(a) < RootSpan*MaxTrees
}

func (a Logical) offset() uint16 {
	return uint16(a) % RootSpan
}

// IsValid reports whether a is a well-formed tree address.
func (a Logical) IsValid() bool {
	return a.Level() != LevelInvalid
}

// IsRoot reports whether a is one of the root bases.
func (a Logical) IsRoot() bool {
	return a.inTreeSpace() && a.offset() == 0
}

// IsChild reports whether a is a valid non-root tree address.
func (a Logical) IsChild() bool {
	return a.Level() > 0
}

// IsReserved reports whether a is one of the reserved non-tree values.
func (a Logical) IsReserved() bool {
	return a == Invalid || a == Multicast || a.IsUnassigned()
}

// IsUnassigned reports whether a lies in the temporary negotiation range.
func (a Logical) IsUnassigned() bool {
	return a >= UnassignedFirst && a <= UnassignedLast
}

// Level returns the depth of a below its root (0 for roots) or LevelInvalid.
func (a Logical) Level() int {
	if !a.inTreeSpace() {
		return LevelInvalid
	}
	off := a.offset()
	if off > maxOffset {
		return LevelInvalid
	}

	level := 0
	for off != 0 {
		id := off & digitMask
		if id == 0 || id > MaxChildren {
			return LevelInvalid
		}
		level++
		off >>= bitsPerLevel
	}
	return level
}

// Root returns the root base of the tree containing a.
func (a Logical) Root() (Logical, bool) {
	if !a.IsValid() {
		return Invalid, false
	}
	return a - Logical(a.offset()), true
}

// TreeIndex returns the index (0..4) of the tree containing a.
func (a Logical) TreeIndex() (int, bool) {
	if !a.IsValid() {
		return 0, false
	}
	return int(uint16(a) / RootSpan), true
}

// Parent returns the parent of a. Roots and invalid addresses have none.
func (a Logical) Parent() (Logical, bool) {
	level := a.Level()
	if level <= 0 {
		return Invalid, false
	}
	shift := bitsPerLevel * (level - 1)
	mask := uint16(digitMask) << shift
	return a - Logical(a.offset()) + Logical(a.offset()&^mask), true
}

// IDAtLevel returns the node id encoded at the given level (1..MaxLevel),
// or 0 if a has no node at that level.
func (a Logical) IDAtLevel(level int) uint8 {
	if level < 1 || level > MaxLevel || level > a.Level() {
		return 0
	}
	return uint8((a.offset() >> (bitsPerLevel * (level - 1))) & digitMask)
}

// ChildID returns the id of a at its own level (0 for roots).
func (a Logical) ChildID() uint8 {
	return a.IDAtLevel(a.Level())
}

// Child returns the address of child id below parent.
func Child(parent Logical, id uint8) (Logical, error) {
	level := parent.Level()
	if level == LevelInvalid {
		return Invalid, fmt.Errorf("%w: %v", ErrInvalidAddress, parent)
	}
	if id == 0 || id > MaxChildren {
		return Invalid, fmt.Errorf("%w: %d", ErrInvalidChildID, id)
	}
	if level >= MaxLevel {
		return Invalid, fmt.Errorf("%w: %v is at level %d", ErrTreeFull, parent, level)
	}
	return parent + Logical(uint16(id)<<(bitsPerLevel*level)), nil
}

// IsDescendant reports whether node lies strictly below ancestor in the same tree.
func IsDescendant(ancestor, node Logical) bool {
	al, nl := ancestor.Level(), node.Level()
	if al == LevelInvalid || nl == LevelInvalid || nl <= al {
		return false
	}
	ar, _ := ancestor.Root()
	nr, _ := node.Root()
	if ar != nr {
		return false
	}
	mask := uint16(1)<<(bitsPerLevel*al) - 1
	return ancestor.offset() == node.offset()&mask
}

// IsDirectDescendant reports whether node is a child of ancestor.
func IsDirectDescendant(ancestor, node Logical) bool {
	return IsDescendant(ancestor, node) && node.Level() == ancestor.Level()+1
}

// AncestorAt returns the ancestor of a at the given level (0 = root).
func (a Logical) AncestorAt(level int) (Logical, bool) {
	al := a.Level()
	if al == LevelInvalid || level < 0 || level > al {
		return Invalid, false
	}
	root, _ := a.Root()
	mask := uint16(1)<<(bitsPerLevel*level) - 1
	return root + Logical(a.offset()&mask), true
}

// NextHop returns the neighbour a frame at from must be handed to in order to
// reach to. Frames for a descendant travel down through the matching child,
// everything else travels up. Root nodes hand frames for another tree to that
// tree's root.
func NextHop(from, to Logical) (Logical, bool) {
	if from == to || !from.IsValid() {
		return Invalid, false
	}
	if to == Multicast {
		return Multicast, true
	}
	if !to.IsValid() {
		return Invalid, false
	}

	if IsDescendant(from, to) {
		return to.AncestorAt(from.Level() + 1)
	}

	fr, _ := from.Root()
	tr, _ := to.Root()
	if from.IsRoot() && fr != tr {
		return tr, true
	}
	return from.Parent()
}

// String formats a as "<root>:<octal offset>" for tree addresses.
func (a Logical) String() string {
	switch {
	case a == Invalid:
		return "INVALID"
	case a == Multicast:
		return "MULTICAST"
	case a.IsUnassigned():
		return fmt.Sprintf("TEMP-%04X", uint16(a))
	case a.inTreeSpace():
		return fmt.Sprintf("%d:%03o", uint16(a)/RootSpan, a.offset())
	default:
		return fmt.Sprintf("0x%04X", uint16(a))
	}
}

// Parse accepts either a decimal address ("1010") or the "<tree>:<octal>"
// notation produced by String ("1:012").
func Parse(s string) (Logical, error) {
	s = strings.TrimSpace(s)
	tree, off, found := strings.Cut(s, ":")
	if !found {
		v, err := strconv.ParseUint(s, 10, 16)
		if err != nil {
			return Invalid, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
		}
		a := Logical(v)
		if !a.IsValid() {
			return Invalid, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
		}
		return a, nil
	}

	t, err := strconv.ParseUint(tree, 10, 8)
	if err != nil || t >= MaxTrees {
		return Invalid, fmt.Errorf("%w: tree %q", ErrInvalidAddress, tree)
	}
	o, err := strconv.ParseUint(off, 8, 16)
	if err != nil || o > maxOffset {
		return Invalid, fmt.Errorf("%w: offset %q", ErrInvalidAddress, off)
	}
	a := Roots[t] + Logical(o)
	if !a.IsValid() {
		return Invalid, fmt.Errorf("%w: %q", ErrInvalidAddress, s)
	}
	return a, nil
}
