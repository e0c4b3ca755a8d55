// Package address implements RF24Node logical addressing.
//
// A logical address is a 16-bit value. Up to five independent trees exist,
// each rooted at a reserved base:
//
//	RootNode0 = 0, RootNode1 = 1000, RootNode2 = 2000, RootNode3 = 3000, RootNode4 = 4000
//
// Nodes inside a tree are addressed as base + offset, where the offset is read
// as octal digits. The least significant digit is the node id at level 1, the
// next digit the id at level 2, and so on. Ids run from 1 to 5 (a radio can
// listen on one parent pipe plus five child pipes) and a tree is at most three
// levels deep, so every offset stays below 0o1000 and therefore below the next
// root base.
//
//	root 0      ─┬─ 0o1 (1)  ─── 0o21 (17)
//	             ├─ 0o2 (2)  ─── 0o12 (10) ─── 0o312 (202)
//	             └─ 0o3 (3)
//
// A handful of values above the tree space are reserved: Invalid, Multicast and
// the Unassigned range used as temporary addresses while a mesh node negotiates
// a lease.
package address
