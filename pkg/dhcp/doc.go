// Package dhcp implements the lease authority that hands out logical
// addresses to MESH nodes.
//
// Each root node runs one Server for its tree. A node without an address
// multicasts an address request from a temporary address. Neighbours that
// can take another child relay the request to their root, naming themselves
// as the parent and reporting which child ids they already use. The root
// answers the first relay with an offer for the lowest free id below it:
//
//	srv, _ := dhcp.NewServer(address.RootNode0, dhcp.Config{})
//	lease, err := srv.Offer(dhcp.Request{RequestID: 7, Temp: tmp, Parent: 0o1}, now)
//
// Leases expire unless renewed. Expire reclaims them; persistence of the
// table is delegated to a Store (see package persistence).
package dhcp
