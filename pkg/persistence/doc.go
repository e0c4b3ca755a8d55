// Package persistence stores the lease tables of root nodes so addresses
// survive a restart.
//
// LeaseFileStore writes one JSON file per root; SQLiteLeaseStore keeps the
// tables of any number of roots in a SQLite database. Both implement
// dhcp.Store.
package persistence
