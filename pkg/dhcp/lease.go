package dhcp

import (
	"fmt"
	"time"

	"github.com/rf24node/rf24node-go/pkg/address"
)

// Lease records one address handed out by a Server.
type Lease struct {
	// Address is the leased logical address.
	Address address.Logical `json:"address"`

	// Parent is the node the leaseholder attaches to.
	Parent address.Logical `json:"parent"`

	// RequestID is the id of the request that created the lease.
	RequestID uint32 `json:"request_id"`

	// GrantedAt is when the lease was first offered.
	GrantedAt time.Time `json:"granted_at"`

	// ExpiresAt is when the address returns to the pool unless renewed.
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the lease has run out at now.
func (l Lease) Expired(now time.Time) bool {
	return !now.Before(l.ExpiresAt)
}

// Remaining returns the time left on the lease, never negative.
func (l Lease) Remaining(now time.Time) time.Duration {
	if d := l.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}

// RemainingSeconds returns Remaining rounded up to whole seconds, as carried
// by offers and renew acks. It is zero only for an expired lease.
func (l Lease) RemainingSeconds(now time.Time) uint32 {
	return uint32((l.Remaining(now) + time.Second - 1) / time.Second)
}

func (l Lease) String() string {
	return fmt.Sprintf("%v via %v (req %d, expires %s)",
		l.Address, l.Parent, l.RequestID, l.ExpiresAt.Format(time.RFC3339))
}

// Store persists the lease table of one root. Save receives the full table
// after every change.
type Store interface {
	Load() ([]Lease, error)
	Save(leases []Lease) error
}
