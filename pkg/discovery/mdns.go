package discovery

import (
	"context"
	"fmt"
	"sync"

	"github.com/enbility/zeroconf/v3"

	"github.com/rf24node/rf24node-go/pkg/address"
)

// Advertiser announces one node. The announcement is re-registered
// whenever the node's address changes.
type Advertiser struct {
	config Config
	id     string
	port   int

	mu     sync.Mutex
	server *zeroconf.Server
	addr   address.Logical
	closed bool
}

// NewAdvertiser creates an advertiser for the endpoint id listening on the
// given UDP port. Nothing is announced before the first Advertise.
func NewAdvertiser(config Config, id string, port int) *Advertiser {
	return &Advertiser{config: config, id: id, port: port, addr: address.Invalid}
}

// Advertise announces addr. Calling it again with the same address is a
// no-op.
func (a *Advertiser) Advertise(addr address.Logical) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	if a.server != nil && addr == a.addr {
		return nil
	}
	a.shutdown()

	server, err := zeroconf.Register(
		InstanceName(a.id),
		ServiceType,
		Domain,
		a.port,
		TXTRecordsToStrings(EncodeTXT(a.id, addr)),
		a.config.interfaces(),
		zeroconf.TTL(uint32(a.config.ttl().Seconds())),
	)
	if err != nil {
		return fmt.Errorf("failed to register %s: %w", ServiceType, err)
	}
	a.server = server
	a.addr = addr
	return nil
}

// Close withdraws the announcement.
func (a *Advertiser) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.shutdown()
	a.closed = true
	return nil
}

func (a *Advertiser) shutdown() {
	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
}

// Browser finds advertised neighbours.
type Browser struct {
	config Config

	// self is skipped when browsing.
	self string
}

// NewBrowser creates a browser that ignores the instance of endpoint self.
func NewBrowser(config Config, self string) *Browser {
	return &Browser{config: config, self: self}
}

// Browse reports every neighbour that advertises a logical address, and
// again whenever its address or IP addresses change. The channel is closed
// when ctx is done.
func (b *Browser) Browse(ctx context.Context) (<-chan Peer, error) {
	out := make(chan Peer)
	entries := make(chan *zeroconf.ServiceEntry)
	removed := make(chan *zeroconf.ServiceEntry)

	var opts []zeroconf.ClientOption
	if ifaces := b.config.interfaces(); ifaces != nil {
		opts = append(opts, zeroconf.SelectIfaces(ifaces))
	}

	go func() {
		defer close(out)

		// Services are aggregated by instance name across interfaces.
		known := make(map[string]Peer)
		for {
			select {
			case entry, ok := <-entries:
				if !ok {
					return
				}
				p, ok := b.entryToPeer(entry)
				if !ok {
					continue
				}
				prev, found := known[p.Instance]
				if found {
					merged := mergeAddresses(prev.Addresses, p.Addresses)
					if prev.Address == p.Address && len(merged) == len(prev.Addresses) {
						continue
					}
					p.Addresses = merged
				}
				known[p.Instance] = p
				select {
				case out <- p:
				case <-ctx.Done():
					return
				}

			case entry, ok := <-removed:
				if !ok {
					continue
				}
				if p, found := known[entry.Instance]; found {
					p.Addresses = removeAddresses(p.Addresses, entry)
					if len(p.Addresses) == 0 {
						delete(known, entry.Instance)
					} else {
						known[entry.Instance] = p
					}
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		_ = zeroconf.Browse(ctx, ServiceType, Domain, entries, removed, opts...)
	}()

	return out, nil
}

// entryToPeer converts a zeroconf entry. Entries of this node, entries
// without a logical address and malformed entries are skipped.
func (b *Browser) entryToPeer(entry *zeroconf.ServiceEntry) (Peer, bool) {
	id, addr, err := DecodeTXT(StringsToTXTRecords(entry.Text))
	if err != nil || id == b.self || addr == address.Invalid {
		return Peer{}, false
	}
	addrs := entryAddresses(entry)
	if len(addrs) == 0 {
		return Peer{}, false
	}
	return Peer{
		Instance:  entry.Instance,
		Host:      entry.HostName,
		Port:      uint16(entry.Port),
		Addresses: addrs,
		ID:        id,
		Address:   addr,
	}, true
}

func entryAddresses(entry *zeroconf.ServiceEntry) []string {
	addrs := make([]string, 0, len(entry.AddrIPv4)+len(entry.AddrIPv6))
	for _, ip := range entry.AddrIPv4 {
		addrs = append(addrs, ip.String())
	}
	for _, ip := range entry.AddrIPv6 {
		addrs = append(addrs, ip.String())
	}
	return addrs
}

// mergeAddresses adds new addresses to existing, avoiding duplicates.
func mergeAddresses(existing, added []string) []string {
	seen := make(map[string]bool, len(existing))
	out := append([]string(nil), existing...)
	for _, a := range existing {
		seen[a] = true
	}
	for _, a := range added {
		if !seen[a] {
			out = append(out, a)
			seen[a] = true
		}
	}
	return out
}

// removeAddresses drops the IP addresses of entry from addresses.
func removeAddresses(addresses []string, entry *zeroconf.ServiceEntry) []string {
	drop := make(map[string]bool)
	for _, ip := range entry.AddrIPv4 {
		drop[ip.String()] = true
	}
	for _, ip := range entry.AddrIPv6 {
		drop[ip.String()] = true
	}
	result := make([]string, 0, len(addresses))
	for _, a := range addresses {
		if !drop[a] {
			result = append(result, a)
		}
	}
	return result
}

// PeerAdder is implemented by links with a dynamic neighbour table, such as
// physical.UDPLink.
type PeerAdder interface {
	AddPeer(a address.Logical, endpoint string) error
}

// Feed adds every browsed peer to link until peers is closed. Peers that
// cannot be added are passed to onError when it is not nil.
func Feed(peers <-chan Peer, link PeerAdder, onError func(Peer, error)) {
	for p := range peers {
		ep, err := p.Endpoint()
		if err == nil {
			err = link.AddPeer(p.Address, ep)
		}
		if err != nil && onError != nil {
			onError(p, err)
		}
	}
}
