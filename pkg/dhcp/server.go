package dhcp

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/rf24node/rf24node-go/pkg/address"
)

// Lease timing.
const (
	// DefaultLeaseDuration is used when Config.LeaseDuration is zero.
	DefaultLeaseDuration = 10 * time.Minute

	// MinLeaseDuration and MaxLeaseDuration bound the lease an offer can
	// carry. Offers count whole seconds.
	MinLeaseDuration = time.Second
	MaxLeaseDuration = 65535 * time.Second

	// DefaultDedupWindow is how long copies of one request relayed by
	// several neighbours are ignored after the first.
	DefaultDedupWindow = 200 * time.Millisecond
)

// Server errors.
var (
	ErrNotRoot      = errors.New("lease server must run on a root node")
	ErrForeignTree  = errors.New("parent belongs to another tree")
	ErrNoSpace      = errors.New("no free address below parent")
	ErrDuplicate    = errors.New("duplicate address request")
	ErrUnknownLease = errors.New("unknown lease")
)

// Request is an address request as relayed to the root.
type Request struct {
	RequestID uint32
	Temp      address.Logical

	// Parent is the neighbour that relayed the request and will become the
	// parent of the new node.
	Parent address.Logical

	// Occupied has bit (id-1) set for child ids the parent already uses,
	// e.g. for statically addressed children.
	Occupied uint8
}

// Config configures a Server.
type Config struct {
	// LeaseDuration is the lease granted by offers and renewals. It is
	// rounded to whole seconds and clamped to [MinLeaseDuration,
	// MaxLeaseDuration].
	LeaseDuration time.Duration

	// DedupWindow is how long repeated copies of a request are ignored.
	DedupWindow time.Duration

	// Store persists the lease table. Optional.
	Store Store

	// Logger is the optional logger for debug output.
	// If nil, logging is disabled.
	Logger *slog.Logger
}

// Server allocates addresses in the tree of one root node. It is driven by
// the owning endpoint and is not safe for concurrent use.
type Server struct {
	root   address.Logical
	cfg    Config
	leases map[address.Logical]*Lease
	recent map[uint32]time.Time
}

// NewServer creates the lease server for root, restoring leases from
// cfg.Store when set. Restored leases outside root's tree are discarded.
func NewServer(root address.Logical, cfg Config) (*Server, error) {
	if !root.IsRoot() {
		return nil, fmt.Errorf("%w: %v", ErrNotRoot, root)
	}
	cfg.LeaseDuration = normalizeLease(cfg.LeaseDuration)
	if cfg.DedupWindow <= 0 {
		cfg.DedupWindow = DefaultDedupWindow
	}

	s := &Server{
		root:   root,
		cfg:    cfg,
		leases: make(map[address.Logical]*Lease),
		recent: make(map[uint32]time.Time),
	}

	if cfg.Store != nil {
		leases, err := cfg.Store.Load()
		if err != nil {
			return nil, fmt.Errorf("load leases: %w", err)
		}
		for _, l := range leases {
			if r, ok := l.Address.Root(); !ok || r != root || !l.Address.IsChild() {
				s.debugLog("dropping restored lease outside tree", "lease", l.String())
				continue
			}
			lease := l
			s.leases[l.Address] = &lease
		}
	}
	return s, nil
}

// Root returns the root address served.
func (s *Server) Root() address.Logical { return s.root }

func normalizeLease(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultLeaseDuration
	}
	return min(max(d.Round(time.Second), MinLeaseDuration), MaxLeaseDuration)
}

// LeaseDuration returns the effective lease duration.
func (s *Server) LeaseDuration() time.Duration { return s.cfg.LeaseDuration }

// Offer allocates the lowest free child id below req.Parent. A request
// already answered within the dedup window returns ErrDuplicate; a later
// retry of the same request gets its existing lease again. Failed offers are
// not remembered, so another relay of the same request may still succeed.
func (s *Server) Offer(req Request, now time.Time) (Lease, error) {
	for id, seen := range s.recent {
		if now.Sub(seen) >= s.cfg.DedupWindow {
			delete(s.recent, id)
		}
	}
	if _, ok := s.recent[req.RequestID]; ok {
		return Lease{}, fmt.Errorf("%w: %d", ErrDuplicate, req.RequestID)
	}

	for _, l := range s.leases {
		if l.RequestID == req.RequestID && !l.Expired(now) {
			l.ExpiresAt = now.Add(s.cfg.LeaseDuration)
			s.recent[req.RequestID] = now
			s.persist()
			return *l, nil
		}
	}

	if r, ok := req.Parent.Root(); !ok || r != s.root {
		return Lease{}, fmt.Errorf("%w: %v", ErrForeignTree, req.Parent)
	}
	if req.Parent.Level() >= address.MaxLevel {
		return Lease{}, fmt.Errorf("%w: %v is a leaf", ErrNoSpace, req.Parent)
	}

	used := req.Occupied
	for _, l := range s.leases {
		if l.Parent == req.Parent && !l.Expired(now) {
			used |= 1 << (l.Address.ChildID() - 1)
		}
	}

	for id := uint8(1); id <= address.MaxChildren; id++ {
		if used&(1<<(id-1)) != 0 {
			continue
		}
		addr, err := address.Child(req.Parent, id)
		if err != nil {
			return Lease{}, err
		}
		lease := &Lease{
			Address:   addr,
			Parent:    req.Parent,
			RequestID: req.RequestID,
			GrantedAt: now,
			ExpiresAt: now.Add(s.cfg.LeaseDuration),
		}
		s.leases[addr] = lease
		s.recent[req.RequestID] = now
		s.persist()
		s.debugLog("lease offered", "address", addr, "parent", req.Parent, "temp", req.Temp)
		return *lease, nil
	}
	return Lease{}, fmt.Errorf("%w: %v", ErrNoSpace, req.Parent)
}

// Renew extends the lease of addr.
func (s *Server) Renew(addr address.Logical, now time.Time) (Lease, error) {
	l, ok := s.leases[addr]
	if !ok || l.Expired(now) {
		return Lease{}, fmt.Errorf("%w: %v", ErrUnknownLease, addr)
	}
	l.ExpiresAt = now.Add(s.cfg.LeaseDuration)
	s.persist()
	s.debugLog("lease renewed", "address", addr, "expires", l.ExpiresAt)
	return *l, nil
}

// Release returns addr to the pool.
func (s *Server) Release(addr address.Logical) bool {
	if _, ok := s.leases[addr]; !ok {
		return false
	}
	delete(s.leases, addr)
	s.persist()
	return true
}

// Expire reclaims every lease that ran out at now and returns them.
func (s *Server) Expire(now time.Time) []Lease {
	var expired []Lease
	for addr, l := range s.leases {
		if l.Expired(now) {
			expired = append(expired, *l)
			delete(s.leases, addr)
		}
	}
	if len(expired) > 0 {
		sortLeases(expired)
		s.persist()
		s.debugLog("leases expired", "count", len(expired))
	}
	return expired
}

// Lookup returns the lease of addr.
func (s *Server) Lookup(addr address.Logical) (Lease, bool) {
	l, ok := s.leases[addr]
	if !ok {
		return Lease{}, false
	}
	return *l, true
}

// Leases returns the lease table ordered by address.
func (s *Server) Leases() []Lease {
	out := make([]Lease, 0, len(s.leases))
	for _, l := range s.leases {
		out = append(out, *l)
	}
	sortLeases(out)
	return out
}

// Len returns the number of leases held.
func (s *Server) Len() int { return len(s.leases) }

func (s *Server) persist() {
	if s.cfg.Store == nil {
		return
	}
	// The in-memory table stays authoritative when the store fails.
	if err := s.cfg.Store.Save(s.Leases()); err != nil && s.cfg.Logger != nil {
		s.cfg.Logger.Warn("lease store save failed", "root", s.root, "error", err)
	}
}

func (s *Server) debugLog(msg string, args ...any) {
	if s.cfg.Logger != nil {
		s.cfg.Logger.Debug(msg, append([]any{"root", s.root}, args...)...)
	}
}

func sortLeases(l []Lease) {
	sort.Slice(l, func(i, j int) bool { return l[i].Address < l[j].Address })
}
