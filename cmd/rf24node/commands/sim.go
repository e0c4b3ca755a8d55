package commands

import (
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/rf24node/rf24node-go/pkg/address"
	"github.com/rf24node/rf24node-go/pkg/endpoint"
	"github.com/rf24node/rf24node-go/pkg/log"
	"github.com/rf24node/rf24node-go/pkg/physical"
)

// Topology describes a simulated network.
type Topology struct {
	// Step is the simulated time between processing rounds.
	Step time.Duration `yaml:"step"`

	// MaxRounds bounds every bring-up and delivery phase.
	MaxRounds int `yaml:"max_rounds"`

	LeaseDuration time.Duration `yaml:"lease_duration"`
	RxQueueSize   uint16        `yaml:"rx_queue_size"`
	TxQueueSize   uint16        `yaml:"tx_queue_size"`

	Nodes    []SimNode    `yaml:"nodes"`
	Messages []SimMessage `yaml:"messages"`
}

// SimNode is one endpoint of a topology. Nodes come up in list order.
type SimNode struct {
	Name    string `yaml:"name"`
	Mode    string `yaml:"mode"`    // static (default) | mesh
	Address string `yaml:"address"` // static only
	Parent  string `yaml:"parent"`  // static only, empty = tree parent
}

// SimMessage is one message sent once the network is up.
type SimMessage struct {
	From    string `yaml:"from"`
	To      string `yaml:"to"`
	Payload string `yaml:"payload"`
}

// ParseTopology decodes a YAML topology and fills in defaults.
func ParseTopology(data []byte) (*Topology, error) {
	var t Topology
	if err := yaml.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("failed to parse topology: %w", err)
	}
	if t.Step <= 0 {
		t.Step = endpoint.DefaultRunInterval
	}
	if t.MaxRounds <= 0 {
		t.MaxRounds = 50
	}
	if t.RxQueueSize == 0 {
		t.RxQueueSize = 64
	}
	if t.TxQueueSize == 0 {
		t.TxQueueSize = 64
	}
	if len(t.Nodes) == 0 {
		return nil, errors.New("topology has no nodes")
	}
	seen := make(map[string]bool, len(t.Nodes))
	for i, n := range t.Nodes {
		if n.Name == "" {
			return nil, fmt.Errorf("node %d has no name", i)
		}
		if seen[n.Name] {
			return nil, fmt.Errorf("duplicate node name %q", n.Name)
		}
		seen[n.Name] = true
		if n.Mode == "" {
			t.Nodes[i].Mode = "static"
		}
	}
	for _, m := range t.Messages {
		if !seen[m.From] || !seen[m.To] {
			return nil, fmt.Errorf("message %s -> %s names an unknown node", m.From, m.To)
		}
	}
	return &t, nil
}

// SimResult is the outcome of a simulation run.
type SimResult struct {
	Nodes      []SimNodeResult
	Deliveries []SimDelivery
	Rounds     int
}

// SimNodeResult is the final state of one node.
type SimNodeResult struct {
	Name    string
	Address address.Logical
	Parent  address.Logical
	State   endpoint.State
	Stats   endpoint.Stats
}

// SimDelivery reports one message.
type SimDelivery struct {
	SimMessage
	Delivered bool
	Src       address.Logical
}

// simulation runs a topology on an in-memory medium with a simulated clock.
type simulation struct {
	topo   *Topology
	medium *physical.Medium
	now    time.Time
	eps    []*endpoint.Endpoint
	byName map[string]*endpoint.Endpoint
	rounds int
}

// Simulate brings every node of t up, sends its messages and reports the
// result. protoLog may be nil.
func Simulate(t *Topology, protoLog log.Logger) (*SimResult, error) {
	s := &simulation{
		topo:   t,
		medium: physical.NewMedium(),
		now:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		byName: make(map[string]*endpoint.Endpoint, len(t.Nodes)),
	}
	defer s.close()

	for _, def := range t.Nodes {
		ep, err := s.add(def, protoLog)
		if err != nil {
			return nil, fmt.Errorf("node %s: %w", def.Name, err)
		}
		if err := s.bringUp(ep); err != nil {
			return nil, fmt.Errorf("node %s: %w", def.Name, err)
		}
	}

	res := &SimResult{}
	for _, m := range t.Messages {
		res.Deliveries = append(res.Deliveries, s.deliver(m))
	}
	for i, def := range t.Nodes {
		ep := s.eps[i]
		res.Nodes = append(res.Nodes, SimNodeResult{
			Name:    def.Name,
			Address: ep.Address(),
			Parent:  ep.Parent(),
			State:   ep.State(),
			Stats:   ep.Stats(),
		})
	}
	res.Rounds = s.rounds
	return res, nil
}

func (s *simulation) clock() time.Time { return s.now }

func (s *simulation) add(def SimNode, protoLog log.Logger) (*endpoint.Endpoint, error) {
	opts := []endpoint.Option{
		endpoint.WithClock(s.clock),
		endpoint.WithProtocolLogger(protoLog),
	}
	if s.topo.LeaseDuration > 0 {
		opts = append(opts, endpoint.WithLeaseDuration(s.topo.LeaseDuration))
	}
	ep := endpoint.New(s.medium.NewLink(), opts...)
	s.eps = append(s.eps, ep)
	s.byName[def.Name] = ep

	if err := ep.Configure(endpoint.DefaultConfig(s.topo.RxQueueSize, s.topo.TxQueueSize)); err != nil {
		return nil, err
	}
	mode, err := endpoint.ParseMode(def.Mode)
	if err != nil {
		return nil, err
	}
	if err := ep.SetNetworkingMode(mode); err != nil {
		return nil, err
	}
	if mode != endpoint.ModeStatic {
		return ep, nil
	}

	addr, err := address.Parse(def.Address)
	if err != nil {
		return nil, err
	}
	if err := ep.SetEndpointStaticAddress(addr); err != nil {
		return nil, err
	}
	if def.Parent != "" {
		parent, err := address.Parse(def.Parent)
		if err != nil {
			return nil, err
		}
		if err := ep.SetParentStaticAddress(parent); err != nil {
			return nil, err
		}
	}
	return ep, nil
}

func (s *simulation) bringUp(ep *endpoint.Endpoint) error {
	if ep.State() == endpoint.StateConfigured {
		if err := ep.RequestAddress(); err != nil {
			return err
		}
		if !s.until(func() bool { return ep.AddressRequestStatus() != endpoint.RequestPending }) ||
			ep.AddressRequestStatus() != endpoint.RequestAssigned {
			return fmt.Errorf("address request %s", ep.AddressRequestStatus())
		}
	}
	if err := ep.Connect(); err != nil {
		return err
	}
	if !s.until(ep.IsConnected) {
		return fmt.Errorf("not connected after %d rounds (%s)", s.topo.MaxRounds, ep.State())
	}
	return nil
}

func (s *simulation) deliver(m SimMessage) SimDelivery {
	d := SimDelivery{SimMessage: m}
	from, to := s.byName[m.From], s.byName[m.To]
	if err := from.Write(to.Address(), []byte(m.Payload)); err != nil {
		return d
	}
	if !s.until(to.PacketAvailable) {
		return d
	}
	buf := make([]byte, to.NextPacketLength())
	n, src, err := to.ReadFrom(buf)
	if err != nil {
		return d
	}
	d.Delivered = string(buf[:n]) == m.Payload
	d.Src = src
	return d
}

// until runs rounds until cond holds or MaxRounds passed.
func (s *simulation) until(cond func() bool) bool {
	for range s.topo.MaxRounds {
		if cond() {
			return true
		}
		s.round()
	}
	return cond()
}

func (s *simulation) round() {
	s.rounds++
	s.now = s.now.Add(s.topo.Step)
	for _, ep := range s.eps {
		_ = ep.ProcessMessageBuffers()
		_ = ep.ProcessDHCPServer()
		_ = ep.ProcessMessageRequests()
		_ = ep.ProcessEventHandlers()
	}
}

func (s *simulation) close() {
	for _, ep := range s.eps {
		_ = ep.Close()
	}
}

// PrintSimResult writes r as tables.
func PrintSimResult(w io.Writer, r *SimResult) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NODE\tADDRESS\tPARENT\tSTATE\tRX\tTX\tFORWARDED")
	for _, n := range r.Nodes {
		fmt.Fprintf(tw, "%s\t%v\t%v\t%s\t%d\t%d\t%d\n",
			n.Name, n.Address, n.Parent, n.State, n.Stats.RxPackets, n.Stats.TxPackets, n.Stats.Forwarded)
	}
	tw.Flush()

	if len(r.Deliveries) > 0 {
		fmt.Fprintln(w)
		tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "FROM\tTO\tPAYLOAD\tRESULT")
		for _, d := range r.Deliveries {
			result := "lost"
			if d.Delivered {
				result = "delivered"
			}
			fmt.Fprintf(tw, "%s\t%s\t%q\t%s\n", d.From, d.To, d.Payload, result)
		}
		tw.Flush()
	}
	fmt.Fprintf(w, "\n%d rounds simulated\n", r.Rounds)
}

func newSimCommand() *cobra.Command {
	var protoLogPath string
	cmd := &cobra.Command{
		Use:   "sim <topology.yaml>",
		Short: "Simulate a network topology in memory",
		Long: `Bring up every node of a YAML topology on a simulated radio medium,
send the listed messages and report addresses, states and deliveries.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			topo, err := ParseTopology(data)
			if err != nil {
				return err
			}

			var protoLog log.Logger
			if protoLogPath != "" {
				fl, err := log.NewFileLogger(protoLogPath)
				if err != nil {
					return fmt.Errorf("failed to open protocol log: %w", err)
				}
				defer fl.Close()
				protoLog = fl
			}

			res, err := Simulate(topo, protoLog)
			if err != nil {
				return err
			}
			PrintSimResult(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVar(&protoLogPath, "protocol-log", "", "write protocol events to this CBOR file")
	return cmd
}
