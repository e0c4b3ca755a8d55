package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/rf24node/rf24node-go/internal/config"
	"github.com/rf24node/rf24node-go/internal/logging"
	"github.com/rf24node/rf24node-go/internal/metrics"
	"github.com/rf24node/rf24node-go/pkg/address"
	"github.com/rf24node/rf24node-go/pkg/connection"
	"github.com/rf24node/rf24node-go/pkg/dhcp"
	"github.com/rf24node/rf24node-go/pkg/discovery"
	"github.com/rf24node/rf24node-go/pkg/endpoint"
	"github.com/rf24node/rf24node-go/pkg/frame"
	"github.com/rf24node/rf24node-go/pkg/log"
	"github.com/rf24node/rf24node-go/pkg/persistence"
	"github.com/rf24node/rf24node-go/pkg/physical"
)

const (
	// superviseInterval is how often a running node checks that it is
	// connected.
	superviseInterval = time.Second

	// scrapeTimeout bounds how long a metrics scrape waits for the runner.
	scrapeTimeout = 2 * time.Second
)

func newNodeCommand() *cobra.Command {
	var cfgPath string
	var interactive bool
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Run one endpoint over a UDP or serial link",
		Long: `Run an endpoint configured by a YAML file and RF24NODE_* environment
variables. The node keeps itself connected: MESH nodes lease an address first
and every node reconnects after losing its parent.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runNode(ctx, cfg, interactive, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "config file path")
	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "start an interactive shell")
	return cmd
}

// node holds everything a running endpoint needs and releases.
type node struct {
	cfg     *config.Config
	logger  *slog.Logger
	ep      *endpoint.Endpoint
	runner  *endpoint.Runner
	closers []io.Closer

	// udp and adv are set when the node finds its neighbours over mDNS.
	udp *physical.UDPLink
	adv *discovery.Advertiser

	metrics *metrics.Server

	// hold suspends automatic reconnection after a manual disconnect.
	hold atomic.Bool
}

func runNode(ctx context.Context, cfg *config.Config, interactive bool, out io.Writer) error {
	var sh *shell
	errOut := io.Writer(os.Stderr)
	if interactive {
		var err error
		sh, err = newReadlineShell()
		if err != nil {
			return err
		}
		out, errOut = sh.rl.Stdout(), sh.rl.Stderr()
	}

	n, err := newNode(ctx, cfg, out, errOut)
	if err != nil {
		if sh != nil {
			sh.rl.Close()
		}
		return err
	}
	defer n.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- n.runner.Run(ctx) }()
	if err := n.discover(ctx); err != nil {
		n.logger.Warn("mDNS discovery disabled", "error", err)
	}
	go n.supervise(ctx)

	n.logger.Info("node started", "id", n.ep.ID(), "mode", n.ep.Mode(), "address", n.ep.Address())
	if sh != nil {
		sh.node = n
		sh.Run(ctx, cancel)
	}

	select {
	case <-ctx.Done():
		err = <-done
	case err = <-done:
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func newNode(ctx context.Context, cfg *config.Config, out, errOut io.Writer) (*node, error) {
	n := &node{cfg: cfg}

	logger, closer, err := logging.New(cfg.Log, errOut)
	if err != nil {
		return nil, err
	}
	n.logger = logger
	n.closers = append(n.closers, closer)

	opts := []endpoint.Option{
		endpoint.WithLogger(logger),
		endpoint.WithAutoRenew(cfg.Node.AutoRenew),
		endpoint.WithLeaseDuration(cfg.Leases.Duration),
		endpoint.WithKeepAlive(connection.KeepAliveConfig{
			PingInterval:   cfg.Node.KeepAlive.PingInterval,
			PongTimeout:    cfg.Node.KeepAlive.PongTimeout,
			MaxMissedPongs: cfg.Node.KeepAlive.MaxMissedPongs,
		}),
	}
	policy, err := cfg.Node.Policy()
	if err != nil {
		n.close()
		return nil, err
	}
	opts = append(opts, endpoint.WithDisconnectPolicy(policy))

	opts = append(opts, endpoint.WithProtocolLogger(n.protocolLogger()))

	mode, err := cfg.Node.NetworkingMode()
	if err != nil {
		n.close()
		return nil, err
	}
	if mode == endpoint.ModeStatic {
		addr, err := cfg.Node.StaticAddress()
		if err != nil {
			n.close()
			return nil, err
		}
		if addr.IsRoot() {
			store, err := n.openLeaseStore(ctx, addr)
			if err != nil {
				n.close()
				return nil, err
			}
			if store != nil {
				opts = append(opts, endpoint.WithLeaseStore(store))
			}
		}
	}

	link, err := openLink(cfg.Link)
	if err != nil {
		n.close()
		return nil, err
	}
	n.ep = endpoint.New(link, opts...)
	n.closers = append(n.closers, n.ep)
	if udp, ok := link.(*physical.UDPLink); ok && cfg.Link.UDP.Discovery.Enabled {
		n.udp = udp
	}

	if err := n.setup(mode); err != nil {
		n.close()
		return nil, err
	}
	n.watch(out)
	n.runner = endpoint.NewRunner(n.ep, cfg.Node.Interval)
	if err := n.serveMetrics(); err != nil {
		n.close()
		return nil, err
	}
	return n, nil
}

// serveMetrics exposes the endpoint counters when metrics.listen is set.
func (n *node) serveMetrics() error {
	if n.cfg.Metrics.Listen == "" {
		return nil
	}
	c := metrics.NewCollector(metrics.FromRunner(n.runner, scrapeTimeout))
	srv := metrics.NewServer(n.cfg.Metrics.Listen, n.cfg.Metrics.Path, metrics.NewRegistry(c), n.logger)
	if err := srv.Start(); err != nil {
		return err
	}
	n.closers = append(n.closers, srv)
	n.metrics = srv
	return nil
}

func (n *node) protocolLogger() log.Logger {
	var loggers []log.Logger
	if n.cfg.ProtocolLog.Enabled {
		fl := log.NewRotatingFileLogger(log.RotateConfig{
			Filename:  n.cfg.ProtocolLog.Path,
			MaxSizeMB: n.cfg.ProtocolLog.MaxSizeMB,
		})
		n.closers = append(n.closers, fl)
		loggers = append(loggers, fl)
	}
	if n.logger.Enabled(context.Background(), slog.LevelDebug) {
		loggers = append(loggers, log.NewSlogAdapter(n.logger))
	}
	return log.Tee(loggers...)
}

func (n *node) openLeaseStore(ctx context.Context, root address.Logical) (dhcp.Store, error) {
	switch n.cfg.Leases.Store {
	case "json":
		return persistence.NewLeaseFileStore(n.cfg.Leases.Path, root), nil
	case "sqlite":
		s, err := persistence.OpenSQLite(ctx, n.cfg.Leases.Path, root)
		if err != nil {
			return nil, err
		}
		n.closers = append(n.closers, s)
		return s, nil
	default:
		return nil, nil
	}
}

func openLink(cfg config.LinkConfig) (physical.Link, error) {
	switch cfg.Type {
	case "serial":
		return physical.OpenSerial(physical.SerialConfig{
			Port:     cfg.Serial.Port,
			BaudRate: cfg.Serial.BaudRate,
		})
	case "udp":
		peers, err := cfg.UDP.PeerAddresses()
		if err != nil {
			return nil, err
		}
		return physical.ListenUDP(physical.UDPConfig{Listen: cfg.UDP.Listen, Peers: peers})
	default:
		return nil, fmt.Errorf("unsupported link type: %s", cfg.Type)
	}
}

func (n *node) setup(mode endpoint.NetworkingMode) error {
	c := n.cfg.Node
	if err := n.ep.Configure(endpoint.DefaultConfig(uint16(c.RxQueueSize), uint16(c.TxQueueSize))); err != nil {
		return err
	}
	if err := n.ep.SetNetworkingMode(mode); err != nil {
		return err
	}
	if mode != endpoint.ModeStatic {
		return nil
	}
	addr, err := c.StaticAddress()
	if err != nil {
		return err
	}
	if err := n.ep.SetEndpointStaticAddress(addr); err != nil {
		return err
	}
	if c.Parent == "" {
		return nil
	}
	parent, err := c.ParentAddress(addr)
	if err != nil {
		return err
	}
	return n.ep.SetParentStaticAddress(parent)
}

// watch prints connection changes and received messages to out. Handlers run
// on the runner goroutine.
func (n *node) watch(out io.Writer) {
	ep := n.ep
	_ = ep.OnEvent(endpoint.EventConnect, func(ev endpoint.Event) {
		fmt.Fprintf(out, "connected as %v (parent %v)\n", ep.Address(), ev.Peer)
	})
	_ = ep.OnEvent(endpoint.EventDisconnect, func(ev endpoint.Event) {
		fmt.Fprintf(out, "disconnected: %s\n", ev.Reason)
	})
	_ = ep.OnEvent(endpoint.EventMsgRx, func(endpoint.Event) {
		buf := make([]byte, frame.MaxMessageSize)
		for ep.PacketAvailable() {
			got, src, err := ep.ReadFrom(buf)
			if err != nil {
				return
			}
			fmt.Fprintf(out, "%v: %s\n", src, printableOrHex(buf[:got]))
		}
	})
}

// discover browses for UDP neighbours and prepares the advertisement of
// this node. It does nothing unless discovery is enabled.
func (n *node) discover(ctx context.Context) error {
	if n.udp == nil {
		return nil
	}
	d := n.cfg.Link.UDP.Discovery
	dc := discovery.Config{Interface: d.Interface, TTL: d.TTL}

	la, ok := n.udp.LocalAddr().(*net.UDPAddr)
	if !ok {
		return fmt.Errorf("unexpected UDP address %v", n.udp.LocalAddr())
	}
	peers, err := discovery.NewBrowser(dc, n.ep.ID()).Browse(ctx)
	if err != nil {
		return err
	}
	go discovery.Feed(peers, n.udp, func(p discovery.Peer, err error) {
		n.logger.Debug("ignoring neighbour", "instance", p.Instance, "error", err)
	})

	n.adv = discovery.NewAdvertiser(dc, n.ep.ID(), la.Port)
	n.closers = append(n.closers, n.adv)
	return nil
}

// advertise announces the current address once it changed.
func (n *node) advertise(ctx context.Context) {
	if n.adv == nil {
		return
	}
	addr := address.Invalid
	if err := n.runner.Do(ctx, func(ep *endpoint.Endpoint) error {
		addr = ep.Address()
		return nil
	}); err != nil {
		return
	}
	if err := n.adv.Advertise(addr); err != nil {
		n.logger.Warn("mDNS advertisement failed", "error", err)
	}
}

// supervise keeps the endpoint connected and advertised until ctx is done.
func (n *node) supervise(ctx context.Context) {
	ticker := time.NewTicker(superviseInterval)
	defer ticker.Stop()
	for {
		n.ensureConnected(ctx)
		n.advertise(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (n *node) ensureConnected(ctx context.Context) {
	if n.hold.Load() {
		return
	}
	err := n.runner.Do(ctx, func(ep *endpoint.Endpoint) error {
		switch ep.State() {
		case endpoint.StateConfigured:
			if ep.Mode() == endpoint.ModeMesh && ep.AddressRequestStatus() != endpoint.RequestPending {
				return ep.RequestAddress()
			}
		case endpoint.StateAddressAssigned, endpoint.StateDisconnected:
			return ep.Connect()
		}
		return nil
	})
	if err != nil && ctx.Err() == nil {
		n.logger.Warn("bring-up failed", "error", err)
	}
}

func (n *node) close() {
	for i := len(n.closers) - 1; i >= 0; i-- {
		if err := n.closers[i].Close(); err != nil && n.logger != nil {
			n.logger.Warn("close failed", "error", err)
		}
	}
	n.closers = nil
}
