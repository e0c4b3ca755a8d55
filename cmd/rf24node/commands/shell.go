package commands

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"github.com/rf24node/rf24node-go/pkg/address"
	"github.com/rf24node/rf24node-go/pkg/endpoint"
)

// shell is the interactive command loop of a running node.
type shell struct {
	node *node
	rl   *readline.Instance
}

func newReadlineShell() (*shell, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          "rf24> ",
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline: %w", err)
	}
	return &shell{rl: rl}, nil
}

// Run reads commands until the user quits or ctx is done.
func (s *shell) Run(ctx context.Context, cancel context.CancelFunc) {
	defer s.rl.Close()
	out := s.rl.Stdout()
	printShellHelp(out)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line, err := s.rl.Readline()
		if err != nil {
			if errors.Is(err, readline.ErrInterrupt) {
				continue
			}
			fmt.Fprintln(out, "Exiting...")
			cancel()
			return
		}
		if quit := s.node.exec(ctx, line, out); quit {
			cancel()
			return
		}
	}
}

func printShellHelp(w io.Writer) {
	fmt.Fprint(w, `Commands:
  status             Show state, address and counters
  send <dst> <text>  Send a message
  ping <dst>         Ping a node
  children           List bound children
  leases             List leases (root nodes)
  renew              Renew the address lease (MESH nodes)
  connect            Connect and resume automatic reconnection
  disconnect         Disconnect and stay disconnected
  reconnect          Disconnect and connect again
  help               Show this help
  quit               Exit
`)
}

// exec runs one shell command against the node. It reports whether the
// shell should exit.
func (n *node) exec(ctx context.Context, line string, out io.Writer) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	var err error
	switch cmd {
	case "quit", "exit":
		return true
	case "help", "?":
		printShellHelp(out)
	case "status":
		err = n.runner.Do(ctx, func(ep *endpoint.Endpoint) error {
			printStatus(out, ep)
			return nil
		})
	case "send":
		if len(args) < 2 {
			err = errors.New("usage: send <dst> <text>")
			break
		}
		var dst address.Logical
		if dst, err = parseDestination(args[0]); err != nil {
			break
		}
		payload := []byte(strings.Join(args[1:], " "))
		err = n.runner.Do(ctx, func(ep *endpoint.Endpoint) error { return ep.Write(dst, payload) })
	case "ping":
		if len(args) != 1 {
			err = errors.New("usage: ping <dst>")
			break
		}
		var dst address.Logical
		if dst, err = address.Parse(args[0]); err != nil {
			break
		}
		err = n.runner.Do(ctx, func(ep *endpoint.Endpoint) error { return ep.Ping(dst) })
	case "children":
		err = n.runner.Do(ctx, func(ep *endpoint.Endpoint) error {
			for _, c := range ep.Children() {
				fmt.Fprintf(out, "  %v\n", c)
			}
			return nil
		})
	case "leases":
		err = n.runner.Do(ctx, func(ep *endpoint.Endpoint) error {
			for _, l := range ep.Leases() {
				fmt.Fprintf(out, "  %v\n", l)
			}
			return nil
		})
	case "renew":
		err = n.runner.Do(ctx, (*endpoint.Endpoint).RenewAddressReservation)
	case "connect":
		n.hold.Store(false)
		err = n.runner.Do(ctx, (*endpoint.Endpoint).Connect)
	case "disconnect":
		n.hold.Store(true)
		err = n.runner.Do(ctx, (*endpoint.Endpoint).Disconnect)
	case "reconnect":
		n.hold.Store(false)
		err = n.runner.Do(ctx, (*endpoint.Endpoint).Reconnect)
	default:
		err = fmt.Errorf("unknown command %q (try help)", cmd)
	}

	if err != nil {
		fmt.Fprintf(out, "error: %v (%s)\n", err, endpoint.StatusOf(err))
	}
	return false
}

func parseDestination(s string) (address.Logical, error) {
	if strings.EqualFold(s, "multicast") {
		return address.Multicast, nil
	}
	return address.Parse(s)
}

func printStatus(w io.Writer, ep *endpoint.Endpoint) {
	st := ep.Stats()
	fmt.Fprintf(w, "State:   %s (%s)\n", ep.State(), ep.Mode())
	fmt.Fprintf(w, "Address: %v  Parent: %v\n", ep.Address(), ep.Parent())
	if l, ok := ep.Lease(); ok {
		fmt.Fprintf(w, "Lease:   from %v until %s\n", l.Root, l.ExpiresAt.Format("15:04:05"))
	}
	fmt.Fprintf(w, "Packets: rx %d, tx %d, forwarded %d, dropped rx %d / tx %d\n",
		st.RxPackets, st.TxPackets, st.Forwarded, st.RxDropped, st.TxDropped)
	fmt.Fprintf(w, "Messages: sent %d, received %d\n", st.MessagesSent, st.MessagesReceived)
	if st.PongsReceived > 0 {
		fmt.Fprintf(w, "Ping:    %d/%d answered, last rtt %s\n", st.PongsReceived, st.PingsSent, st.LastRTT)
	}
}

func printableOrHex(b []byte) string {
	if printable(b) {
		return string(b)
	}
	return hex.EncodeToString(b)
}
