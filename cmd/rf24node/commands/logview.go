package commands

import (
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rf24node/rf24node-go/pkg/address"
	"github.com/rf24node/rf24node-go/pkg/log"
)

// filterFlags are the event filters shared by the log subcommands.
type filterFlags struct {
	layer     string
	direction string
	category  string
	addr      string
	connID    string
}

func (f *filterFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.layer, "layer", "", "only events of layer (link, network, endpoint)")
	cmd.Flags().StringVar(&f.direction, "direction", "", "only events of direction (in, out, fwd)")
	cmd.Flags().StringVar(&f.category, "category", "", "only events of category (data, control, state, error)")
	cmd.Flags().StringVar(&f.addr, "address", "", "only events involving this node address")
	cmd.Flags().StringVar(&f.connID, "conn-id", "", "only events of this endpoint connection ID")
}

func (f *filterFlags) build() (log.Filter, error) {
	filter := log.Filter{ConnectionID: f.connID}
	var errs []error
	if f.layer != "" {
		l, err := log.ParseLayer(f.layer)
		filter.Layer, errs = &l, append(errs, err)
	}
	if f.direction != "" {
		d, err := log.ParseDirection(f.direction)
		filter.Direction, errs = &d, append(errs, err)
	}
	if f.category != "" {
		c, err := log.ParseCategory(f.category)
		filter.Category, errs = &c, append(errs, err)
	}
	if f.addr != "" {
		a, err := address.Parse(f.addr)
		filter.Address, errs = &a, append(errs, err)
	}
	return filter, errors.Join(errs...)
}

func newLogCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Inspect protocol log files",
	}

	var viewFilter filterFlags
	view := &cobra.Command{
		Use:   "view <file>",
		Short: "View a log file in human-readable form",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := viewFilter.build()
			if err != nil {
				return err
			}
			return RunView(args[0], filter, cmd.OutOrStdout())
		},
	}
	viewFilter.register(view)

	var exportFilter filterFlags
	var format, output string
	export := &cobra.Command{
		Use:   "export <file>",
		Short: "Export a log file as JSONL or CSV",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := exportFilter.build()
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create output file: %w", err)
				}
				defer f.Close()
				w = f
			}
			return RunExport(args[0], format, filter, w)
		},
	}
	exportFilter.register(export)
	export.Flags().StringVarP(&format, "format", "f", "jsonl", "output format (jsonl, csv)")
	export.Flags().StringVarP(&output, "output", "o", "", "output file (default stdout)")

	stats := &cobra.Command{
		Use:   "stats <file>",
		Short: "Summarise a log file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return RunStats(args[0], cmd.OutOrStdout())
		},
	}

	cmd.AddCommand(view, export, stats)
	return cmd
}

// RunView writes every matching event of the log at path to w, one line
// each.
func RunView(path string, filter log.Filter, w io.Writer) error {
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	return eachEvent(reader, func(ev log.Event) error {
		_, err := fmt.Fprintln(w, viewLine(ev))
		return err
	})
}

// eachEvent calls fn for every remaining event of reader.
func eachEvent(reader *log.Reader, fn func(log.Event) error) error {
	for {
		ev, err := reader.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read event: %w", err)
		}
		if err := fn(ev); err != nil {
			return err
		}
	}
}

// viewLine renders ev in the style of a packet trace:
//
//	2024-01-01 12:00:00.000000 01234567 0:012    OUT ENDPOINT ...
func viewLine(ev log.Event) string {
	var b strings.Builder
	dir := "-"
	if ev.Frame != nil || ev.Control != nil {
		dir = ev.Direction.String()
	}
	fmt.Fprintf(&b, "%s %-8s %-6s %-3s %-8s %s",
		ev.Timestamp.UTC().Format("2006-01-02 15:04:05.000000"),
		shortenConnID(ev.ConnectionID), ev.LocalAddr, dir, ev.Layer, ev.Label())

	switch {
	case ev.Frame != nil:
		h := ev.Frame.Header
		fmt.Fprintf(&b, " #%d %v > %v", h.Number, h.Src, h.Dst)
		if ev.PeerAddr != nil {
			fmt.Fprintf(&b, " via %v", *ev.PeerAddr)
		}
		fmt.Fprintf(&b, " len %d", ev.Frame.Size)
		if len(ev.Frame.Data) > 0 {
			fmt.Fprintf(&b, " data %s", hex.EncodeToString(ev.Frame.Data))
		}
	case ev.Control != nil:
		if ev.PeerAddr != nil {
			fmt.Fprintf(&b, " peer %v", *ev.PeerAddr)
		}
		if ev.Control.Payload != nil {
			if p, err := json.Marshal(jsonSafe(ev.Control.Payload)); err == nil {
				fmt.Fprintf(&b, " %s", p)
			}
		}
	case ev.StateChange != nil:
		sc := ev.StateChange
		old, next := sc.OldState, sc.NewState
		if old == "" {
			old = "(none)"
		}
		if next == "" {
			next = "(none)"
		}
		fmt.Fprintf(&b, " %s %s > %s", sc.Entity, old, next)
		if sc.Reason != "" {
			fmt.Fprintf(&b, " (%s)", sc.Reason)
		}
	case ev.Error != nil:
		e := ev.Error
		fmt.Fprintf(&b, " %s: %s", e.Layer, e.Message)
		if e.Context != "" {
			fmt.Fprintf(&b, " during %s", e.Context)
		}
		if e.Code != nil {
			fmt.Fprintf(&b, " [code %d]", *e.Code)
		}
	}
	return b.String()
}

// jsonSafe converts the generic maps produced by CBOR decoding, which may
// have integer keys, into maps JSON can encode.
func jsonSafe(v any) any {
	switch t := v.(type) {
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = jsonSafe(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = jsonSafe(val)
		}
		return out
	default:
		return v
	}
}

func shortenConnID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// RunExport writes the matching events of the log at path to w.
func RunExport(path, format string, filter log.Filter, w io.Writer) error {
	if format != "jsonl" && format != "csv" {
		return fmt.Errorf("unknown format: %s (supported: jsonl, csv)", format)
	}
	reader, err := log.NewFilteredReader(path, filter)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	if format == "jsonl" {
		return exportJSONL(reader, w)
	}
	return exportCSV(reader, w)
}

func exportJSONL(reader *log.Reader, w io.Writer) error {
	enc := json.NewEncoder(w)
	return eachEvent(reader, func(ev log.Event) error {
		if ev.Control != nil {
			ctl := *ev.Control
			ctl.Payload = jsonSafe(ctl.Payload)
			ev.Control = &ctl
		}
		if err := enc.Encode(ev); err != nil {
			return fmt.Errorf("failed to encode event: %w", err)
		}
		return nil
	})
}

var csvHeader = []string{"timestamp", "connection_id", "local", "direction", "layer", "category", "type", "src", "dst", "size"}

func exportCSV(reader *log.Reader, w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	err := eachEvent(reader, func(ev log.Event) error {
		var src, dst, size string
		if f := ev.Frame; f != nil {
			src, dst, size = f.Header.Src.String(), f.Header.Dst.String(), strconv.Itoa(f.Size)
		}
		return cw.Write([]string{
			ev.Timestamp.UTC().Format(time.RFC3339Nano),
			ev.ConnectionID,
			ev.LocalAddr.String(),
			ev.Direction.String(),
			ev.Layer.String(),
			ev.Category.String(),
			ev.Label(),
			src, dst, size,
		})
	})
	if err != nil {
		return err
	}
	cw.Flush()
	return cw.Error()
}

// Stats summarises a protocol log.
type Stats struct {
	TotalEvents       int
	EventsByLayer     map[log.Layer]int
	EventsByCategory  map[log.Category]int
	EventsByDirection map[log.Direction]int
	Nodes             map[address.Logical]*NodeStats
	Errors            int
	Start, End        time.Time
}

// NodeStats is the share of one logging node, keyed by its address at the
// time of each event.
type NodeStats struct {
	Events    int
	FramesIn  int
	FramesOut int
	Forwarded int
	States    int
}

func newStats() *Stats {
	return &Stats{
		EventsByLayer:     map[log.Layer]int{},
		EventsByCategory:  map[log.Category]int{},
		EventsByDirection: map[log.Direction]int{},
		Nodes:             map[address.Logical]*NodeStats{},
	}
}

func (s *Stats) add(ev log.Event) {
	s.TotalEvents++
	s.EventsByLayer[ev.Layer]++
	s.EventsByCategory[ev.Category]++
	s.EventsByDirection[ev.Direction]++
	if s.Start.IsZero() || ev.Timestamp.Before(s.Start) {
		s.Start = ev.Timestamp
	}
	if ev.Timestamp.After(s.End) {
		s.End = ev.Timestamp
	}
	if ev.Error != nil {
		s.Errors++
	}

	n := s.Nodes[ev.LocalAddr]
	if n == nil {
		n = &NodeStats{}
		s.Nodes[ev.LocalAddr] = n
	}
	n.Events++
	switch {
	case ev.StateChange != nil:
		n.States++
	case ev.Frame == nil:
	case ev.Direction == log.DirectionIn:
		n.FramesIn++
	case ev.Direction == log.DirectionOut:
		n.FramesOut++
	case ev.Direction == log.DirectionForward:
		n.Forwarded++
	}
}

// CollectStats reads the whole log at path.
func CollectStats(path string) (*Stats, error) {
	reader, err := log.NewReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	defer reader.Close()

	stats := newStats()
	err = eachEvent(reader, func(ev log.Event) error {
		stats.add(ev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}

// RunStats prints statistics of the log at path.
func RunStats(path string, w io.Writer) error {
	stats, err := CollectStats(path)
	if err != nil {
		return err
	}
	printStats(w, stats)
	return nil
}

func printStats(w io.Writer, s *Stats) {
	fmt.Fprintf(w, "Total Events: %d\n", s.TotalEvents)
	if s.TotalEvents == 0 {
		return
	}
	fmt.Fprintf(w, "Time Range:   %s .. %s (%s)\n",
		s.Start.Format(time.RFC3339), s.End.Format(time.RFC3339), s.End.Sub(s.Start).Round(time.Millisecond))
	if s.Errors > 0 {
		fmt.Fprintf(w, "Errors:       %d\n", s.Errors)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw)
	for _, l := range []log.Layer{log.LayerLink, log.LayerNetwork, log.LayerEndpoint} {
		fmt.Fprintf(tw, "%s\t%d\n", l, s.EventsByLayer[l])
	}
	fmt.Fprintln(tw)
	for _, c := range []log.Category{log.CategoryData, log.CategoryControl, log.CategoryState, log.CategoryError} {
		fmt.Fprintf(tw, "%s\t%d\n", c, s.EventsByCategory[c])
	}

	addrs := make([]address.Logical, 0, len(s.Nodes))
	for a := range s.Nodes {
		addrs = append(addrs, a)
	}
	slices.Sort(addrs)
	fmt.Fprintln(tw)
	fmt.Fprintln(tw, "NODE\tEVENTS\tIN\tOUT\tFWD\tSTATE")
	for _, a := range addrs {
		n := s.Nodes[a]
		fmt.Fprintf(tw, "%s\t%d\t%d\t%d\t%d\t%d\n", a, n.Events, n.FramesIn, n.FramesOut, n.Forwarded, n.States)
	}
	_ = tw.Flush()
}
