package commands

import (
	"bufio"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode"

	"github.com/google/gopacket"
	"github.com/spf13/cobra"

	"github.com/rf24node/rf24node-go/pkg/frame"
	"github.com/rf24node/rf24node-go/pkg/wire"
)

func newDecodeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "decode [hex...]",
		Short: "Decode hex-encoded packets",
		Long: `Decode raw RF24Node packets given as hex strings. Without arguments one
packet per line is read from stdin.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return DecodeStream(cmd.InOrStdin(), cmd.OutOrStdout())
			}
			for _, arg := range args {
				if err := DecodeHex(arg, cmd.OutOrStdout()); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// DecodeStream decodes one hex packet per line of r. Blank lines and lines
// starting with '#' are skipped.
func DecodeStream(r io.Reader, w io.Writer) error {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if err := DecodeHex(line, w); err != nil {
			fmt.Fprintf(w, "error: %v\n\n", err)
		}
	}
	return sc.Err()
}

// DecodeHex decodes a single packet and writes a description to w.
func DecodeHex(s string, w io.Writer) error {
	data, err := hex.DecodeString(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	if err != nil {
		return fmt.Errorf("invalid hex: %w", err)
	}

	pkt := gopacket.NewPacket(data, frame.LayerTypeRF24, gopacket.Default)
	if errLayer := pkt.ErrorLayer(); errLayer != nil {
		return fmt.Errorf("decode packet: %w", errLayer.Error())
	}
	l, ok := pkt.Layer(frame.LayerTypeRF24).(*frame.Layer)
	if !ok {
		return fmt.Errorf("decode packet: no RF24 layer")
	}

	h := l.Header
	fmt.Fprintf(w, "%s\n", h.Type)
	fmt.Fprintf(w, "  Number: %d\n", h.Number)
	fmt.Fprintf(w, "  Src: %v  Dst: %v\n", h.Src, h.Dst)
	if h.Type.IsFragment() {
		fmt.Fprintf(w, "  Reserved: %d\n", h.Reserved)
	}
	formatPayload(w, h.Type, l.LayerPayload())
	fmt.Fprintln(w)
	return nil
}

func formatPayload(w io.Writer, t frame.Type, payload []byte) {
	fmt.Fprintf(w, "  Size: %d bytes\n", len(payload))
	if len(payload) == 0 {
		return
	}
	if t.IsControl() {
		msg, err := wire.Decode(t, payload)
		if err != nil {
			fmt.Fprintf(w, "  Invalid control payload: %v\n", err)
			return
		}
		if b, err := json.Marshal(msg); err == nil {
			fmt.Fprintf(w, "  Message: %s\n", b)
		}
		return
	}
	fmt.Fprintf(w, "  Data: %s\n", hex.EncodeToString(payload))
	if printable(payload) {
		fmt.Fprintf(w, "  Text: %q\n", payload)
	}
}

func printable(b []byte) bool {
	for _, c := range string(b) {
		if !unicode.IsPrint(c) {
			return false
		}
	}
	return true
}
