package main

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/notnil/cancomm"
)

func newSendCmd(a *app) *cobra.Command {
	var forceFD, forceExt bool
	cmd := &cobra.Command{
		Use:   "send <frame>",
		Short: "Transmit one frame",
		Long: `Transmit one frame given in cansend syntax:

  <id>#<data>          classic frame, e.g. 123#DEADBEEF
  <id>##<flags><data>  CAN FD frame, e.g. 1ABCDE00##1112233

A 3-digit id is standard (11-bit), an 8-digit id is extended (29-bit).
Data bytes may be separated by dots. --ext and --fd force extended
identifiers and CAN FD framing for the short forms.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := parseCANFrame(args[0])
			if err != nil {
				return err
			}
			if forceExt {
				f.Extended = true
			}
			if forceFD {
				f.Flags |= cancomm.FlagFD
			}
			c := a.newContext()
			defer c.Close()
			if err := a.connect(c); err != nil {
				return err
			}
			if f.IsFD() && !c.FD() {
				return fmt.Errorf("%s does not support CAN FD", c.Device())
			}
			ts, err := c.TransmitFrame(f)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "(%s) %s %s\n", formatTimestamp(ts), c.Device(), f)
			return nil
		},
	}
	cmd.Flags().BoolVar(&forceFD, "fd", false, "send as CAN FD")
	cmd.Flags().BoolVar(&forceExt, "ext", false, "use a 29-bit identifier")
	return cmd
}

// parseCANFrame parses cansend style frames. RTR frames are not supported.
func parseCANFrame(s string) (cancomm.Frame, error) {
	var f cancomm.Frame
	idPart, rest, ok := strings.Cut(s, "#")
	if !ok {
		return f, fmt.Errorf("frame %q: missing '#'", s)
	}
	switch len(idPart) {
	case 3:
	case 8:
		f.Extended = true
	default:
		return f, fmt.Errorf("frame %q: id must have 3 or 8 hex digits", s)
	}
	id, err := strconv.ParseUint(idPart, 16, 32)
	if err != nil {
		return f, fmt.Errorf("frame %q: bad id: %w", s, err)
	}
	f.ID = uint32(id)

	if strings.HasPrefix(rest, "#") {
		rest = rest[1:]
		if rest == "" {
			return f, fmt.Errorf("frame %q: missing FD flags", s)
		}
		if _, err := strconv.ParseUint(rest[:1], 16, 4); err != nil {
			return f, fmt.Errorf("frame %q: bad FD flags: %w", s, err)
		}
		rest = rest[1:]
		f.Flags |= cancomm.FlagFD
	}
	if strings.HasPrefix(rest, "R") {
		return f, fmt.Errorf("frame %q: remote requests are not supported", s)
	}
	data, err := hex.DecodeString(strings.ReplaceAll(rest, ".", ""))
	if err != nil {
		return f, fmt.Errorf("frame %q: bad data: %w", s, err)
	}
	limit := cancomm.MaxDataLen
	if f.IsFD() {
		limit = cancomm.MaxFDDataLen
	}
	if len(data) > limit {
		return f, fmt.Errorf("frame %q: %d data bytes, max %d", s, len(data), limit)
	}
	f.Len = uint8(copy(f.Data[:], data))
	if err := f.Validate(); err != nil {
		return f, fmt.Errorf("frame %q: %w", s, err)
	}
	return f, nil
}

// formatTimestamp renders microseconds as seconds.micros.
func formatTimestamp(us uint64) string {
	return fmt.Sprintf("%d.%06d", us/1_000_000, us%1_000_000)
}
