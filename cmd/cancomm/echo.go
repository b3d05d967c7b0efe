package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/notnil/cancomm"
)

func newEchoCmd(a *app) *cobra.Command {
	var offset uint32
	cmd := &cobra.Command{
		Use:   "echo",
		Short: "Send every received frame back with an incremented identifier",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("offset") {
				offset = a.cfg.Echo.IDOffset
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			c := a.newContext()
			defer c.Close()
			if err := a.connect(c); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Echoing on %s, press Ctrl+C to exit.\n", c.Device())
			return runEcho(ctx, c, offset, a.cfg.PollInterval, out)
		},
	}
	cmd.Flags().Uint32Var(&offset, "offset", 1, "value added to the identifier of echoed frames")
	return cmd
}

// runEcho receives frames from bus and transmits each one back with offset
// added to its identifier, until ctx is done. Error frames are skipped.
// The identifier wraps within its 11 or 29 bit range.
func runEcho(ctx context.Context, bus cancomm.Bus, offset uint32, interval time.Duration, out io.Writer) error {
	if interval <= 0 {
		interval = cancomm.DefaultPollInterval
	}
	timer := time.NewTimer(interval)
	defer timer.Stop()
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		f, err := bus.Receive()
		if errors.Is(err, cancomm.ErrNoFrame) {
			timer.Reset(interval)
			select {
			case <-ctx.Done():
				return nil
			case <-timer.C:
			}
			continue
		}
		if err != nil {
			return err
		}
		if f.IsError() {
			continue
		}
		fmt.Fprintf(out, "[PING] %s\n", f)

		mask := uint32(0x7FF)
		if f.Extended {
			mask = 0x1FFFFFFF
		}
		f.ID = (f.ID + offset) & mask
		if _, err := bus.Transmit(f.ID, f.Extended, f.Payload(), f.Flags&cancomm.FlagFD); err != nil {
			fmt.Fprintf(out, "[ERROR] echo %03X: %v\n", f.ID, err)
			continue
		}
		fmt.Fprintf(out, "[PONG] %s\n", f)
	}
}
