package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/notnil/cancomm"
	"github.com/notnil/cancomm/internal/config"
	"github.com/notnil/cancomm/internal/logging"
)

// app is the state shared by all subcommands, filled in by
// PersistentPreRunE.
type app struct {
	backend cancomm.Backend

	// flags
	cfgFile  string
	device   string
	logLevel string
	output   string

	cfg    config.Config
	logger zerolog.Logger
}

func newRootCmd(backend cancomm.Backend) *cobra.Command {
	a := &app{backend: backend, logger: zerolog.Nop()}
	root := &cobra.Command{
		Use:   "cancomm",
		Short: "Send, dump and echo CAN and CAN FD frames over SocketCAN",
		Long: `cancomm talks to Linux SocketCAN interfaces without blocking.
Interfaces must already be up; configure them with iproute2, e.g.

  ip link set can0 up type can bitrate 500000 dbitrate 2000000 fd on`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd)
		},
	}
	root.PersistentFlags().StringVar(&a.cfgFile, "config", "", "path to a TOML config file")
	root.PersistentFlags().StringVarP(&a.device, "device", "d", "", "CAN interface (default: first detected)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "log level: trace, debug, info, warn, error, off")
	root.PersistentFlags().StringVarP(&a.output, "output", "o", "", "output format: table, json, yaml")

	root.AddCommand(
		newDevicesCmd(a),
		newSendCmd(a),
		newDumpCmd(a),
		newEchoCmd(a),
		newMonitorCmd(a),
		newVersionCmd(),
	)
	return root
}

func (a *app) init(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}
	if a.device != "" {
		cfg.Device = a.device
	}
	if a.logLevel != "" {
		cfg.LogLevel = a.logLevel
	}
	if a.output != "" {
		cfg.Output = a.output
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	a.cfg = cfg
	a.logger = logging.New(cmd.ErrOrStderr(), "cancomm", cfg.LogLevel)
	return nil
}

func (a *app) newContext(opts ...cancomm.Option) *cancomm.Context {
	base := []cancomm.Option{cancomm.WithBackend(a.backend), cancomm.WithLogger(a.logger)}
	return cancomm.New(append(base, opts...)...)
}

// connect connects c to the configured device, or to the first CAN device
// found when none is configured.
func (a *app) connect(c *cancomm.Context) error {
	name := a.cfg.Device
	if name == "" {
		if c.BuildDeviceList() == 0 {
			return fmt.Errorf("no CAN devices detected")
		}
		name, _ = c.DeviceName(0)
	}
	if err := c.Connect(name); err != nil {
		return err
	}
	a.logger.Info().Str("device", name).Bool("fd", c.FD()).Msg("connected")
	return nil
}
