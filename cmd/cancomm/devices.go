package main

import (
	"github.com/spf13/cobra"
)

func newDevicesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List CAN interfaces",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := a.newContext()
			defer c.Close()

			n := c.BuildDeviceList()
			devices := make([]deviceInfo, 0, n)
			for i := 0; i < n; i++ {
				name, ok := c.DeviceName(i)
				if !ok {
					break
				}
				state := "unknown"
				if up, err := a.backend.InterfaceUp(name); err == nil {
					state = "down"
					if up {
						state = "up"
					}
				}
				devices = append(devices, deviceInfo{Index: i, Name: name, State: state})
			}
			return writeDevices(cmd.OutOrStdout(), a.cfg.Output, devices)
		},
	}
}
