package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"gopkg.in/yaml.v3"

	"github.com/notnil/cancomm"
)

type deviceInfo struct {
	Index int    `json:"index" yaml:"index"`
	Name  string `json:"name" yaml:"name"`
	State string `json:"state" yaml:"state"`
}

// writeDevices renders devices as a table, JSON or YAML.
func writeDevices(w io.Writer, format string, devices []deviceInfo) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(devices)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(devices); err != nil {
			return err
		}
		return enc.Close()
	default:
		if len(devices) == 0 {
			_, err := fmt.Fprintln(w, "No CAN devices found.")
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "INDEX\tNAME\tSTATE")
		for _, d := range devices {
			fmt.Fprintf(tw, "%d\t%s\t%s\n", d.Index, d.Name, d.State)
		}
		return tw.Flush()
	}
}

type frameRecord struct {
	Timestamp uint64 `json:"timestamp_us" yaml:"timestamp_us"`
	Device    string `json:"device" yaml:"device"`
	ID        uint32 `json:"id" yaml:"id"`
	Extended  bool   `json:"extended" yaml:"extended"`
	FD        bool   `json:"fd" yaml:"fd"`
	Error     bool   `json:"error,omitempty" yaml:"error,omitempty"`
	Data      string `json:"data" yaml:"data"`
}

// writeFrame prints one received frame. The table format is candump style;
// JSON is one object per line and YAML one document per frame.
func writeFrame(w io.Writer, format, device string, f cancomm.Frame) error {
	switch format {
	case "json", "yaml":
		rec := frameRecord{
			Timestamp: f.Timestamp,
			Device:    device,
			ID:        f.ID,
			Extended:  f.Extended,
			FD:        f.IsFD(),
			Error:     f.IsError(),
			Data:      hex.EncodeToString(f.Payload()),
		}
		if format == "json" {
			return json.NewEncoder(w).Encode(rec)
		}
		if _, err := fmt.Fprintln(w, "---"); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		if err := enc.Encode(rec); err != nil {
			return err
		}
		return enc.Close()
	default:
		_, err := fmt.Fprintf(w, "(%s) %s %s\n", formatTimestamp(f.Timestamp), device, f)
		return err
	}
}
