package main

import (
	"fmt"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/notnil/cancomm"
)

func newMonitorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "monitor",
		Short: "Live table of the latest frame per identifier",
		Long: `Show a live table with one row per CAN identifier: the latest payload,
how many frames were seen and the time since the previous one.

Key bindings:
  c           Clear the table
  q / Ctrl+C  Quit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := a.newContext()
			defer c.Close()
			if err := a.connect(c); err != nil {
				return err
			}
			mux := cancomm.NewMux(c, a.cfg.PollInterval)
			defer mux.Close()
			frames, cancel := mux.Subscribe(nil, 1024)
			defer cancel()

			p := tea.NewProgram(newMonitorModel(c.Device(), frames), tea.WithAltScreen(),
				tea.WithInput(cmd.InOrStdin()), tea.WithOutput(cmd.OutOrStdout()))
			_, err := p.Run()
			return err
		},
	}
}

var (
	monTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("57")).
			Padding(0, 1)

	monHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("12"))

	monRowStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	monErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1")).
			Bold(true)

	monStatusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))
)

// frameMsg carries one frame from the subscription into the model.
type frameMsg cancomm.Frame

// busClosedMsg reports that the subscription channel was closed.
type busClosedMsg struct{}

// rowKey separates standard and extended frames with the same numeric ID.
type rowKey struct {
	id       uint32
	extended bool
}

type monitorRow struct {
	last   cancomm.Frame
	count  uint64
	period uint64 // microseconds between the last two frames
}

type monitorModel struct {
	device string
	frames <-chan cancomm.Frame
	rows   map[rowKey]*monitorRow
	errors uint64
	total  uint64
	closed bool
	height int
}

func newMonitorModel(device string, frames <-chan cancomm.Frame) monitorModel {
	return monitorModel{
		device: device,
		frames: frames,
		rows:   make(map[rowKey]*monitorRow),
	}
}

// waitForFrame blocks on the subscription for the next frame.
func waitForFrame(frames <-chan cancomm.Frame) tea.Cmd {
	return func() tea.Msg {
		f, ok := <-frames
		if !ok {
			return busClosedMsg{}
		}
		return frameMsg(f)
	}
}

func (m monitorModel) Init() tea.Cmd {
	return waitForFrame(m.frames)
}

func (m monitorModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "c":
			clear(m.rows)
			m.errors = 0
			m.total = 0
		}
		return m, nil

	case frameMsg:
		m.record(cancomm.Frame(msg))
		return m, waitForFrame(m.frames)

	case busClosedMsg:
		m.closed = true
		return m, nil
	}
	return m, nil
}

func (m *monitorModel) record(f cancomm.Frame) {
	m.total++
	if f.IsError() {
		m.errors++
		return
	}
	k := rowKey{id: f.ID, extended: f.Extended}
	r, ok := m.rows[k]
	if !ok {
		r = &monitorRow{}
		m.rows[k] = r
	} else if f.Timestamp >= r.last.Timestamp {
		r.period = f.Timestamp - r.last.Timestamp
	}
	r.last = f
	r.count++
}

// sortedKeys orders rows by identifier, standard frames first.
func (m monitorModel) sortedKeys() []rowKey {
	keys := make([]rowKey, 0, len(m.rows))
	for k := range m.rows {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].extended != keys[j].extended {
			return !keys[i].extended
		}
		return keys[i].id < keys[j].id
	})
	return keys
}

func (m monitorModel) View() string {
	var sb strings.Builder
	sb.WriteString(monTitleStyle.Render(fmt.Sprintf("cancomm monitor: %s", m.device)))
	sb.WriteString("\n\n")
	sb.WriteString(monHeaderStyle.Render(fmt.Sprintf("%-9s %-5s %8s %10s  %s", "ID", "LEN", "COUNT", "PERIOD", "DATA")))
	sb.WriteString("\n")

	keys := m.sortedKeys()
	if limit := m.height - 6; m.height > 0 && limit >= 0 && len(keys) > limit {
		keys = keys[:limit]
	}
	for _, k := range keys {
		r := m.rows[k]
		id := fmt.Sprintf("%03X", k.id)
		if k.extended {
			id = fmt.Sprintf("%08X", k.id)
		}
		length := fmt.Sprintf("%d", r.last.Len)
		if r.last.IsFD() {
			length = "##" + length
		}
		period := "-"
		if r.count > 1 {
			period = fmt.Sprintf("%.1fms", float64(r.period)/1000)
		}
		sb.WriteString(monRowStyle.Render(fmt.Sprintf("%-9s %-5s %8d %10s  % X", id, length, r.count, period, r.last.Payload())))
		sb.WriteString("\n")
	}

	sb.WriteString("\n")
	status := fmt.Sprintf("%d frames, %d ids", m.total, len(m.rows))
	if m.errors > 0 {
		status += "  " + monErrorStyle.Render(fmt.Sprintf("%d error frames", m.errors))
	}
	if m.closed {
		status += "  " + monErrorStyle.Render("bus closed")
	}
	sb.WriteString(monStatusStyle.Render(status + "  |  c: clear  q: quit"))
	return sb.String()
}
