package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"gopkg.in/yaml.v3"

	"github.com/notnil/cancomm"
)

func testBackend(t *testing.T) *cancomm.LoopbackBus {
	t.Helper()
	t.Setenv("CANCOMM_DEVICE", "")
	t.Setenv("CANCOMM_LOG_LEVEL", "")
	lb := cancomm.NewLoopbackBus(
		cancomm.LoopbackInterface{Name: "can0", MTU: 72},
		cancomm.LoopbackInterface{Name: "vcan1", Down: true},
		cancomm.LoopbackInterface{Name: "eth0", MTU: 1500, HardwareType: 1},
	)
	t.Cleanup(func() { _ = lb.Close() })
	return lb
}

func execute(backend cancomm.Backend, args ...string) (string, error) {
	cmd := newRootCmd(backend)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func peer(t *testing.T, lb *cancomm.LoopbackBus, name string) *cancomm.Context {
	t.Helper()
	c := cancomm.New(cancomm.WithBackend(lb))
	if err := c.Connect(name); err != nil {
		t.Fatalf("connect %s: %v", name, err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestDevices_Table(t *testing.T) {
	out, err := execute(testBackend(t), "devices")
	if err != nil {
		t.Fatalf("devices: %v", err)
	}
	for _, want := range []string{"INDEX", "can0", "up", "vcan1", "down"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "eth0") {
		t.Fatalf("non-CAN interface listed:\n%s", out)
	}
}

func TestDevices_Empty(t *testing.T) {
	t.Setenv("CANCOMM_DEVICE", "")
	lb := cancomm.NewLoopbackBus()
	defer lb.Close()
	out, err := execute(lb, "devices")
	if err != nil {
		t.Fatalf("devices: %v", err)
	}
	if strings.TrimSpace(out) != "No CAN devices found." {
		t.Fatalf("got %q", out)
	}
}

func TestDevices_JSON(t *testing.T) {
	out, err := execute(testBackend(t), "devices", "-o", "json")
	if err != nil {
		t.Fatalf("devices: %v", err)
	}
	var got []deviceInfo
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	want := []deviceInfo{{0, "can0", "up"}, {1, "vcan1", "down"}}
	if len(got) != len(want) {
		t.Fatalf("got %+v, want %+v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("device %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestDevices_YAML(t *testing.T) {
	out, err := execute(testBackend(t), "devices", "--output", "yaml")
	if err != nil {
		t.Fatalf("devices: %v", err)
	}
	var got []deviceInfo
	if err := yaml.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if len(got) != 2 || got[0].Name != "can0" || got[1].State != "down" {
		t.Fatalf("got %+v", got)
	}
}

func TestInvalidOutputFormat(t *testing.T) {
	if _, err := execute(testBackend(t), "devices", "-o", "xml"); err == nil {
		t.Fatalf("expected error for unknown output format")
	}
}

func TestVersion(t *testing.T) {
	out, err := execute(testBackend(t), "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "cancomm version "+version) {
		t.Fatalf("got %q", out)
	}
}

func TestSend_Classic(t *testing.T) {
	lb := testBackend(t)
	rx := peer(t, lb, "can0")

	out, err := execute(lb, "send", "-d", "can0", "123#DEAD.BEEF")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if !strings.Contains(out, "can0 123 [4] DE AD BE EF") {
		t.Fatalf("unexpected output %q", out)
	}
	f, err := rx.Receive()
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if f.ID != 0x123 || f.Extended || f.IsFD() || !bytes.Equal(f.Payload(), []byte{0xDE, 0xAD, 0xBE, 0xEF}) {
		t.Fatalf("received %v", f)
	}
}

func TestSend_FD(t *testing.T) {
	lb := testBackend(t)
	rx := peer(t, lb, "can0")

	if _, err := execute(lb, "send", "-d", "can0", "1ABCDE00##1000102030405060708090A"); err != nil {
		t.Fatalf("send: %v", err)
	}
	f, err := rx.Receive()
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if f.ID != 0x1ABCDE00 || !f.Extended || !f.IsFD() || f.Len != 12 {
		t.Fatalf("received %v", f)
	}
}

func TestSend_ForceExtended(t *testing.T) {
	lb := testBackend(t)
	rx := peer(t, lb, "can0")
	if _, err := execute(lb, "send", "-d", "can0", "--ext", "--fd", "123#01"); err != nil {
		t.Fatalf("send: %v", err)
	}
	f, err := rx.Receive()
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if f.ID != 0x123 || !f.Extended || !f.IsFD() {
		t.Fatalf("received %v", f)
	}
}

func TestSend_FDOnClassicDevice(t *testing.T) {
	lb := testBackend(t)
	lb.AddInterface(cancomm.LoopbackInterface{Name: "can1"})
	if _, err := execute(lb, "send", "-d", "can1", "123##1AABB"); err == nil {
		t.Fatalf("expected error sending FD frame on classic device")
	}
}

func TestSend_DefaultsToFirstDevice(t *testing.T) {
	lb := testBackend(t)
	rx := peer(t, lb, "can0")
	if _, err := execute(lb, "send", "7FF#"); err != nil {
		t.Fatalf("send: %v", err)
	}
	f, err := rx.Receive()
	if err != nil || f.ID != 0x7FF || f.Len != 0 {
		t.Fatalf("receive = %v, %v", f, err)
	}
}

func TestParseCANFrame(t *testing.T) {
	tests := []struct {
		in      string
		id      uint32
		ext, fd bool
		data    []byte
		wantErr bool
	}{
		{in: "123#", id: 0x123},
		{in: "123#0102", id: 0x123, data: []byte{1, 2}},
		{in: "7ff#11.22.33", id: 0x7FF, data: []byte{0x11, 0x22, 0x33}},
		{in: "00000123#AA", id: 0x123, ext: true, data: []byte{0xAA}},
		{in: "123##0", id: 0x123, fd: true},
		{in: "123##3" + strings.Repeat("00", 12), id: 0x123, fd: true, data: make([]byte, 12)},
		{in: "123", wantErr: true},
		{in: "12#00", wantErr: true},
		{in: "800#00", wantErr: true},
		{in: "20000000#00", wantErr: true},
		{in: "xyz#00", wantErr: true},
		{in: "123#0", wantErr: true},
		{in: "123#R", wantErr: true},
		{in: "123##", wantErr: true},
		{in: "123##G00", wantErr: true},
		{in: "123#" + strings.Repeat("00", 9), wantErr: true},
		{in: "123##0" + strings.Repeat("00", 65), wantErr: true},
	}
	for _, tt := range tests {
		f, err := parseCANFrame(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("%q: expected error, got %v", tt.in, f)
			}
			continue
		}
		if err != nil {
			t.Errorf("%q: %v", tt.in, err)
			continue
		}
		if f.ID != tt.id || f.Extended != tt.ext || f.IsFD() != tt.fd || !bytes.Equal(f.Payload(), tt.data) {
			t.Errorf("%q: got %v", tt.in, f)
		}
	}
}

func TestFormatTimestamp(t *testing.T) {
	if got := formatTimestamp(12_000_345); got != "12.000345" {
		t.Fatalf("got %q", got)
	}
}

func TestRunEcho(t *testing.T) {
	lb := testBackend(t)
	echo := peer(t, lb, "can0")
	rx := peer(t, lb, "can0")

	ctx, cancel := context.WithCancel(context.Background())
	var out bytes.Buffer
	done := make(chan error, 1)
	go func() { done <- runEcho(ctx, echo, 1, time.Millisecond, &out) }()

	if _, err := rx.Transmit(0x7FF, false, []byte{1, 2}, 0); err != nil {
		t.Fatalf("transmit: %v", err)
	}
	if _, err := rx.Transmit(0x100, true, []byte{3}, 0); err != nil {
		t.Fatalf("transmit: %v", err)
	}

	var got []cancomm.Frame
	deadline := time.Now().Add(2 * time.Second)
	for len(got) < 2 && time.Now().Before(deadline) {
		f, err := rx.Receive()
		if errors.Is(err, cancomm.ErrNoFrame) {
			time.Sleep(time.Millisecond)
			continue
		}
		if err != nil {
			t.Fatalf("receive: %v", err)
		}
		got = append(got, f)
	}
	cancel()
	if err := <-done; err != nil {
		t.Fatalf("runEcho: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d echoed frames, want 2", len(got))
	}
	// 0x7FF wraps within the 11-bit range.
	if got[0].ID != 0x000 || got[0].Extended || !bytes.Equal(got[0].Payload(), []byte{1, 2}) {
		t.Fatalf("first echo = %v", got[0])
	}
	if got[1].ID != 0x101 || !got[1].Extended {
		t.Fatalf("second echo = %v", got[1])
	}
	if !strings.Contains(out.String(), "[PING] 7FF [2] 01 02") || !strings.Contains(out.String(), "[PONG] 00000101 [1] 03") {
		t.Fatalf("unexpected log:\n%s", out.String())
	}
}

func TestRunEcho_StopsOnCancel(t *testing.T) {
	lb := testBackend(t)
	echo := peer(t, lb, "can0")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := runEcho(ctx, echo, 1, 0, io.Discard); err != nil {
		t.Fatalf("runEcho: %v", err)
	}
}

func TestRunEcho_ReturnsBusError(t *testing.T) {
	lb := testBackend(t)
	echo := cancomm.New(cancomm.WithBackend(lb))
	defer echo.Close()
	err := runEcho(context.Background(), echo, 1, time.Millisecond, io.Discard)
	if !errors.Is(err, cancomm.ErrNotConnected) {
		t.Fatalf("err = %v, want ErrNotConnected", err)
	}
}

func TestDump_JSONCount(t *testing.T) {
	lb := testBackend(t)

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := execute(lb, "dump", "-d", "can0", "-o", "json", "--count", "2", "--id", "0x123")
		done <- result{out, err}
	}()

	var res result
	ticker := time.NewTicker(time.Millisecond)
	defer ticker.Stop()
	timeout := time.After(5 * time.Second)
loop:
	for {
		select {
		case res = <-done:
			break loop
		case <-ticker.C:
			_ = lb.InjectFrame("can0", cancomm.MustFrame(0x200, []byte{0xFF}))
			_ = lb.InjectFrame("can0", cancomm.MustFrame(0x123, []byte{0xAB, 0xCD}))
		case <-timeout:
			t.Fatalf("dump did not return")
		}
	}
	if res.err != nil {
		t.Fatalf("dump: %v", res.err)
	}
	lines := strings.Split(strings.TrimSpace(res.out), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines:\n%s", len(lines), res.out)
	}
	for _, line := range lines {
		var rec frameRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			t.Fatalf("decode %q: %v", line, err)
		}
		if rec.ID != 0x123 || rec.Device != "can0" || rec.Data != "abcd" || rec.FD {
			t.Fatalf("record = %+v", rec)
		}
	}
}

func TestDumpFilter(t *testing.T) {
	errFrame := cancomm.Frame{Flags: cancomm.FlagError}
	data := cancomm.MustFrame(0x42, nil)

	f, err := dumpFilter(nil, false)
	if err != nil || !f(data) || f(errFrame) {
		t.Fatalf("default filter wrong (err %v)", err)
	}
	f, err = dumpFilter([]string{"43", "0x42"}, true)
	if err != nil || !f(data) || !f(errFrame) || f(cancomm.MustFrame(0x44, nil)) {
		t.Fatalf("id filter wrong (err %v)", err)
	}
	if _, err := dumpFilter([]string{"zz"}, false); err == nil {
		t.Fatalf("expected error for bad id")
	}
}

func TestWriteFrame(t *testing.T) {
	f := cancomm.MustFrame(0x123, []byte{0xDE, 0xAD})
	f.Timestamp = 1_500_000

	var buf bytes.Buffer
	if err := writeFrame(&buf, "table", "can0", f); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "(1.500000) can0 123 [2] DE AD\n" {
		t.Fatalf("table = %q", got)
	}

	buf.Reset()
	if err := writeFrame(&buf, "yaml", "can0", f); err != nil {
		t.Fatal(err)
	}
	var rec frameRecord
	if err := yaml.Unmarshal(bytes.TrimPrefix(buf.Bytes(), []byte("---\n")), &rec); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	if rec.ID != 0x123 || rec.Timestamp != 1_500_000 || rec.Data != "dead" {
		t.Fatalf("yaml record = %+v", rec)
	}
}

func TestMonitorModel(t *testing.T) {
	frames := make(chan cancomm.Frame)
	var m tea.Model = newMonitorModel("can0", frames)

	a := cancomm.MustFrame(0x123, []byte{1})
	a.Timestamp = 1000
	b := cancomm.MustFrame(0x123, []byte{2})
	b.Timestamp = 11000
	c := cancomm.MustFrame(0x1ABCDE, make([]byte, 12))

	for _, f := range []cancomm.Frame{a, b, c, {Flags: cancomm.FlagError}} {
		var cmd tea.Cmd
		m, cmd = m.Update(frameMsg(f))
		if cmd == nil {
			t.Fatalf("expected a command waiting for the next frame")
		}
	}
	view := m.View()
	for _, want := range []string{"can0", "123", "02", "10.0ms", "001ABCDE", "##12", "4 frames, 2 ids", "1 error frames"} {
		if !strings.Contains(view, want) {
			t.Fatalf("view missing %q:\n%s", want, view)
		}
	}

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("c")})
	if view := m.View(); !strings.Contains(view, "0 frames, 0 ids") {
		t.Fatalf("clear did not reset:\n%s", view)
	}

	m, _ = m.Update(busClosedMsg{})
	if !strings.Contains(m.View(), "bus closed") {
		t.Fatalf("closed state not shown")
	}
	if _, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")}); cmd == nil {
		t.Fatalf("q should quit")
	}
}

func TestWaitForFrame(t *testing.T) {
	frames := make(chan cancomm.Frame, 1)
	frames <- cancomm.MustFrame(0x10, nil)
	if msg := waitForFrame(frames)(); cancomm.Frame(msg.(frameMsg)).ID != 0x10 {
		t.Fatalf("got %v", msg)
	}
	close(frames)
	if _, ok := waitForFrame(frames)().(busClosedMsg); !ok {
		t.Fatalf("expected busClosedMsg")
	}
}
