package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/term"

	"github.com/Alia5/psxpad/busclient"
	"github.com/Alia5/psxpad/device/dualshock2"
)

type Probe struct {
	Addr     string        `help:"Bus server address" default:"localhost:3245" env:"PSXPAD_PROBE_ADDR"`
	Password string        `help:"Bus server password, when the server runs with --auth" env:"PSXPAD_PROBE_PASSWORD"`
	Interval time.Duration `help:"Poll interval" default:"16ms" env:"PSXPAD_PROBE_INTERVAL"`
	Count    int           `help:"Stop after this many polls, 0 polls until interrupted" default:"0" env:"PSXPAD_PROBE_COUNT"`
	Init     bool          `help:"Negotiate locked analog mode and rumble before polling" default:"true" negatable:"" env:"PSXPAD_PROBE_INIT"`
	Pressure bool          `help:"Also enable pressure reports" env:"PSXPAD_PROBE_PRESSURE"`
	Small    uint8         `help:"Small motor value sent with every poll" default:"0" env:"PSXPAD_PROBE_SMALL"`
	Large    uint8         `help:"Large motor value sent with every poll" default:"0" env:"PSXPAD_PROBE_LARGE"`
	Watch    bool          `help:"Redraw a single status line when stdout is a terminal" env:"PSXPAD_PROBE_WATCH"`
}

// Run is called by Kong when the probe command is executed.
func (p *Probe) Run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := busclient.Dial(ctx, p.Addr, &busclient.Config{
		DialTimeout:  3 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		Password:     p.Password,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	st, err := client.Status(ctx)
	if err != nil {
		return fmt.Errorf("status: %w", err)
	}
	logger.Info("Connected to bus", "addr", p.Addr, "bus", st.BusId, "transfers", st.Transfers)

	watch := p.Watch && term.IsTerminal(int(os.Stdout.Fd()))
	err = p.Poll(ctx, busclient.NewConsole(client), os.Stdout, watch)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// Poll negotiates if requested and prints one line per report to w.
func (p *Probe) Poll(ctx context.Context, c *busclient.Console, w io.Writer, watch bool) error {
	if p.Init {
		if err := c.Init(ctx, p.Pressure); err != nil {
			return fmt.Errorf("init: %w", err)
		}
	}
	width := 0
	if watch {
		if cols, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil {
			width = cols
		}
		defer fmt.Fprintln(w)
	}

	tick := time.NewTicker(p.Interval)
	defer tick.Stop()
	for n := 0; p.Count == 0 || n < p.Count; n++ {
		r, err := c.Poll(ctx, p.Small, p.Large)
		line := ""
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			line = "error: " + err.Error()
		} else {
			line = FormatPollResult(&r)
		}
		if watch {
			if width > 0 && len(line) >= width {
				line = line[:width-1]
			}
			fmt.Fprint(w, "\r\033[K"+line)
		} else {
			fmt.Fprintln(w, line)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-tick.C:
		}
	}
	return nil
}

type buttonName struct {
	hi   bool
	mask uint8
	name string
}

var buttonNames = []buttonName{
	{false, dualshock2.ButtonSelect, "select"},
	{false, dualshock2.ButtonL3, "l3"},
	{false, dualshock2.ButtonR3, "r3"},
	{false, dualshock2.ButtonStart, "start"},
	{false, dualshock2.ButtonUp, "up"},
	{false, dualshock2.ButtonRight, "right"},
	{false, dualshock2.ButtonDown, "down"},
	{false, dualshock2.ButtonLeft, "left"},
	{true, dualshock2.ButtonL2, "l2"},
	{true, dualshock2.ButtonR2, "r2"},
	{true, dualshock2.ButtonL1, "l1"},
	{true, dualshock2.ButtonR1, "r1"},
	{true, dualshock2.ButtonTriangle, "triangle"},
	{true, dualshock2.ButtonCircle, "circle"},
	{true, dualshock2.ButtonCross, "cross"},
	{true, dualshock2.ButtonSquare, "square"},
}

// FormatPollResult renders a report on one line.
func FormatPollResult(r *busclient.PollResult) string {
	var held []string
	for _, b := range buttonNames {
		if r.Pressed(b.hi, b.mask) {
			held = append(held, b.name)
		}
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%-8s [%s]", r.Mode, strings.Join(held, " "))
	if r.HasSticks {
		fmt.Fprintf(&sb, " L(%3d,%3d) R(%3d,%3d)", r.LX, r.LY, r.RX, r.RY)
	}
	if r.HasPressure {
		fmt.Fprintf(&sb, " P% X", r.Pressure[:])
	}
	return sb.String()
}
