package main

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"forge-go/internal/app"
	"forge-go/internal/forge"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

// watchInterrupts returns a cancel flag that is set when the process receives
// SIGINT or SIGTERM. The transfer polls the flag between chunks, so a single
// interrupt stops the operation at the next chunk boundary.
func watchInterrupts() *forge.CancelFlag {
	cancel := forge.NewCancelFlag()
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-ch
		fmt.Fprintln(os.Stderr, "\ninterrupt received, stopping after the current chunk...")
		cancel.Cancel()
	}()
	return cancel
}

// saveTerminalState captures the terminal mode so it can be restored after an
// interrupt arrives mid-render. Returns a no-op when stdin is not a terminal.
func saveTerminalState() func() {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return func() {}
	}
	state, err := term.GetState(fd)
	if err != nil {
		return func() {}
	}
	return func() { term.Restore(fd, state) }
}

// selectDevice prints a numbered menu of removable devices and reads a choice.
func selectDevice(a *app.ForgeApp) (forge.BlockDevice, error) {
	devices, err := a.ListDevices()
	if err != nil {
		return forge.BlockDevice{}, err
	}
	if len(devices) == 0 {
		return forge.BlockDevice{}, fmt.Errorf("no removable devices found")
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return forge.BlockDevice{}, fmt.Errorf("no device given and stdin is not a terminal")
	}

	fmt.Println("Removable devices:")
	for i, d := range devices {
		fmt.Printf("  [%d] %s\n", i+1, d.String())
	}
	fmt.Printf("Select device [1-%d]: ", len(devices))

	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return forge.BlockDevice{}, fmt.Errorf("reading selection: %w", err)
	}
	n, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil || n < 1 || n > len(devices) {
		return forge.BlockDevice{}, fmt.Errorf("invalid selection %q", strings.TrimSpace(line))
	}
	return devices[n-1], nil
}

// confirm asks a yes/no question on the terminal. Anything but "y"/"yes" is no.
func confirm(question string) bool {
	fmt.Printf("%s [y/N]: ", question)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

// progressRenderer redraws a single console line per progress event and
// starts a new line whenever the phase changes.
type progressRenderer struct {
	out      io.Writer
	phase    forge.Phase
	started  time.Time
	active   bool
	lastDraw time.Time
}

func newProgressRenderer() *progressRenderer {
	return &progressRenderer{out: os.Stdout}
}

// Observe is the forge.ProgressFunc fed into the engine.
func (p *progressRenderer) Observe(ev forge.ProgressEvent) {
	now := time.Now()
	final := ev.TotalBytes > 0 && ev.BytesDone == ev.TotalBytes
	if !p.active || ev.Phase != p.phase {
		if p.active {
			fmt.Fprintln(p.out)
		}
		p.phase = ev.Phase
		p.started = now
		p.active = true
	} else if !final && now.Sub(p.lastDraw) < 100*time.Millisecond {
		// Redrawing per 1 MiB chunk floods slow terminals. The final
		// event of a phase always draws so the line reaches 100%.
		return
	}
	p.lastDraw = now

	elapsed := now.Sub(p.started).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(ev.BytesDone) / (1024 * 1024) / elapsed
	}

	if ev.TotalBytes > 0 {
		pct := float64(ev.BytesDone) / float64(ev.TotalBytes)
		fmt.Fprintf(p.out, "\r%-13s %s %3.0f%%  %s / %s  %.1f MiB/s",
			p.phase.String(), bar(pct, 30), pct*100,
			humanize.IBytes(uint64(ev.BytesDone)), humanize.IBytes(uint64(ev.TotalBytes)), rate)
	} else {
		fmt.Fprintf(p.out, "\r%-13s %s  %.1f MiB/s",
			p.phase.String(), humanize.IBytes(uint64(ev.BytesDone)), rate)
	}
}

// Finish terminates the in-progress line, if any. Safe to call twice.
func (p *progressRenderer) Finish() {
	if p.active {
		fmt.Fprintln(p.out)
		p.active = false
	}
}

func bar(fraction float64, width int) string {
	if fraction < 0 {
		fraction = 0
	}
	if fraction > 1 {
		fraction = 1
	}
	filled := int(fraction * float64(width))
	return "[" + strings.Repeat("=", filled) + strings.Repeat(" ", width-filled) + "]"
}
