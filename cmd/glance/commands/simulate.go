package commands

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/spherical/glance/cmd/glance/ui"
	"github.com/spherical/glance/internal/domain"
	"github.com/spherical/glance/internal/input"
	"github.com/spherical/glance/internal/transport"
	"github.com/spherical/glance/pkg/reader"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Drive a reader session from the terminal",
	Long: `Simulate the accessory in the terminal. Type 1, 2 or 3 (or n, p, r) and press
Enter to send taps; s shows the page position, x cancels and blanks the screen, q quits.`,
	RunE: runSimulate,
}

var (
	simulateOffline bool
	simulateSource  string
)

func init() {
	simulateCmd.Flags().BoolVar(&simulateOffline, "offline", false, "use stub recognition and translation")
	simulateCmd.Flags().StringVar(&simulateSource, "source", "", "image file or directory to capture from")
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if simulateSource != "" {
		cfg.Capture.Source = simulateSource
	}

	screen := ui.NewScreen(os.Stdout, cfg.Display.WidthChars, cfg.Display.MaxLines)
	tr := transport.NewMemory(16, screen.Render)

	deps, res, err := buildDeps(ctx, cfg, tr, simulateOffline, logger)
	defer res.Close(logger)
	if err != nil {
		return err
	}

	r, err := reader.New(cfg, deps)
	if err != nil {
		return err
	}

	go watchEvents(ctx, r.Events())

	runErr := make(chan error, 1)
	go func() { runErr <- r.Run(ctx) }()

	ui.Step("type 1/n next, 2/p previous, 3/r read, s status, x cancel, q quit")
	readTaps(ctx, os.Stdin, tr, r)

	_ = tr.Close()
	return <-runErr
}

// readTaps forwards console commands as taps until q, EOF or ctx ends.
func readTaps(ctx context.Context, in io.Reader, tr *transport.Memory, r *reader.Reader) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			cmd := strings.ToLower(strings.TrimSpace(line))
			if cmd == "q" {
				return
			}
			if cmd == "s" {
				snap := r.Snapshot()
				status := "no text"
				if snap.PageCount > 0 {
					status = fmt.Sprintf("page %d of %d", snap.PageIndex+1, snap.PageCount)
				}
				if err := r.ShowStatus(ctx, status); err != nil {
					ui.Error("status: %v", err)
				}
				continue
			}
			if cmd == "x" {
				if err := r.Cancel(ctx); err != nil {
					ui.Error("cancel: %v", err)
				}
				continue
			}
			tap, ok := parseCommand(cmd)
			if !ok {
				ui.Warning("unknown command %q", cmd)
				continue
			}
			if err := tr.Tap(ctx, tap); err != nil {
				return
			}
		}
	}
}

func parseCommand(cmd string) (int, bool) {
	switch cmd {
	case "1", "n":
		return input.TapNext, true
	case "2", "p":
		return input.TapPrevious, true
	case "3", "r":
		return input.TapCapture, true
	}
	return 0, false
}

// watchEvents shows a spinner while a cycle runs and reports its outcome.
func watchEvents(ctx context.Context, events <-chan domain.StreamEvent) {
	spin := ui.NewSpinner(os.Stderr, "capturing")
	running := false
	stopSpinner := func() {
		if running {
			spin.Stop()
			running = false
		}
	}
	defer stopSpinner()

	for {
		select {
		case <-ctx.Done():
			return
		case e := <-events:
			switch e.Type {
			case domain.EventCycleStart:
				spin.UpdateMessage("capturing")
				spin.Start()
				running = true
			case domain.EventStateChange:
				spin.UpdateMessage(e.State.String())
			case domain.EventPageShown:
				stopSpinner()
			case domain.EventTranslationFailed:
				ui.Warning("translation failed for %v", e.Payload)
			case domain.EventError:
				stopSpinner()
				ui.Error("%v", e.Payload)
			case domain.EventCancelled:
				stopSpinner()
				ui.Info("cancelled")
			case domain.EventComplete:
				stopSpinner()
				ui.Success("%s", fmt.Sprintf("read %v blocks", e.Payload))
			}
		}
	}
}
