package cmd

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wirepass/wirepass/internal/poller"
)

var watchCmd = &cobra.Command{
	Use:   "watch [client-id]",
	Short: "Wait for a purchase to be confirmed",
	Long: "Poll the backend until a submitted purchase shows up as a confirmed client.\n" +
		"Without an argument, resume the oldest purchase still pending in the ledger.",
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	e, err := newEnv()
	if err != nil {
		return fmt.Errorf("wirepass watch: %w", err)
	}
	defer e.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	var cache poller.ClientCache
	if w, err := e.wallet(); err == nil {
		if c, err := e.cache(ctx, w); err == nil {
			cache = c
		}
	}

	p := e.poller(cache)
	out := cmd.OutOrStdout()
	p.SetOnChange(func(s poller.State) { printPollState(out, s) })

	if len(args) == 1 {
		attempts := 0
		for _, tx := range e.ledger.Active(ctx) {
			if tx.ID == args[0] {
				attempts = tx.Attempts
			}
		}
		p.Start(ctx, args[0], attempts)
	} else if _, ok := p.Resume(ctx); !ok {
		fmt.Fprintln(out, "no pending purchases")
		return nil
	}

	return waitForConfirmation(ctx, p)
}

func printPollState(out io.Writer, s poller.State) {
	switch s.Phase {
	case poller.PhasePolling:
		fmt.Fprintf(out, "waiting for %s (%d/%d checks)\n", s.ClientID, s.Attempts, s.MaxAttempts)
	case poller.PhaseResolved:
		fmt.Fprintf(out, "%s confirmed\n", s.ClientID)
	case poller.PhaseExhausted:
		fmt.Fprintf(out, "%s not confirmed after %d checks; still pending\n", s.ClientID, s.MaxAttempts)
	}
}

func watchResult(s poller.State) error {
	if s.Last == nil {
		return nil
	}
	if s.Last.Phase == poller.PhaseExhausted {
		return fmt.Errorf("wirepass watch: %s still pending after %d checks", s.Last.ClientID, s.Last.Attempts)
	}
	return nil
}

// waitForConfirmation blocks until p's session ends or ctx is cancelled.
func waitForConfirmation(ctx context.Context, p *poller.Poller) error {
	err := p.Wait(ctx)
	p.Stop()
	if err != nil {
		return nil
	}
	return watchResult(p.State())
}
