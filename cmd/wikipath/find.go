package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/alvmarrod/wikipath/internal/pathfinder"
	"github.com/spf13/cobra"
)

var jsonOutput bool

func newFindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find START END",
		Short: "Search for a path of links from START to END",
		Args:  cobra.ExactArgs(2),
		RunE:  runFind,
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the result as JSON")
	return cmd
}

func runFind(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a.logger.Infof("Searching path: %q -> %q", args[0], args[1])

	// Latest snapshot, logged periodically
	var (
		mu   sync.Mutex
		last pathfinder.Progress
	)
	onProgress := func(p pathfinder.Progress) {
		mu.Lock()
		last = p
		mu.Unlock()
	}

	progressCtx, stopProgress := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				mu.Lock()
				p := last
				mu.Unlock()
				a.logger.Infof("Progress: page=%q, searched=%d, queue=%d, depth=%d",
					p.CurrentPage, p.SearchedPages, p.QueueSize, p.Depth)
			case <-progressCtx.Done():
				return
			}
		}
	}()

	a.tracker.IncrementSearchesStarted()
	res, err := a.finder.FindPath(ctx, args[0], args[1], onProgress)
	a.tracker.RecordSearch(res, err)

	stopProgress()
	wg.Wait()

	a.logger.Info("Final stats: " + a.tracker.LogProgress())
	a.writeMetrics(string(res.Reason))

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	if err != nil {
		a.logger.Warnf("Search interrupted after %d pages", res.SearchedPages)
	}
	return printResult(cmd, res)
}

func printResult(cmd *cobra.Command, res pathfinder.Result) error {
	out := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	if res.Found {
		fmt.Fprintf(out, "%s\n", strings.Join(res.Path, " -> "))
		fmt.Fprintf(out, "%d hops, %d pages searched in %dms\n",
			len(res.Path)-1, res.SearchedPages, res.TimeElapsedMs)
		return nil
	}
	fmt.Fprintf(out, "No path found (%s): %d pages searched in %dms\n",
		res.Reason, res.SearchedPages, res.TimeElapsedMs)
	return nil
}
