package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var searchLimit int

func newSearchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "List article titles matching QUERY",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}

			hits, err := a.client.Search(cmd.Context(), strings.Join(args, " "), searchLimit)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, hit := range hits {
				if hit.Snippet == "" {
					fmt.Fprintln(out, hit.Title)
					continue
				}
				fmt.Fprintf(out, "%s\t%s\n", hit.Title, hit.Snippet)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&searchLimit, "limit", 0, "Maximum number of titles (default: config search_limit)")
	return cmd
}
