package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"go-localtube/internal/api"
	"go-localtube/internal/helpers"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <url>",
	Short: "List the stream variants available for a source URL",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sourceURL := args[0]
		if _, err := url.ParseRequestURI(sourceURL); err != nil {
			return fmt.Errorf("invalid input: %q is not a valid URL", sourceURL)
		}

		backend := newBackendClient()
		streams, err := backend.ResolveStreams(context.Background(), sourceURL)
		if err != nil {
			if errors.Is(err, api.ErrNoStreams) {
				fmt.Println("No downloadable streams available for this URL.")
				return nil
			}
			return fmt.Errorf("network/service failure: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "QUALITY\tRESOLUTION\tSIZE")
		for _, s := range streams {
			fmt.Fprintf(w, "%s\t%s\t%s\n", s.QualityLabel, s.Resolution, helpers.BytesToSize(uint64(s.SizeInBytes)))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
