package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var postCmd = &cobra.Command{
	Use:   "post <block-uid>",
	Short: "Extract the post linked from a block",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.Extractor.ExtractBlock(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "extracted post into %s\n", args[0])
		return nil
	},
}

var threadCmd = &cobra.Command{
	Use:   "thread <block-uid>",
	Short: "Extract the author's thread linked from a block",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := application.Extractor.ExtractThread(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "extracted thread into %s\n", args[0])
		return nil
	},
}

var autoCmd = &cobra.Command{
	Use:   "auto",
	Short: "Extract every block tagged with the auto-extract tag",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		report, err := application.Extractor.ExtractTagged(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, res := range report.Results {
			if res.Err != nil {
				fmt.Fprintf(out, "FAIL %s: %v\n", res.UID, res.Err)
				continue
			}
			fmt.Fprintf(out, "ok   %s\n", res.UID)
		}
		if n := report.Failed(); n > 0 {
			return fmt.Errorf("%d of %d blocks failed", n, len(report.Results))
		}
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow accounts on the firehose and extract their new posts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		watcher, err := application.NewWatcher(cmd.Context())
		if err != nil {
			return err
		}
		if err := watcher.Start(cmd.Context()); err != nil && cmd.Context().Err() == nil {
			return err
		}
		return nil
	},
}
