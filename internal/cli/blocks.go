package cli

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/blackmichael/bluesky-extract/internal/domain"
)

var flagParent string

var addCmd = &cobra.Command{
	Use:   "add <text>",
	Short: "Create a block (a page when --parent is empty)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireStore(); err != nil {
			return err
		}
		uid, err := application.Store.CreateBlock(cmd.Context(), flagParent, domain.OrderLast, args[0], "")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), uid)
		return nil
	},
}

var showCmd = &cobra.Command{
	Use:   "show <block-uid>",
	Short: "Print a block and its children",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireStore(); err != nil {
			return err
		}
		block, err := application.Store.Block(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printBlock(cmd.OutOrStdout(), block, 0)
		return nil
	},
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read or change plugin settings",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print one or all settings",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		settings, err := application.Host.Settings(cmd.Context())
		if err != nil {
			return err
		}
		values := settings.Map()
		out := cmd.OutOrStdout()

		if len(args) == 1 {
			v, ok := values[args[0]]
			if !ok {
				return fmt.Errorf("unknown setting %q", args[0])
			}
			fmt.Fprintln(out, v)
			return nil
		}

		keys := make([]string, 0, len(values))
		for k := range values {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(out, "%s = %s\n", k, values[k])
		}
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <key> [value]",
	Short: "Store a setting; omit the value to restore the default",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireStore(); err != nil {
			return err
		}
		value := ""
		if len(args) == 2 {
			value = args[1]
		}
		return application.Store.SetSetting(cmd.Context(), args[0], value)
	},
}

func init() {
	addCmd.Flags().StringVarP(&flagParent, "parent", "p", "", "Parent block UID")
	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
}

func printBlock(w io.Writer, b *domain.Block, depth int) {
	indent := strings.Repeat("  ", depth)
	lines := strings.Split(b.String, "\n")
	fmt.Fprintf(w, "%s- %s  (%s)\n", indent, lines[0], b.UID)
	for _, line := range lines[1:] {
		fmt.Fprintf(w, "%s  %s\n", indent, line)
	}
	for _, child := range b.Children {
		printBlock(w, child, depth+1)
	}
}
