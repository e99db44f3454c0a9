package commands

import (
	"github.com/spf13/cobra"
	"go.trai.ch/reuse/internal/app"
)

func (c *CLI) newKeysCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys <unit>",
		Short: "Show the cache keys of a unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			explain, _ := cmd.Flags().GetBool("explain")
			return c.app.Keys(cmd.Context(), args[0], app.KeysOptions{Explain: explain})
		},
	}
	cmd.Flags().BoolP("explain", "e", false, "Print the material the rule key is computed from")
	return cmd
}

func (c *CLI) newManifestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "manifest <unit>",
		Short: "Show the manifest entries recorded for a unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.app.Manifest(cmd.Context(), args[0])
		},
	}
}
