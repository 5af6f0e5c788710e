package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/phyarch/shellcache/manifest"
)

func newCheckCmd() *cobra.Command {
	var manifestPath string

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Validate an asset manifest without serving",
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := manifest.Load(manifestPath)
			if err != nil {
				return err
			}
			set := m.AssetSet()
			fmt.Fprintf(cmd.OutOrStdout(), "manifest ok\n")
			fmt.Fprintf(cmd.OutOrStdout(), "  generation:   %s\n", m.Generation)
			fmt.Fprintf(cmd.OutOrStdout(), "  offline page: %s\n", m.OfflinePage)
			fmt.Fprintf(cmd.OutOrStdout(), "  assets:       %d\n", set.Len())
			for _, p := range set.Paths() {
				fmt.Fprintf(cmd.OutOrStdout(), "    %s\n", p)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "manifest.yaml", "path to the asset manifest")
	return cmd
}
