package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "shellcached",
		Short:   "shellcached — offline-first application shell cache daemon",
		Version: version,
	}

	root.AddCommand(
		newServeCmd(),
		newCheckCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
