package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "yuca",
		Short: "yuca attributes system energy and carbon emissions to processes",
		Long: `yuca samples cpu jiffies, energy counters, thermal zones and cpu frequency,
attributes the energy of each socket to the tasks of a process by their share of cpu time,
and converts the result into grams of CO2 for a configured locale.`,
		SilenceUsage: true,
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print the yuca version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "yuca %s\n", version)
		},
	}

	root.AddCommand(newServeCmd(), newTokenCmd(), newCooldownCmd(), versionCmd)
	root.AddCommand(newRPCCmds()...)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
