package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/yuca-profiler/yuca/internal/config"
	"github.com/yuca-profiler/yuca/internal/logger"
	"github.com/yuca-profiler/yuca/internal/system"
)

func newCooldownCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cooldown",
		Short: "Wait until the cpu package thermal zones settle at a target temperature",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			period, _ := cmd.Flags().GetDuration("period")
			target, _ := cmd.Flags().GetFloat64("temperature")

			thermal, err := system.NewThermalSource(system.DefaultPaths(), logger.New(config.Load()))
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			out := cmd.OutOrStdout()
			elapsed, err := thermal.Cooldown(ctx, system.CooldownOptions{Period: period, Target: target}, func(st system.CooldownStatus) {
				zones := make([]string, 0, len(st.Zones))
				for _, z := range st.Zones {
					zones = append(zones, fmt.Sprintf("%d->%.1f C (%t)", z.Zone, z.Average, z.Met))
				}
				fmt.Fprintf(out, "\rzone status (%d samples): %s", st.Samples, strings.Join(zones, ", "))
			})
			fmt.Fprintln(out)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "cooled down to %.1f C in %s\n", target, elapsed)
			return nil
		},
	}
	cmd.Flags().Duration("period", system.DefaultCooldownPeriod, "Time between thermal readings")
	cmd.Flags().Float64("temperature", system.DefaultCooldownTarget, "Target temperature in celsius")
	return cmd
}
