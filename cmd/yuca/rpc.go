package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yuca-profiler/yuca/internal/client"
	"github.com/yuca-profiler/yuca/internal/domain"
	"github.com/yuca-profiler/yuca/internal/storage/dump"
)

const defaultAddr = "localhost:8980"

func newRPCCmds() []*cobra.Command {
	start := &cobra.Command{
		Use:   "start <pid>",
		Short: "Start monitoring a process (negative pid monitors the system)",
		Example: `  yuca start 4242 --period 10
  yuca start -- -1`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePID(args[0])
			if err != nil {
				return err
			}

			req := domain.StartRequest{ProcessID: pid}
			if cmd.Flags().Changed("period") {
				period, _ := cmd.Flags().GetInt("period")
				req.PeriodMillis = &period
			}

			resp, err := rpcClient(cmd).Start(cmd.Context(), req)
			if err != nil {
				return err
			}
			return printJSON(cmd, resp)
		},
	}
	start.Flags().Int("period", 0, "Sampling period in milliseconds, 0 for end-to-end")

	stop := &cobra.Command{
		Use:   "stop <pid>",
		Short: "Stop monitoring a process and store its report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePID(args[0])
			if err != nil {
				return err
			}

			raw, _ := cmd.Flags().GetStringToString("tag")
			resp, err := rpcClient(cmd).Stop(cmd.Context(), domain.StopRequest{ProcessID: pid, Tags: raw})
			if err != nil {
				return err
			}
			return printJSON(cmd, resp)
		},
	}
	stop.Flags().StringToString("tag", nil, "Report tags, key=value")

	read := &cobra.Command{
		Use:   "read [pid]",
		Short: "Print the stored report of a process, or of a dump file with --file",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signals, _ := cmd.Flags().GetStringSlice("signals")

			if file, _ := cmd.Flags().GetString("file"); file != "" {
				report, err := dump.ReadFile(file)
				if err != nil {
					return err
				}
				return printJSON(cmd, report.Filter(signals))
			}

			if len(args) == 0 {
				return fmt.Errorf("a pid or --file is required")
			}
			pid, err := parsePID(args[0])
			if err != nil {
				return err
			}

			resp, err := rpcClient(cmd).Read(cmd.Context(), domain.ReadRequest{ProcessID: pid, Signals: signals})
			if err != nil {
				return err
			}
			return printJSON(cmd, resp.Report)
		},
	}
	read.Flags().String("file", "", "Read a dump file instead of the service")
	read.Flags().StringSlice("signals", nil, "Component types and signal units to keep")

	dumpCmd := &cobra.Command{
		Use:   "dump <pid>",
		Short: "Write the stored report of a process to a file on the service host",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pid, err := parsePID(args[0])
			if err != nil {
				return err
			}

			signals, _ := cmd.Flags().GetStringSlice("signals")
			output, _ := cmd.Flags().GetString("output")
			resp, err := rpcClient(cmd).Dump(cmd.Context(), domain.DumpRequest{ProcessID: pid, Signals: signals, OutputPath: output})
			if err != nil {
				return err
			}
			return printJSON(cmd, resp)
		},
	}
	dumpCmd.Flags().StringSlice("signals", nil, "Component types and signal units to keep")
	dumpCmd.Flags().StringP("output", "o", "", "Output file or directory")

	purge := &cobra.Command{
		Use:   "purge",
		Short: "Stop every monitor and drop every stored report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return rpcClient(cmd).Purge(cmd.Context())
		},
	}

	cmds := []*cobra.Command{start, stop, read, dumpCmd, purge}
	for _, c := range cmds {
		c.Flags().String("addr", defaultAddr, "Address of the yuca service")
		c.Flags().String("token", "", "Bearer token (see yuca token)")
	}
	return cmds
}

func rpcClient(cmd *cobra.Command) *client.Client {
	addr, _ := cmd.Flags().GetString("addr")
	token, _ := cmd.Flags().GetString("token")
	return client.New(addr, client.WithToken(token))
}

func parsePID(raw string) (int64, error) {
	pid, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid pid %q: %w", raw, err)
	}
	return pid, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
