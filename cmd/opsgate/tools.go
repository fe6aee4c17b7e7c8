package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/flemzord/opsgate/internal/config"
	"github.com/flemzord/opsgate/internal/executor"
)

func execCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec [text]",
		Short: "Decode a call block and dispatch it, printing the result block",
		Long: "Reads agent output containing a @tool block (from the argument or stdin),\n" +
			"dispatches the call, and prints the @result block to stdout.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgPath, err := resolveConfigPath(cmd)
			if err != nil {
				return err
			}
			agentID, _ := cmd.Flags().GetString("agent")

			var text string
			if len(args) == 1 {
				text = args[0]
			} else {
				raw, err := io.ReadAll(os.Stdin)
				if err != nil {
					return fmt.Errorf("reading stdin: %w", err)
				}
				text = string(raw)
			}

			rt, err := buildRuntime(cfgPath)
			if err != nil {
				return err
			}
			defer rt.shutdown(context.Background())

			exec := executor.New(rt.dispatcher, agentID, rt.logger)
			out := exec.Run(cmd.Context(), text)
			if out.Feedback == "" {
				fmt.Fprintln(os.Stderr, "no call block found")
				return nil
			}
			fmt.Println(out.Feedback)
			return nil
		},
	}
	cmd.Flags().String("agent", "", "Agent identity to dispatch as")
	return cmd
}

func operationsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "operations",
		Short: "List the operations an agent may invoke",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, err := resolveConfigPath(cmd)
			if err != nil {
				return err
			}
			agentID, _ := cmd.Flags().GetString("agent")

			rt, err := buildRuntime(cfgPath)
			if err != nil {
				return err
			}
			defer rt.shutdown(context.Background())

			profile := rt.resolver.Resolve(agentID)
			visible := rt.registry.ListFor(profile)
			if len(visible) == 0 {
				fmt.Printf("agent %q may invoke no operations\n", profile.AgentID)
				return nil
			}
			for _, op := range visible {
				d := op.Descriptor()
				var parts []string
				for _, arg := range d.Arguments {
					name := arg.Name
					if !arg.Required {
						name += "?"
					}
					parts = append(parts, name)
				}
				fmt.Printf("%s(%s)\n    %s\n", d.Name, strings.Join(parts, ", "), d.Description)
			}
			return nil
		},
	}
	cmd.Flags().String("agent", "", "Agent identity to resolve permissions for")
	return cmd
}

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check <path>",
		Short: "Validate configuration",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cfg, err := config.Load(args[0])
			if err != nil {
				return err
			}
			if err := config.Validate(cfg); err != nil {
				return err
			}
			agents := config.AgentIDs(cfg)
			fmt.Printf("Configuration OK (%d agents, %d groups)\n", len(agents), len(cfg.Permissions.Groups))
			for _, id := range agents {
				fmt.Printf("  %s: groups %v\n", id, cfg.Permissions.Agents[id].Groups)
			}
			return nil
		},
	})
	return cmd
}

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent audit events from the store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfgPath, err := resolveConfigPath(cmd)
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")

			rt, err := buildRuntime(cfgPath)
			if err != nil {
				return err
			}
			defer rt.shutdown(context.Background())

			if rt.store == nil {
				return fmt.Errorf("no audit store configured (audit.store_path)")
			}
			events, err := rt.store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for _, ev := range events {
				fmt.Printf("%s  %-10s  agent=%s op=%s %s\n",
					ev.Timestamp.Format(time.RFC3339), ev.Type, ev.AgentID, ev.Operation, ev.Detail)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 50, "Maximum number of events to show")
	return cmd
}
