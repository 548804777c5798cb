package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/kongrag/internal/domain/prompt"
	"github.com/kailas-cloud/kongrag/internal/tool"
)

func newToolsCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect and call the agent tools",
	}

	registry := func() *tool.Registry { return tool.Default(c.cfg.Tools.USDCNYRate) }

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List tool names and descriptions",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				fmt.Fprintln(cmd.OutOrStdout(), registry().Describe())
				return nil
			},
		},
		&cobra.Command{
			Use:   "schema",
			Short: "Print the chat-completion function definitions as JSON",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(registry().Definitions())
			},
		},
		&cobra.Command{
			Use:   "call <name> <args>",
			Short: "Call a tool with JSON or raw text arguments",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				out, err := registry().Call(cmd.Context(), args[0], strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), out)
				return nil
			},
		},
		&cobra.Command{
			Use:   "prompt <input>",
			Short: "Render the ReAct prompt for an external agent loop",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				r := registry()
				messages, err := prompt.ReAct.Format(map[string]string{
					prompt.VarTools:      r.Describe(),
					prompt.VarToolNames:  strings.Join(r.Names(), ", "),
					prompt.VarInput:      strings.Join(args, " "),
					prompt.VarScratchpad: "",
				})
				if err != nil {
					return err
				}
				for _, m := range messages {
					fmt.Fprintf(cmd.OutOrStdout(), "[%s]\n%s\n", m.Role, m.Content)
				}
				return nil
			},
		},
	)
	return cmd
}
