package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"snapsolve/internal/llm"
	llmclient "snapsolve/internal/llm/client"
)

func newProvidersCmd(g *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "List registered providers and the current selection",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := llm.DefaultRegistry(g.logger(cmd.ErrOrStderr()))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, name := range reg.Names() {
				fmt.Fprintln(out, name)
			}
			src, err := g.source()
			if err != nil {
				return err
			}
			cfg, err := reg.Select(src)
			if err != nil {
				fmt.Fprintf(out, "\nselected: none (%v)\n", err)
				return nil
			}
			fmt.Fprintf(out, "\nselected: %s\n", cfg.ID())
			return nil
		},
	}
}

func providerModelKey(provider string) string {
	return llmclient.EnvPrefix(llmclient.NormalizeName(provider)) + "_MODEL"
}
