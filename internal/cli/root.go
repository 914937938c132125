// Package cli defines the snapsolve commands.
package cli

import (
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/cobra"

	"snapsolve/internal/config"
)

var version = "dev" // set via ldflags at build time

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configFile string
	envFiles   []string
	provider   string
	model      string
	verbose    bool
}

// NewRootCmd builds the command tree. Tests build a fresh tree per run.
func NewRootCmd() *cobra.Command {
	g := &globalFlags{}
	root := &cobra.Command{
		Use:   "snapsolve",
		Short: "Turn screenshots of a coding problem into a solution",
		Long: `snapsolve extracts a problem statement from screenshots with a vision model,
generates a solution and revises it against further screenshots.

Provider selection comes from LLM_PROVIDER, <PROVIDER>_MODEL and the
provider's API key, read from the environment, .env and an optional YAML file.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	root.PersistentFlags().StringVar(&g.configFile, "config", "", "YAML config file (flat or nested keys)")
	root.PersistentFlags().StringSliceVar(&g.envFiles, "env-file", nil, ".env files to load (default: ./.env)")
	root.PersistentFlags().StringVar(&g.provider, "provider", "", "override LLM_PROVIDER")
	root.PersistentFlags().StringVar(&g.model, "model", "", "override <PROVIDER>_MODEL")
	root.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "log provider calls to stderr")

	root.AddCommand(newServeCmd(g))
	root.AddCommand(newSolveCmd(g))
	root.AddCommand(newProvidersCmd(g))
	return root
}

// Execute runs the root command. Called from main.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// source layers flag overrides over the environment over the YAML file.
func (g *globalFlags) source() (config.Source, error) {
	config.LoadDotenv(g.envFiles...)
	overrides := config.Map{}
	if g.provider != "" {
		overrides["LLM_PROVIDER"] = g.provider
	}
	chain := config.Chain{overrides, config.Env{}}
	if g.configFile != "" {
		file, err := config.YAMLFile(g.configFile)
		if err != nil {
			return nil, err
		}
		chain = append(chain, file)
	}
	if g.model != "" {
		// The model key depends on the provider, which may itself come from any layer.
		if name := config.Get(chain, "LLM_PROVIDER"); name != "" {
			overrides[providerModelKey(name)] = g.model
		} else {
			overrides[providerModelKey("openai")] = g.model
		}
	}
	return chain, nil
}

func (g *globalFlags) logger(w io.Writer) *log.Logger {
	if !g.verbose {
		return log.New(io.Discard, "", 0)
	}
	return log.New(w, "snapsolve ", log.LstdFlags)
}
