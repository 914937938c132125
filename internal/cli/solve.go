package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"snapsolve/internal/capture"
	"snapsolve/internal/config"
	"snapsolve/internal/dispatch"
	"snapsolve/internal/llm"
	"snapsolve/internal/pipeline"
	"snapsolve/internal/types"
)

type solveOptions struct {
	debugFiles []string
	language   string
	timeout    time.Duration
	asJSON     bool
}

func newSolveCmd(g *globalFlags) *cobra.Command {
	o := &solveOptions{}
	cmd := &cobra.Command{
		Use:   "solve <screenshot>...",
		Short: "Extract, solve and optionally debug from image files",
		Long: `solve runs the pipeline once: the given screenshots are used to extract the
problem, a solution is generated, and each --debug screenshot triggers one
debug round against the latest solution.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSolve(cmd, g, o, args)
		},
	}
	cmd.Flags().StringSliceVar(&o.debugFiles, "debug", nil, "screenshots for debug rounds, one round each")
	cmd.Flags().StringVar(&o.language, "language", "", "solution language (default SOLUTION_LANGUAGE or python)")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 0, "per-call provider timeout (default PROVIDER_TIMEOUT)")
	cmd.Flags().BoolVar(&o.asJSON, "json", false, "print the artifacts as JSON")
	return cmd
}

// solveOutput is what --json prints.
type solveOutput struct {
	SessionID string                  `json:"session_id"`
	Provider  string                  `json:"provider"`
	Problem   *types.ProblemStatement `json:"problem"`
	Solution  *types.Solution         `json:"solution"`
	Debug     []types.DebugResult     `json:"debug,omitempty"`
}

func runSolve(cmd *cobra.Command, g *globalFlags, o *solveOptions, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	src, err := g.source()
	if err != nil {
		return err
	}
	cfg, err := config.Load(src)
	if err != nil {
		return err
	}
	if o.timeout > 0 {
		cfg.Pipeline.ProviderTimeout = o.timeout
	}
	logger := g.logger(cmd.ErrOrStderr())
	reg, err := llm.DefaultRegistry(logger)
	if err != nil {
		return err
	}

	broker := dispatch.NewBroker()
	defer broker.Close()
	results := broker.Subscribe(ctx)
	orch, err := pipeline.New(pipeline.Options{
		Registry: reg,
		Config:   src,
		Results:  broker,
		Timeout:  cfg.Pipeline.ProviderTimeout,
		Language: cfg.Pipeline.Language,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer orch.Close()

	snap, err := orch.NewSession(ctx)
	if err != nil {
		return describeErr(err)
	}
	out := solveOutput{SessionID: snap.ID, Provider: snap.Provider}

	for _, path := range args {
		if err := addFile(ctx, orch, snap.ID, path); err != nil {
			return err
		}
	}

	if _, err := orch.Extract(ctx, snap.ID); err != nil {
		return describeErr(err)
	}
	res, err := awaitStage(ctx, results, types.TransitionExtract)
	if err != nil {
		return err
	}
	out.Problem = res.Artifact.Problem

	if _, err := orch.Solve(ctx, snap.ID, o.language); err != nil {
		return describeErr(err)
	}
	if res, err = awaitStage(ctx, results, types.TransitionSolve); err != nil {
		return err
	}
	out.Solution = res.Artifact.Solution

	for _, path := range o.debugFiles {
		if err := addFile(ctx, orch, snap.ID, path); err != nil {
			return err
		}
		if _, err := orch.Debug(ctx, snap.ID); err != nil {
			return describeErr(err)
		}
		if res, err = awaitStage(ctx, results, types.TransitionDebug); err != nil {
			return err
		}
		out.Debug = append(out.Debug, *res.Artifact.Debug)
	}

	w := cmd.OutOrStdout()
	if o.asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	printText(w, out)
	return nil
}

func addFile(ctx context.Context, orch *pipeline.Orchestrator, sessionID, path string) error {
	img, err := capture.ReadFile(path)
	if err != nil {
		return err
	}
	if _, err := orch.AddScreenshot(ctx, sessionID, img); err != nil {
		return describeErr(err)
	}
	return nil
}

// awaitStage waits for the result of stage and turns a failure into an error.
func awaitStage(ctx context.Context, results <-chan dispatch.Result, stage types.Transition) (dispatch.Result, error) {
	for {
		select {
		case <-ctx.Done():
			return dispatch.Result{}, ctx.Err()
		case res, ok := <-results:
			if !ok {
				return dispatch.Result{}, fmt.Errorf("%s: result stream closed", stage)
			}
			if res.Stage != stage {
				continue
			}
			if res.Type == dispatch.StageFailed {
				return res, stageErr(stage, *res.Error)
			}
			return res, nil
		}
	}
}

func describeErr(err error) error {
	se := pipeline.Describe(err)
	if se.Hint != "" {
		return fmt.Errorf("%w (%s)", err, se.Hint)
	}
	return err
}

func stageErr(stage types.Transition, se dispatch.StageError) error {
	if se.Hint != "" {
		return fmt.Errorf("%s failed: %w (%s)", stage, se, se.Hint)
	}
	return fmt.Errorf("%s failed: %w", stage, se)
}

func printText(w io.Writer, out solveOutput) {
	rule := strings.Repeat("-", 60)
	fmt.Fprintf(w, "# %s\n\n%s\n", out.Problem.Title, out.Problem.Description)
	if c := out.Problem.Constraints; c != nil {
		if c.InputFormat != "" {
			fmt.Fprintf(w, "\nInput: %s\n", c.InputFormat)
		}
		if c.OutputFormat != "" {
			fmt.Fprintf(w, "Output: %s\n", c.OutputFormat)
		}
		for _, l := range c.Limits {
			fmt.Fprintf(w, "  - %s\n", l)
		}
	}
	printSolution(w, rule, "Solution", *out.Solution)
	for i, d := range out.Debug {
		printSolution(w, rule, fmt.Sprintf("Debug round %d", i+1), d.Solution)
		if d.Changes != "" {
			fmt.Fprintf(w, "Changes: %s\n", d.Changes)
		}
		for _, issue := range d.Issues {
			fmt.Fprintf(w, "  ! %s\n", issue)
		}
	}
}

func printSolution(w io.Writer, rule, heading string, s types.Solution) {
	fmt.Fprintf(w, "\n%s\n%s (%s)\n%s\n%s\n", rule, heading, s.Language, rule, strings.TrimRight(s.Code, "\n"))
	if s.Explanation != "" {
		fmt.Fprintf(w, "\n%s\n", s.Explanation)
	}
	if s.TimeComplexity != "" || s.SpaceComplexity != "" {
		fmt.Fprintf(w, "Time: %s  Space: %s\n", s.TimeComplexity, s.SpaceComplexity)
	}
}
