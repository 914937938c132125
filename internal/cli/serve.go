package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"snapsolve/internal/artifact"
	"snapsolve/internal/capture"
	"snapsolve/internal/config"
	"snapsolve/internal/dispatch"
	"snapsolve/internal/gateway"
	"snapsolve/internal/llm"
	"snapsolve/internal/pipeline"
)

func newServeCmd(g *globalFlags) *cobra.Command {
	var addr, screenshots string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the gateway the UI connects to",
		Long: `serve starts the HTTP gateway. The UI sends commands over /ws and receives
one stage_succeeded or stage_failed message per transition.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, g, addr, screenshots)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default LISTEN_ADDR, PORT or :8081)")
	cmd.Flags().StringVar(&screenshots, "screenshots", "", "glob of screenshot files for server-side capture (default SCREENSHOT_GLOB)")
	return cmd
}

func runServe(cmd *cobra.Command, g *globalFlags, addr, screenshots string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.New(cmd.ErrOrStderr(), "snapsolve ", log.LstdFlags)
	src, err := g.source()
	if err != nil {
		return err
	}
	cfg, err := config.Load(src)
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if screenshots == "" {
		screenshots = config.Get(src, "SCREENSHOT_GLOB")
	}

	store, err := artifact.Open(ctx, cfg.Artifact)
	if err != nil {
		return fmt.Errorf("open artifact store: %w", err)
	}
	if c, ok := store.(interface{ Close() error }); ok {
		defer c.Close()
	}

	reg, err := llm.DefaultRegistry(logger)
	if err != nil {
		return err
	}
	// Report a bad selection at startup instead of on the first new_session.
	if sel, err := reg.Select(src); err != nil {
		logger.Printf("provider not ready: %v", describeErr(err))
	} else {
		logger.Printf("provider %s selected", sel.ID())
	}

	var shots capture.Source
	if screenshots != "" {
		shots = capture.NewFiles(screenshots)
	}
	broker := dispatch.NewBroker()
	defer broker.Close()
	orch, err := pipeline.New(pipeline.Options{
		Registry: reg,
		Config:   src,
		Results:  broker,
		Capture:  shots,
		Audit:    store,
		Timeout:  cfg.Pipeline.ProviderTimeout,
		Language: cfg.Pipeline.Language,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer orch.Close()

	router := gateway.NewRouter(gateway.NewBridge(orch, broker, logger), orch, store, logger)
	srv := gateway.NewServer(cfg.Server.Addr, router, logger)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
