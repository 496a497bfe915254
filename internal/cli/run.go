package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"ai-interview-capture-service/internal/app"
	apihttp "ai-interview-capture-service/internal/http"
	"ai-interview-capture-service/internal/observability"
	"ai-interview-capture-service/internal/service/interview"
)

func NewRunCmd(deps *Dependencies) *cobra.Command {
	var token string
	var exitOnEnd bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the interview behind an interview link token",
		Long:  "Validates the token, serves the control surface on HTTP_ADDR and drives the interview until it completes or the process is interrupted (Ctrl+C). An interrupted interview uploads nothing and can be resumed with the same token.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				return errors.New("--token is required")
			}
			if err := deps.Config.Validate(); err != nil {
				return err
			}
			return run(cmd.Context(), deps, token, exitOnEnd)
		},
	}

	cmd.Flags().StringVarP(&token, "token", "t", "", "Interview link token")
	cmd.Flags().BoolVar(&exitOnEnd, "exit", false, "Exit once the interview completes or fails")

	return cmd
}

func run(parent context.Context, deps *Dependencies, token string, exitOnEnd bool) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.New(ctx, deps.Config, token)
	if err != nil {
		return fmt.Errorf("initializing app: %w", err)
	}
	defer application.Shutdown()

	var metricsServer *observability.Server
	if addr := deps.Config.Service.MetricsAddr; addr != "" {
		metricsServer = observability.NewServer(addr, nil, application.Ready)
		metricsServer.Start()
	}

	hub := apihttp.NewHub()
	go hub.Run(ctx)

	server := &http.Server{
		Addr:              deps.Config.Service.HTTPAddr,
		Handler:           apihttp.NewRouter(application, hub),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", server.Addr).Msg("Control surface listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("starting interview: %w", err)
	}

	ended := make(chan interview.Snapshot, 1)
	if exitOnEnd {
		go func() {
			s, err := application.Interview.Await(ctx, func(s interview.Snapshot) bool { return s.State.IsTerminal() })
			if err == nil {
				ended <- s
			}
		}()
	}

	var result error
	select {
	case <-ctx.Done():
		log.Info().Msg("Interrupted, stopping interview")
	case err := <-serveErr:
		result = fmt.Errorf("control surface: %w", err)
	case s := <-ended:
		if s.State == interview.StateError {
			result = fmt.Errorf("interview failed: %s", s.Message())
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Control surface shutdown failed")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Warn().Err(err).Msg("Metrics server shutdown failed")
		}
	}
	return result
}
