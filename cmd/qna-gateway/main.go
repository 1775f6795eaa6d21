package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/upb/qna-gateway/app"
	"github.com/upb/qna-gateway/config"
	"github.com/upb/qna-gateway/internal/observability"
	"github.com/upb/qna-gateway/routes"
	"github.com/upb/qna-gateway/services"
	"github.com/upb/qna-gateway/services/qna"
)

// Exit codes for the ask command
const (
	exitFailure      = 1
	exitNoCandidates = 2
	exitExhausted    = 3
)

type cliError struct {
	code int
	err  error
}

func (e cliError) Error() string { return e.err.Error() }

func (e cliError) Unwrap() error { return e.err }

func main() {
	root := newRootCommand()
	if err := root.Execute(); err != nil {
		var ce cliError
		if errors.As(err, &ce) {
			fmt.Fprintln(os.Stderr, ce.err)
			os.Exit(ce.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitFailure)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "qna-gateway",
		Short:         "Question answering gateway with provider failover",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCommand())
	root.AddCommand(newAskCommand())
	root.AddCommand(newProvidersCommand())
	return root
}

// initLogger builds the process logger from the loaded configuration
func initLogger(cfg *config.Config) (*zap.Logger, error) {
	return observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat)
}

// bootstrap loads configuration and wires dependencies for any subcommand
func bootstrap(ctx context.Context) (*app.Dependencies, error) {
	cfg, err := config.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := initLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	deps, err := app.NewDependencies(ctx, cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return deps, nil
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func serve(ctx context.Context) error {
	deps, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	cfg := deps.Config
	logger := deps.Logger

	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           routes.SetupRoutes(deps),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.Server.ReadTimeout,
		WriteTimeout:      cfg.Server.WriteTimeout,
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("qna-gateway listening",
			zap.String("addr", srv.Addr),
			zap.String("environment", cfg.Environment))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	var runErr error
	select {
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown failed", zap.Error(err))
	}
	if err := deps.Close(shutdownCtx); err != nil {
		logger.Error("dependency shutdown failed", zap.Error(err))
	}

	return runErr
}

func newAskCommand() *cobra.Command {
	var system, provider string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Answer one question and print the text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = deps.Close(closeCtx)
			}()

			req := qna.NewQuestion(system, strings.Join(args, " "))
			req.Provider = provider

			resp, err := deps.QnA.Ask(cmd.Context(), req)
			if err != nil {
				return askError(err)
			}
			return printAnswer(cmd.OutOrStdout(), resp, asJSON)
		},
	}

	cmd.Flags().StringVar(&system, "system", "", "system instruction sent with the question")
	cmd.Flags().StringVar(&provider, "provider", "", "route to this provider only (groq or gemini)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full response as JSON")
	return cmd
}

func askError(err error) error {
	switch {
	case services.IsUnavailableError(err):
		return cliError{code: exitNoCandidates, err: err}
	case services.IsExternalError(err):
		details := services.GetErrorDetails(err)
		return cliError{code: exitExhausted, err: fmt.Errorf("%w (last provider %v, %v)", err, details["last_provider"], details["last_kind"])}
	default:
		return cliError{code: exitFailure, err: err}
	}
}

func printAnswer(w io.Writer, resp *qna.AskResponse, asJSON bool) error {
	if !asJSON {
		_, err := fmt.Fprintln(w, resp.Text)
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(resp)
}

func newProvidersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "providers",
		Short: "Print the resolved provider order and provider state",
		RunE: func(cmd *cobra.Command, _ []string) error {
			deps, err := bootstrap(cmd.Context())
			if err != nil {
				return err
			}
			defer func() {
				closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = deps.Close(closeCtx)
			}()

			status := deps.Router.Status(cmd.Context())
			out := cmd.OutOrStdout()

			order := make([]string, len(status.Order))
			for i, id := range status.Order {
				order[i] = id.String()
			}
			fmt.Fprintf(out, "order: %s\n", strings.Join(order, ","))
			if status.Forced != "" {
				fmt.Fprintf(out, "forced: %s (strict=%t)\n", status.Forced, status.Strict)
			}
			for _, p := range status.Providers {
				state := "ready"
				switch {
				case p.Disabled:
					state = "disabled"
				case !p.HasCredential:
					state = "no-credential"
				case p.CooldownUntil != nil:
					state = "cooling until " + p.CooldownUntil.Format(time.RFC3339)
				}
				fmt.Fprintf(out, "%-8s %-24s %s\n", p.ID, p.Model, state)
			}
			return nil
		},
	}
}
