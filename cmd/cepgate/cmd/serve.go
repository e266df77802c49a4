package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"github.com/solatis/cepgate/internal/core/action"
	"github.com/solatis/cepgate/internal/core/api"
	"github.com/solatis/cepgate/internal/core/config"
	"github.com/solatis/cepgate/internal/core/db"
	"github.com/solatis/cepgate/internal/core/metrics"
	"github.com/solatis/cepgate/internal/core/server"
	"github.com/solatis/cepgate/internal/engine"
	"github.com/solatis/cepgate/internal/engine/memory"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP event gateway and gRPC health service",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("host", "", "HTTP and gRPC bind host (overrides config)")
	serveCmd.Flags().Int("port", 0, "HTTP port (overrides config)")
	serveCmd.Flags().String("action-url", "", "action endpoint for engine results (overrides config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(cmd)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("host") {
		cfg.HTTPHost, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.HTTPPort, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("action-url") {
		cfg.ActionURL, _ = cmd.Flags().GetString("action-url")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	database, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	if err := requireMigrated(cmd.Context(), database); err != nil {
		return err
	}

	queries, err := db.LoadQueries(database)
	if err != nil {
		return fmt.Errorf("failed to load queries: %w", err)
	}
	journal := db.NewJournal(queries)

	dispatcher := action.NewDispatcher(
		action.WithLogger(logger),
		action.WithHeader(cfg.CorrelatorHeader),
		action.WithRecorder(journal),
	)
	results := api.NewResultHandler(dispatcher, cfg.ActionURL, logger)

	grpcServer, err := server.NewGRPCServer(cfg.GRPCAddr())
	if err != nil {
		return fmt.Errorf("failed to create gRPC server: %w", err)
	}

	scope := engine.NewScope(memory.Factory(loadStatements(cfg)),
		engine.WithLogger(logger),
		engine.WithOnProvisioned(results.Attach),
		engine.WithOnProvisioned(func(engine.Provider) {
			metrics.EngineProvisioned.Set(1)
			grpcServer.EngineProvisioned()
		}),
		engine.WithOnReleased(func() {
			metrics.EngineProvisioned.Set(0)
			grpcServer.EngineReleased()
		}),
	)

	service, err := api.NewService(scope, journal, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	httpServer, err := server.NewHTTPServer(cfg.HTTPAddr(), service.Router(), cfg.ReadTimeout)
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	// Bind both listeners up front so a busy port fails before provisioning.
	if err := httpServer.Listen(); err != nil {
		return err
	}
	if err := grpcServer.Listen(); err != nil {
		return err
	}

	// Scope start: the engine is provisioned before traffic is accepted.
	if _, err := scope.Acquire(); err != nil {
		return fmt.Errorf("failed to provision engine: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting cepgate",
		"version", Version,
		"http_addr", cfg.HTTPAddr(),
		"grpc_addr", cfg.GRPCAddr(),
		"action_url", cfg.ActionURL,
		"statements", len(cfg.Statements),
	)

	errChan := make(chan error, 2)
	go func() { errChan <- httpServer.Start(ctx) }()
	go func() { errChan <- grpcServer.Start(ctx) }()

	var serveErr error
	select {
	case serveErr = <-errChan:
		logger.Error("server stopped unexpectedly", "error", serveErr)
	case <-ctx.Done():
		logger.Info("shutting down gracefully")
	}

	return shutdown(logger, cfg, httpServer, grpcServer, scope, results, serveErr)
}

// shutdown stops intake first, then releases the engine so in-flight
// deliveries finish before the journal database closes. Deliveries still
// running when cfg.ShutdownTimeout expires are cancelled.
func shutdown(logger *slog.Logger, cfg *config.ServiceConfig, httpServer *server.HTTPServer, grpcServer *server.GRPCServer, scope *engine.Scope, results *api.ResultHandler, serveErr error) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	errs := []error{serveErr}
	if err := httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("http: %w", err))
	}
	// Scope end
	stopCancel := context.AfterFunc(ctx, results.Cancel)
	if err := scope.Release(); err != nil {
		errs = append(errs, err)
	}
	stopCancel()
	if err := grpcServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("grpc: %w", err))
	}

	err := errors.Join(errs...)
	if err == nil {
		logger.Info("cepgate stopped")
	}
	return err
}

// loadStatements returns a memory provider setup adding the configured statements.
func loadStatements(cfg *config.ServiceConfig) func(*memory.Provider) error {
	return func(p *memory.Provider) error {
		for _, st := range cfg.Statements {
			if err := p.AddStatement(memory.Statement{
				Name:      st.Name,
				EventType: st.EventType,
				Filter:    st.Filter,
				Select:    st.Select,
			}); err != nil {
				return fmt.Errorf("statement %s: %w", st.Name, err)
			}
		}
		return nil
	}
}

// requireMigrated fails when the journal schema has pending migrations.
func requireMigrated(ctx context.Context, database *sqlx.DB) error {
	statuses, err := db.MigrateStatus(ctx, database)
	if err != nil {
		return fmt.Errorf("failed to check migrations: %w", err)
	}
	for _, s := range statuses {
		if !s.Applied {
			return fmt.Errorf("migration %s not applied - run 'cepgate migrate' first", s.ID)
		}
	}
	return nil
}
