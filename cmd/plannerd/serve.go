package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"plannerd/internal/agents"
	"plannerd/internal/orchestrator"
	"plannerd/internal/planning"
	"plannerd/internal/reasoning"
	"plannerd/internal/server"
	"plannerd/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the planning HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, sessions, orch, err := buildEngine(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		defer sessions.Stop()

		srv := server.New(cfg.Server, orch, st, logger)
		logger.Info("plannerd starting",
			zap.String("version", cfg.Version),
			zap.String("provider", cfg.Reasoning.Provider),
			zap.String("data_dir", cfg.DataDir),
		)
		return srv.Start(ctx)
	},
}

// buildEngine wires the store, session store, reasoning client,
// capability integrations, and orchestrator.
func buildEngine(ctx context.Context) (*store.Store, *planning.SessionStore, *orchestrator.Orchestrator, error) {
	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return nil, nil, nil, err
	}

	client, err := reasoning.NewClient(ctx, cfg.Reasoning)
	if err != nil {
		st.Close()
		return nil, nil, nil, err
	}

	sessions := planning.NewSessionStore(cfg.Review.SessionTimeout)
	sessions.StartSweeper(cfg.Review.SweepInterval)

	orch := orchestrator.New(orchestrator.Config{
		Sessions:   sessions,
		Organizing: agents.NewOrganizingAgent(client, cfg.Reasoning.Timeouts),
		Selection:  agents.NewSelectionAgent(client, cfg.Reasoning.Timeouts),
		Editing:    agents.NewEditingAgent(client, cfg.Reasoning.Timeouts),
		Plans:      st,
		Snapshots:  st,
	})
	return st, sessions, orch, nil
}
