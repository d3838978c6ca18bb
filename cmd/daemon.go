package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"synctl/internal/config"
	"synctl/internal/dispatcher"
	"synctl/internal/gateway/forge"
	"synctl/internal/gateway/sheet"
	"synctl/internal/reconciler"
	"synctl/internal/resolver"
)

var daemonDebug bool

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the outbox dispatcher and reconciler pollers until interrupted",
	RunE:  runDaemon,
}

func init() {
	rootCmd.AddCommand(daemonCmd)
	daemonCmd.Flags().BoolVar(&daemonDebug, "debug", false, "log gateway request/response bodies at debug level")
}

// sheetContactResolver adapts sheet.Client's Contact-returning
// ResolveContact to the narrower (openID, error) shape the Identity
// Resolver depends on.
type sheetContactResolver struct {
	client *sheet.Client
}

func (r sheetContactResolver) ResolveContact(ctx context.Context, email string) (string, error) {
	contact, err := r.client.ResolveContact(ctx, email)
	if err != nil {
		return "", err
	}
	return contact.OpenID, nil
}

func runDaemon(cmd *cobra.Command, args []string) error {
	level := slog.LevelInfo
	if daemonDebug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if cfg.GitHubOwner == "" || cfg.GitHubRepo == "" {
		return fmt.Errorf("SYNC_GITHUB_OWNER and SYNC_GITHUB_REPO must be set to run the daemon")
	}
	forgeClient, err := forge.New(cfg.GitHubToken, cfg.GitHubOwner+"/"+cfg.GitHubRepo)
	if err != nil {
		return fmt.Errorf("forge client: %w", err)
	}

	sheetClient, err := sheet.Dial(cmd.Context(), cfg.SheetGatewayCommand, cfg.SheetGatewayArgs...)
	if err != nil {
		return fmt.Errorf("sheet gateway: %w", err)
	}
	defer sheetClient.Close()

	if entries, err := config.LoadRegistry(cfg.RegistryPath); err == nil {
		for i := range entries {
			wantDefault := entries[i].IsDefault
			entries[i].IsDefault = false
			if err := st.UpsertTableRegistryEntry(&entries[i]); err != nil {
				return fmt.Errorf("seed registry: %w", err)
			}
			if wantDefault {
				if err := st.SetDefaultTable(entries[i].AppToken, entries[i].TableID); err != nil {
					return fmt.Errorf("seed registry default: %w", err)
				}
			}
		}
	} else {
		logger.Warn("no table registry loaded", slog.String("path", cfg.RegistryPath), slog.String("error", err.Error()))
	}

	idResolver := resolver.New(st, sheetContactResolver{client: sheetClient})

	operatorMemberID := ""
	if cfg.OperatorEmail != "" {
		if member, err := st.FindMemberByEmail(cfg.OperatorEmail); err == nil {
			operatorMemberID = member.MemberID
		}
	}

	handlers := &dispatcher.Handlers{
		Store:            st,
		Forge:            forgeClient,
		Sheet:            sheetClient,
		Resolver:         idResolver,
		ForgeRepo:        cfg.GitHubOwner + "/" + cfg.GitHubRepo,
		OperatorMemberID: operatorMemberID,
	}

	d := &dispatcher.Dispatcher{
		Store:    st,
		Handlers: handlers,
		Logger:   logger,
	}

	forgePoller := &reconciler.ForgePoller{
		Store:            st,
		Forge:            forgeClient,
		ForgeRepo:        cfg.GitHubOwner + "/" + cfg.GitHubRepo,
		Logger:           logger,
		Interval:         cfg.Interval,
		OperatorMemberID: operatorMemberID,
	}
	sheetPoller := &reconciler.SheetPoller{
		Store:            st,
		Sheet:            sheetClient,
		Logger:           logger,
		Interval:         cfg.Interval,
		OperatorMemberID: operatorMemberID,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	logger.Info("daemon starting", slog.Duration("interval", cfg.Interval))

	done := make(chan struct{}, 3)
	go func() { d.Run(ctx); done <- struct{}{} }()
	go func() { forgePoller.Run(ctx); done <- struct{}{} }()
	go func() { sheetPoller.Run(ctx); done <- struct{}{} }()

	<-ctx.Done()
	logger.Info("daemon shutting down")
	for i := 0; i < 3; i++ {
		<-done
	}
	return nil
}
