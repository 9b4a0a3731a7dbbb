package root

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/zainarain279/Dropee/internal/account"
	"github.com/zainarain279/Dropee/internal/orchestrator"
	"github.com/zainarain279/Dropee/internal/session"
	"github.com/zainarain279/Dropee/internal/ui"
	"github.com/zainarain279/Dropee/internal/useragent"
)

func newRunCmd() *cobra.Command {
	var once bool
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process every account, then sleep and repeat",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			accounts, err := account.Load(cfg.DataFile, cfg.ProxyFile, cfg.UseProxy)
			if err != nil {
				return err
			}

			lg, err := newLogger()
			if err != nil {
				return err
			}
			defer lg.Sync()
			sugar := lg.Sugar()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			store, cleanup, err := openStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			agents, err := useragent.Load(cfg.UserAgentFile, nil)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), ui.Title.Render(fmt.Sprintf("dropee v%s: %d accounts, %d at a time", Version, len(accounts), cfg.MaxThreads)))
			sugar.Infow("starting", "accounts", len(accounts), "max_threads", cfg.MaxThreads,
				"use_proxy", cfg.UseProxy, "token_store", cfg.TokenStore)

			o := &orchestrator.Orchestrator{
				Accounts:       accounts,
				Worker:         session.NewRunner(cfg, session.GatewayDialer(cfg, sugar), sugar),
				Store:          store,
				Agents:         agents,
				MaxConcurrency: cfg.MaxThreads,
				AccountTimeout: cfg.AccountTimeout,
				CycleInterval:  cfg.CycleInterval,
				Log:            sugar,
			}
			err = o.Run(ctx, once)
			if errors.Is(err, context.Canceled) {
				sugar.Info("shutting down")
				return nil
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "stop after one pass over the accounts")
	return cmd
}
