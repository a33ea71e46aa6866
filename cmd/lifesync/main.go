package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/daejaeonboy/lifesync-ai-sub000/internal/config"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/engine"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/export"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/logger"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/remote/memstore"
	"github.com/daejaeonboy/lifesync-ai-sub000/internal/status"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

type app struct {
	cfg     *config.Config
	offline bool
}

// NewRootCmd constructs the root CLI command; exposed for unit testing.
func NewRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "lifesync",
		Short:         "lifesync client state engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.New()
			if err != nil {
				return err
			}
			a.cfg = cfg
			log.Logger = logger.New("lifesync-cli", cfg.LogLevel)
			return nil
		},
	}

	root.PersistentFlags().BoolVar(&a.offline, "offline", false, "use an in-memory remote store instead of Postgres")

	root.AddCommand(a.newRunCmd())
	root.AddCommand(a.newExportCmd())
	root.AddCommand(a.newClearCmd())
	root.AddCommand(a.newDigestCmd())
	root.AddCommand(a.newStatusCmd())
	return root
}

// open builds and boots an engine, signing in the configured user.
func (a *app) open(ctx context.Context) (*engine.Engine, error) {
	var deps engine.Deps
	if a.offline {
		deps.Remote = memstore.New()
	}
	e, err := engine.New(a.cfg, deps)
	if err != nil {
		return nil, err
	}
	e.Boot()
	if a.cfg.UserID != "" {
		e.SignIn(ctx, a.cfg.UserID)
	}
	return e, nil
}

func (a *app) newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the engine with the digest schedule and the status server",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			e, err := a.open(ctx)
			if err != nil {
				return err
			}
			defer e.Close()

			if err := e.Start(ctx); err != nil {
				return err
			}
			return status.Serve(ctx, a.cfg.StatusAddr(), status.NewRouter(e, log.Logger), log.Logger)
		},
	}
}

func (a *app) newExportCmd() *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write every collection to a JSON backup file",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			now := time.Now()
			if out == "" {
				out = export.FileName(now)
			}
			w := os.Stdout
			if out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return fmt.Errorf("create %s: %w", out, err)
				}
				defer f.Close()
				w = f
			}
			if err := export.Write(w, e.Export(now)); err != nil {
				return err
			}
			if out != "-" {
				log.Info().Str("file", out).Msg("backup written")
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, '-' for stdout (default lifesync-backup-<date>.json)")
	return cmd
}

func (a *app) newClearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all data locally and, when signed in, remotely",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to clear without --yes")
			}
			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
			defer cancel()
			if err := e.ClearAll(ctx); err != nil {
				return fmt.Errorf("clear failed, local data kept: %w", err)
			}
			log.Info().Msg("all data cleared")
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the irreversible delete")
	return cmd
}

func (a *app) newDigestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "digest",
		Short: "Run one scheduled digest check now",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.Close()

			fired := e.Digest.Tick(time.Now())
			ctx, cancel := context.WithTimeout(cmd.Context(), a.cfg.LLMTimeout+10*time.Second)
			defer cancel()
			if err := e.Flush(ctx); err != nil {
				return err
			}
			log.Info().Bool("fired", fired).Int("posts", len(e.State.CommunityPosts())).Msg("digest check done")
			return nil
		},
	}
}

func (a *app) newStatusCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Query a running engine's status server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = "http://" + a.cfg.StatusAddr()
			}
			c := resty.New().SetBaseURL(addr).SetTimeout(5 * time.Second)

			var rep status.SyncReport
			resp, err := c.R().SetContext(cmd.Context()).SetResult(&rep).Get("/api/sync")
			if err != nil {
				return fmt.Errorf("status server unreachable: %w", err)
			}
			if resp.IsError() {
				return fmt.Errorf("status server: http %d", resp.StatusCode())
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rep)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "status server base URL (default http://127.0.0.1:<STATUS_PORT>)")
	return cmd
}
