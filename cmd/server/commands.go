package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	router "github.com/dkeye/hearth/internal/adapters/http"
	wssignal "github.com/dkeye/hearth/internal/adapters/signal"
	"github.com/dkeye/hearth/internal/domain"
)

const shutdownTimeout = 5 * time.Second

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "hearth",
		Short:         "Realtime chat and voice gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
	root.AddCommand(newServeCmd(), newSweepCmd(), newUserCmd(), newServerCmd())
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP and WebSocket server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	a, err := loadApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()
	cfg := a.cfg

	knocks := wssignal.NewKnockLimiter(cfg.KnockLimit, cfg.KnockInterval)
	o := a.newOrchestrator(knocks)

	// Cleanup timers of the previous run are gone; clear what they left.
	if n, err := o.SweepStaleRooms(ctx); err != nil {
		log.Error().Err(err).Msg("startup room sweep failed")
	} else if n > 0 {
		log.Info().Int("rooms", n).Msg("startup room sweep")
	}

	ctl := wssignal.NewSignalWSController(ctx, o, wssignal.Options{
		ReadLimit:      cfg.ReadLimit,
		PingPeriod:     cfg.PingPeriod,
		PongWait:       cfg.PongWait,
		WriteWait:      cfg.WriteWait,
		SendBuffer:     cfg.SendBuffer,
		Workers:        cfg.Workers,
		InboundRate:    cfg.InboundRate,
		InboundBurst:   cfg.InboundBurst,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	r := router.SetupRouter(cfg, o, ctl)
	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info().Str("addr", addr).Msg("hearth server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		ticker := time.NewTicker(cfg.KnockInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				knocks.Prune()
			}
		}
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server forced to shutdown")
		}
		o.Gateway.Close()
		ctl.Wait()
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info().Msg("server exited gracefully")
	return nil
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Delete empty ephemeral rooms left by a previous run",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			n, err := a.newOrchestrator(nil).SweepStaleRooms(cmd.Context())
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d stale rooms\n", n)
			return nil
		},
	}
}

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}
	cmd.AddCommand(newUserAddCmd())
	return cmd
}

func newUserAddCmd() *cobra.Command {
	var (
		displayName string
		server      string
		role        string
	)
	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create a user and print its access token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			user, err := domain.NewUser(args[0])
			if err != nil {
				return err
			}
			user.DisplayName = displayName

			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			if err := a.store.CreateUser(ctx, *user); err != nil {
				return err
			}
			token := uuid.NewString()
			if err := a.store.IssueToken(ctx, user.ID, token); err != nil {
				return err
			}
			if server != "" {
				if err := a.store.AddMember(ctx, domain.Member{ServerID: domain.ServerID(server), UserID: user.ID, Role: domain.Role(role)}); err != nil {
					return err
				}
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "user %s (%s)\ntoken %s\n", user.Username, user.ID, token)
			return nil
		},
	}
	cmd.Flags().StringVar(&displayName, "display-name", "", "name shown to other users")
	cmd.Flags().StringVar(&server, "server", "", "server to join")
	cmd.Flags().StringVar(&role, "role", string(domain.RoleMember), "role in --server (owner, admin, member)")
	return cmd
}

func newServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "Manage servers",
	}
	var owner string
	add := &cobra.Command{
		Use:   "add <name>",
		Short: "Create a server owned by --owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if owner == "" {
				return errors.New("--owner is required")
			}
			a, err := loadApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.close()
			srv := domain.Server{ID: domain.ServerID(uuid.NewString()), Name: args[0], OwnerID: domain.UserID(owner)}
			if err := a.store.CreateServer(cmd.Context(), srv); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "server %s (%s)\n", srv.Name, srv.ID)
			return nil
		},
	}
	add.Flags().StringVar(&owner, "owner", "", "owner user id")
	cmd.AddCommand(add)
	return cmd
}
