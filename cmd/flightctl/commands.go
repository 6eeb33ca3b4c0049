package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/iliyamo/flight-seat-reservation/internal/app"
	"github.com/iliyamo/flight-seat-reservation/internal/config"
	"github.com/iliyamo/flight-seat-reservation/internal/database"
	"github.com/iliyamo/flight-seat-reservation/internal/logging"
	"github.com/iliyamo/flight-seat-reservation/internal/middleware"
	"github.com/iliyamo/flight-seat-reservation/internal/utils"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create the flights, seats, reservations and payments tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			db, err := app.OpenDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()
			if err := database.Migrate(cmd.Context(), db); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema up to date")
			return nil
		},
	}
}

func syncSeatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync-seats [flightID]",
		Short: "Recompute available seat counters from the seats table",
		Long: `Recompute flights.available_seats as the number of AVAILABLE seats.

With a flight id only that flight is synchronized; without one every
flight is.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeStore, err := services(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				id, err := strconv.ParseUint(args[0], 10, 64)
				if err != nil || id == 0 {
					return fmt.Errorf("invalid flight id %q", args[0])
				}
				before, after, err := svc.Counter.Synchronize(cmd.Context(), id)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "flight %d: %d -> %d\n", id, before, after)
				return nil
			}
			fixed, err := svc.Counter.SynchronizeAll(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d flight counter(s) corrected\n", fixed)
			return nil
		},
	}
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "List successful payments whose reservation was cancelled",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, closeStore, err := services(cmd.Context())
			if err != nil {
				return err
			}
			defer closeStore()

			list, err := svc.Payments.ListUnreconciled(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(list)
		},
	}
}

func tokenCmd() *cobra.Command {
	var (
		subject string
		role    string
		ttl     int
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a signed access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := os.Getenv("JWT_SECRET")
			if secret == "" {
				return fmt.Errorf("JWT_SECRET is not set")
			}
			if ttl <= 0 {
				ttl = 60
			}
			tok, err := utils.NewAccessToken(secret, subject, role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
			return nil
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "operator", "token subject, recorded as created_by")
	cmd.Flags().StringVar(&role, "role", middleware.RoleAdmin, "role claim")
	cmd.Flags().IntVar(&ttl, "ttl", 60, "lifetime in minutes")
	return cmd
}

func services(ctx context.Context) (*app.Services, func(), error) {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)
	store, closeStore, err := app.OpenStore(ctx, cfg, log)
	if err != nil {
		return nil, nil, err
	}
	return app.NewServices(store, cfg, nil, log), closeStore, nil
}
