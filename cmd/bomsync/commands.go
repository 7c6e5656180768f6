package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"bom-analytics-helper/config"
	"bom-analytics-helper/middleware"
	"bom-analytics-helper/services"
	"bom-analytics-helper/utils"

	"github.com/spf13/cobra"
)

// errOrdersFailed marks a run that finished but could not sync every order.
var errOrdersFailed = errors.New("some orders failed to sync")

func newBackfillCommand(opts *rootOptions) *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Sync every historical order with BOM lines",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, progress, err := opts.backfill.StartBackfill(opts.context(cmd), force)
			if err != nil {
				if errors.Is(err, services.ErrBackfillAlreadyRunning) {
					return fmt.Errorf("backfill is already in progress (%d/%d orders); use --force to restart", progress.Processed, progress.Total)
				}
				return err
			}
			if err := opts.print(cmd.OutOrStdout(), result, func(w io.Writer) {
				fmt.Fprintln(w, result.Message)
				fmt.Fprintf(w, "Run: %s\n", result.RunID)
			}); err != nil {
				return err
			}
			if result.Errors > 0 {
				return errOrdersFailed
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "restart even if a run is marked in progress")
	return cmd
}

func newBatchCommand(opts *rootOptions) *cobra.Command {
	var offset, limit int

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Sync one page of historical orders without touching progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if offset < 0 || limit <= 0 {
				return fmt.Errorf("offset must be >= 0 and limit > 0")
			}
			result, err := opts.backfill.BackfillBatch(opts.context(cmd), offset, limit)
			if err != nil {
				return err
			}
			if err := opts.print(cmd.OutOrStdout(), result, func(w io.Writer) {
				fmt.Fprintf(w, "Processed %d orders with %d errors.\n", result.Processed-result.Errors, result.Errors)
			}); err != nil {
				return err
			}
			if result.Errors > 0 {
				return errOrdersFailed
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&offset, "offset", 0, "number of orders to skip, newest first")
	cmd.Flags().IntVar(&limit, "limit", services.BatchSize, "number of orders to process")
	return cmd
}

func newSyncCommand(opts *rootOptions) *cobra.Command {
	var orderID uint64

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Sync one order's BOM components into analytics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if orderID == 0 {
				var err error
				if orderID, err = opts.sync.LatestOrderID(opts.context(cmd)); err != nil {
					if errors.Is(err, services.ErrNoOrders) {
						return fmt.Errorf("no orders found")
					}
					return err
				}
			}
			ok, err := opts.sync.SyncBOMToAnalytics(opts.context(cmd), orderID, false)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), map[string]interface{}{"order_id": orderID, "synced": ok}, func(w io.Writer) {
				if ok {
					fmt.Fprintf(w, "Synced BOMs for order #%d\n", orderID)
				} else {
					fmt.Fprintf(w, "No BOMs found in order #%d\n", orderID)
				}
			})
		},
	}

	cmd.Flags().Uint64Var(&orderID, "order-id", 0, "order to sync (defaults to the most recent order)")
	return cmd
}

func newRemoveCommand(opts *rootOptions) *cobra.Command {
	var orderID uint64

	cmd := &cobra.Command{
		Use:   "remove",
		Short: "Remove one order's BOM rows from analytics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if orderID == 0 {
				return fmt.Errorf("--order-id is required")
			}
			ok, err := opts.sync.RemoveBOMFromAnalytics(opts.context(cmd), orderID)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), map[string]interface{}{"order_id": orderID, "removed": ok}, func(w io.Writer) {
				if ok {
					fmt.Fprintf(w, "Removed BOM analytics for order #%d\n", orderID)
				} else {
					fmt.Fprintf(w, "No BOMs found in order #%d\n", orderID)
				}
			})
		},
	}

	cmd.Flags().Uint64Var(&orderID, "order-id", 0, "order whose BOM rows are removed")
	return cmd
}

func newDedupeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dedupe",
		Short: "Delete duplicate BOM rows, keeping the lowest line id",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := opts.sync.RemoveDuplicates(opts.context(cmd))
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), result, func(w io.Writer) {
				fmt.Fprintln(w, result.Message)
			})
		},
	}
}

func newClearCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every BOM row from analytics and reset the backfill",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := opts.backfill.ClearAnalytics(opts.context(cmd))
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), result, func(w io.Writer) {
				fmt.Fprintln(w, result.Message)
			})
		},
	}
}

func newStatusCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show integration health, sync coverage and backfill progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dashboard, err := opts.status.Dashboard(opts.context(cmd))
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), dashboard, func(w io.Writer) {
				for _, check := range dashboard.Checks {
					mark := "FAIL"
					if check.Status {
						mark = " OK "
					}
					fmt.Fprintf(w, "[%s] %s: %s\n", mark, check.Label, check.Message)
				}
				fmt.Fprintf(w, "\nBOM records: %s, synced: %s (%s%%)\n",
					utils.FormatCount(dashboard.Sync.TotalBOMs),
					utils.FormatCount(dashboard.Sync.SyncedBOMs),
					utils.FormatPercent(dashboard.Sync.SyncPercent))
				b := dashboard.Backfill
				fmt.Fprintf(w, "Backfill: %s, %d / %d orders (%s%%), %d errors\n",
					b.StatusLabel(), b.Processed, b.Total, utils.FormatPercent(b.Percent), b.Errors)
			})
		},
	}
}

func newTokenCommand(opts *rootOptions) *cobra.Command {
	var (
		userID uint64
		email  string
		ttl    time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a shop-manager token for the admin page and API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == 0 {
				return fmt.Errorf("--user is required")
			}
			token, err := middleware.GenerateToken(config.App.JWTSecret, userID, email, []string{middleware.CapabilityManageShop}, ttl)
			if err != nil {
				return err
			}
			return opts.print(cmd.OutOrStdout(), map[string]interface{}{"token": token, "expires_in": ttl.String()}, func(w io.Writer) {
				fmt.Fprintln(w, token)
			})
		},
	}

	cmd.Flags().Uint64Var(&userID, "user", 0, "user id the token is issued to")
	cmd.Flags().StringVar(&email, "email", "", "email recorded in the token")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "token lifetime")
	return cmd
}
