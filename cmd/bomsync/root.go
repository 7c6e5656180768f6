package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"bom-analytics-helper/config"
	"bom-analytics-helper/services"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var validFormats = []string{"text", "json"}

// rootOptions holds global flags and the services built for the command.
type rootOptions struct {
	Format   string
	LockName string

	db       *gorm.DB
	sync     *services.SyncService
	backfill *services.BackfillService
	status   *services.StatusService
}

// NewRootCommand builds the bomsync CLI. A nil db connects with the loaded
// configuration before the first subcommand runs.
func NewRootCommand(db *gorm.DB) *cobra.Command {
	opts := &rootOptions{db: db}

	cmd := &cobra.Command{
		Use:   "bomsync",
		Short: "BOM analytics maintenance",
		Long: `Maintain BOM component rows in the shop's product analytics.

Example:
  bomsync backfill
  bomsync sync --order-id 1234
  bomsync status --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, validFormats)
			}
			return opts.init(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.LockName, "lock-name", "", "MySQL advisory lock name (defaults to BACKFILL_LOCK_NAME)")

	cmd.AddCommand(newBackfillCommand(opts))
	cmd.AddCommand(newBatchCommand(opts))
	cmd.AddCommand(newSyncCommand(opts))
	cmd.AddCommand(newRemoveCommand(opts))
	cmd.AddCommand(newDedupeCommand(opts))
	cmd.AddCommand(newClearCommand(opts))
	cmd.AddCommand(newStatusCommand(opts))
	cmd.AddCommand(newTokenCommand(opts))

	return cmd
}

func (o *rootOptions) init(cmd *cobra.Command) error {
	// token only signs; it needs no database.
	if cmd.Name() == "token" {
		if o.db == nil {
			if _, err := config.Load(); err != nil {
				return err
			}
		}
		return nil
	}
	if o.sync != nil {
		return nil
	}

	db := o.db
	if db == nil {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		config.Logger = config.NewLogger(cfg, cmd.ErrOrStderr())
		if err := config.InitDB(cfg); err != nil {
			return err
		}
		db = config.DB
	}

	o.sync = services.NewSyncService(db, nil)
	o.backfill = services.NewBackfillService(db, o.sync)
	if o.LockName != "" {
		o.backfill.WithLockName(o.LockName)
	}
	if notifier := services.NewMailNotifier(config.App); notifier != nil {
		o.backfill.WithNotifier(notifier)
	}
	o.status = services.NewStatusService(db, o.sync, o.backfill)
	return nil
}

func (o *rootOptions) context(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// print writes v as indented JSON, or text via the given func.
func (o *rootOptions) print(w io.Writer, v interface{}, text func(io.Writer)) error {
	if o.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	text(w)
	return nil
}

func isValidFormat(format string) bool {
	for _, f := range validFormats {
		if f == format {
			return true
		}
	}
	return false
}
