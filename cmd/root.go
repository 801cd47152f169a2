package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/finfacts-cli/internal/config"
	"github.com/sells-group/finfacts-cli/internal/ingest"
	"github.com/sells-group/finfacts-cli/internal/registry"
	"github.com/sells-group/finfacts-cli/internal/store"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "finfacts-cli",
	Short: "Financial statement fact pipeline",
	Long:  "Ingests extracted financial statement rows, normalizes and deduplicates them, reconciles conflicting observations, and derives growth metrics and analyst questions.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "finfacts.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initService builds the pipeline service: store, alias registries, and
// question templates.
func initService(ctx context.Context) (*ingest.Service, store.Store, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, nil, eris.Wrap(err, "migrate store")
	}

	lineItems, err := registry.LoadLineItems(cfg.Aliases.LineItemsPath)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, nil, eris.Wrap(err, "load line item aliases")
	}
	periodAliases, err := registry.LoadPeriodAliases(cfg.Aliases.PeriodsPath)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, nil, eris.Wrap(err, "load period aliases")
	}
	periods := registry.NewPeriodRegistry(cfg.Ingest.PeriodWindowFrom, cfg.Ingest.PeriodWindowTo, periodAliases)
	templates, err := registry.LoadTemplates(cfg.Aliases.TemplatesPath)
	if err != nil {
		st.Close() //nolint:errcheck
		return nil, nil, eris.Wrap(err, "load question templates")
	}

	return ingest.New(st, lineItems, periods, templates, cfg), st, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
