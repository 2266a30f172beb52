package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"stratum/internal/logging"
	"stratum/pkg/buildconfig"
	"stratum/pkg/depgraph"
	"stratum/pkg/depgraph/sqlstore"
	"stratum/pkg/feature"
)

// NewGraphCommand returns the `stratumctl graph` command group.
func NewGraphCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Build and inspect feature dependency graphs",
	}
	cmd.AddCommand(newGraphBuildCommand())
	cmd.AddCommand(newGraphShowCommand())
	return cmd
}

func openStore(cfg *buildconfig.Config) (depgraph.Store, error) {
	switch cfg.Store.Backend {
	case buildconfig.StoreSQLite:
		return sqlstore.OpenSQLite(cfg.Store.SQLitePath)
	case buildconfig.StorePostgres:
		conn, err := cfg.ConnectionString()
		if err != nil {
			return nil, err
		}
		return sqlstore.OpenPostgres(conn)
	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}
}

func newGraphBuildCommand() *cobra.Command {
	var configPath string
	var verbose bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Add a build's features to the depgraph and verify it",
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New(verbose)
			ctx := context.Background()

			cfg, err := buildconfig.Load(configPath)
			if err != nil {
				return err
			}
			if cfg.Parent != nil {
				ctx = logging.WithLayer(ctx, cfg.Parent.Label)
			}

			store, err := openStore(cfg)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer func() { _ = store.Close() }()

			// Layer resolution across builds (Clone/Extract src_layer,
			// item_in_layer validators) is provided by the caller wiring
			// multiple stratumctl invocations together; this thin CLI
			// wrapper builds a single layer's graph against its own store.
			builder, err := depgraph.NewBuilder(ctx, store, nil)
			if err != nil {
				return fmt.Errorf("initializing builder: %w", err)
			}

			for _, path := range cfg.Features {
				data, err := os.ReadFile(path)
				if err != nil {
					return fmt.Errorf("reading feature %s: %w", path, err)
				}
				f, err := feature.Unmarshal(string(data))
				if err != nil {
					return fmt.Errorf("parsing feature %s: %w", path, err)
				}
				if builder, err = builder.AddFeature(ctx, f); err != nil {
					return fmt.Errorf("adding feature %s: %w", f.Label, err)
				}
				log.Debug(ctx, "added feature", logging.F("label", f.Label), logging.F("kind", f.Kind))
			}

			g, err := builder.Build(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = g.Close() }()

			pending := g.PendingFeatures()
			log.Info(ctx, "build succeeded", logging.F("features", len(pending)))
			for _, f := range pending {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", f.Label, f.Kind)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the build config YAML")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func newGraphShowCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show",
		Short: "List every item currently stored in a depgraph",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			cfg, err := buildconfig.Load(configPath)
			if err != nil {
				return err
			}
			store, err := openStore(cfg)
			if err != nil {
				return fmt.Errorf("opening store: %w", err)
			}
			defer func() { _ = store.Close() }()

			// show reads an already-built store; it must not call Init,
			// which would mark that build's pending features as settled
			// before a caller has verified them.
			items, err := store.AllItems(ctx)
			if err != nil {
				return fmt.Errorf("listing items: %w", err)
			}
			for key, it := range items {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\n", key.Marshal(), it.Kind)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "path to the build config YAML")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}
