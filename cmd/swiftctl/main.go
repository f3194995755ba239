package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"swifthand/api/internal/app"
	"swifthand/api/internal/checklist"
	"swifthand/api/internal/config"
	"swifthand/api/internal/export"
	"swifthand/api/internal/search"
	"swifthand/api/internal/store"
)

var rootCmd = &cobra.Command{
	Use:   "swiftctl",
	Short: "SwiftHand operator CLI",
	Long: `swiftctl runs migrations and inspects vehicle checklists without the web UI.
Configuration comes from the same environment as the API; SWIFT_* variables and
flags override it.`,
	SilenceUsage: true,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("SWIFT")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	cfg := config.Load()
	rootCmd.PersistentFlags().String("database-url", cfg.DatabaseURL, "postgres connection string")
	rootCmd.PersistentFlags().String("migrations-dir", cfg.MigrationsDir, "migrations directory")
	rootCmd.PersistentFlags().String("meili-url", cfg.MeiliURL, "meilisearch url (reindex only)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("database-url", rootCmd.PersistentFlags().Lookup("database-url"))
	_ = viper.BindPFlag("migrations-dir", rootCmd.PersistentFlags().Lookup("migrations-dir"))
	_ = viper.BindPFlag("meili-url", rootCmd.PersistentFlags().Lookup("meili-url"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(checklistCmd())
	rootCmd.AddCommand(checklistsCmd())
	rootCmd.AddCommand(reindexCmd())
	rootCmd.AddCommand(purgeSessionsCmd())
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "migrate", Short: "Manage the database schema"}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.ApplyMigrations(viper.GetString("database-url"), viper.GetString("migrations-dir")); err != nil {
				return err
			}
			return printVersion()
		},
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Revert migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := store.RollbackMigrations(viper.GetString("database-url"), viper.GetString("migrations-dir"), steps); err != nil {
				return err
			}
			return printVersion()
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "migrations to revert (0 = all)")

	version := &cobra.Command{
		Use:   "version",
		Short: "Show the applied migration version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return printVersion()
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}

func printVersion() error {
	version, dirty, err := store.MigrationVersion(viper.GetString("database-url"), viper.GetString("migrations-dir"))
	if err != nil {
		return err
	}
	if viper.GetBool("json") {
		return printJSON(map[string]any{"version": version, "dirty": dirty})
	}
	fmt.Printf("schema version %d (dirty=%t)\n", version, dirty)
	return nil
}

func checklistCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "checklist", Short: "Inspect a booking's checklist"}
	cmd.AddCommand(checklistShowCmd())
	cmd.AddCommand(checklistPDFCmd())
	return cmd
}

func checklistShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <bookingId>",
		Short: "Print every inspection item of a checklist",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc *app.Service, _ *store.PostgresStore) error {
				view, err := svc.ChecklistRecord(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(view)
				}

				renderChecklist(os.Stdout, checklist.DefaultCatalog(), view)
				return nil
			})
		},
	}
}

func checklistPDFCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "pdf <bookingId>",
		Short: "Print a checklist to PDF",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc *app.Service, _ *store.PostgresStore) error {
				result, err := svc.PrintChecklist(ctx, args[0])
				if err != nil {
					return err
				}
				path := output
				if path == "" {
					path = result.Filename
				}
				if err := os.WriteFile(path, result.Data, 0o644); err != nil {
					return err
				}
				fmt.Printf("wrote %s (%d bytes)\n", path, len(result.Data))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (defaults to the document name)")
	return cmd
}

func checklistsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "checklists <serviceId>",
		Short: "List the checklists submitted for a service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, svc *app.Service, _ *store.PostgresStore) error {
				items, err := svc.ListServiceChecklists(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Booking", "Submitted By", "Updated"})
				for _, item := range items {
					tw.AppendRow(table.Row{item["id"], item["booking"], item["submittedBy"], item["updatedAt"]})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func reindexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the search index from Postgres",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, _ *app.Service, pg *store.PostgresStore) error {
				meiliURL := strings.TrimSpace(viper.GetString("meili-url"))
				if meiliURL == "" {
					return fmt.Errorf("--meili-url required")
				}
				meili := search.NewMeili(meiliURL, config.Load().MeiliMasterKey)
				defer meili.Close()
				indexed := search.NewService(meili, search.NewPgFTS(pg.DB())).ReindexAllFromPG(ctx)
				fmt.Printf("indexed %d services\n", indexed)
				return nil
			})
		},
	}
}

func purgeSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "purge-sessions",
		Short: "Delete expired refresh sessions and revoked tokens",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withService(cmd.Context(), func(ctx context.Context, _ *app.Service, pg *store.PostgresStore) error {
				purged, err := pg.PurgeExpiredSessions(ctx)
				if err != nil {
					return err
				}
				fmt.Printf("purged %d rows\n", purged)
				return nil
			})
		},
	}
}

func withService(ctx context.Context, fn func(context.Context, *app.Service, *store.PostgresStore) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := config.Load()
	cfg.DatabaseURL = viper.GetString("database-url")

	db, err := store.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	pg := store.NewPostgresStore(db)
	return fn(ctx, app.New(cfg, pg, app.Dependencies{}), pg)
}

// renderChecklist prints the header fields and every catalog item, followed by
// items the catalog does not know.
func renderChecklist(w io.Writer, catalog *checklist.Catalog, view export.View) {
	fmt.Fprintf(w, "Booking %s  %s  %s\n", view.BookingID, view.ServiceTitle, view.ClientName)
	fmt.Fprintf(w, "Submitted by %s, updated %s\n\n", view.SubmittedBy, view.UpdatedAt.Format("2006-01-02 15:04"))

	header := table.NewWriter()
	header.SetOutputMirror(w)
	header.AppendHeader(table.Row{"Field", "Value"})
	for _, key := range scalarKeys(view.Data) {
		header.AppendRow(table.Row{key, view.Data.Scalar(key)})
	}
	header.Render()

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Item", "Class", "Status", "Arrival"})
	for _, item := range catalog.Items() {
		label := item.Label
		if label == "" {
			label = item.Key
		}
		tw.AppendRow(table.Row{
			label,
			catalog.Classification(item.Key),
			checklist.StatusOf(view.Data, item.Key),
			checklist.ArrivalOf(view.Data, item.Key),
		})
	}
	for _, key := range view.Data.Keys() {
		if _, known := catalog.Item(key); known || !view.Data[key].IsItem() {
			continue
		}
		tw.AppendRow(table.Row{key, catalog.Classification(key), checklist.StatusOf(view.Data, key), checklist.ArrivalOf(view.Data, key)})
	}
	tw.Render()
}

func scalarKeys(data checklist.FormData) []string {
	keys := make([]string, 0, len(data))
	for key, entry := range data {
		if !entry.IsItem() {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
