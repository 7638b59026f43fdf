package database

import (
	"context"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"

	"github.com/fedora-infra/packagedb-sub000/sdk"
)

// DBCmd is the root command for database management.
var DBCmd = &cobra.Command{
	Use:   "database",
	Short: "Manage the package database schema",
}

var upgradeCmd = &cobra.Command{
	Use:   "upgrade",
	Short: "Upgrade schema",
	Long:  "Migrates the database to the most recent version available.",
	Run:   upgradeCmdFunc,
}

var downgradeCmd = &cobra.Command{
	Use:   "downgrade",
	Short: "Downgrade schema",
	Long:  "Undo a database migration.",
	Run:   downgradeCmdFunc,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current migration status",
	Run:   statusCmdFunc,
}

var (
	sqlMigrateDir       string
	sqlMigrateDryRun    bool
	sqlMigrateLimitUp   int
	sqlMigrateLimitDown int
	connConf            DBConfiguration
)

func setFlags(cmd *cobra.Command) {
	pflags := cmd.Flags()
	pflags.StringVar(&connConf.User, "db-user", "pkgdb", "DB User")
	pflags.StringVar(&connConf.Password, "db-password", "", "DB Password")
	pflags.StringVar(&connConf.Name, "db-name", "pkgdb", "DB Name")
	pflags.StringVar(&connConf.Host, "db-host", "localhost", "DB Host")
	pflags.IntVar(&connConf.Port, "db-port", 5432, "DB Port")
	pflags.StringVar(&sqlMigrateDir, "migrate-dir", "./engine/sql", "SQL migration directory")
	pflags.StringVar(&connConf.SSLMode, "db-sslmode", "disable", "DB SSL Mode: require, verify-full, or disable")
	pflags.IntVar(&connConf.MaxConn, "db-maxconn", 20, "DB Max connection")
	pflags.IntVar(&connConf.Timeout, "db-timeout", 3000, "Statement timeout value in milliseconds")
	pflags.IntVar(&connConf.ConnectTimeout, "db-connect-timeout", 10, "Maximum wait for connection, in seconds")
}

func init() {
	setFlags(upgradeCmd)
	setFlags(downgradeCmd)
	setFlags(statusCmd)
	DBCmd.AddCommand(upgradeCmd)
	DBCmd.AddCommand(downgradeCmd)
	DBCmd.AddCommand(statusCmd)

	upgradeCmd.Flags().BoolVar(&sqlMigrateDryRun, "dry-run", false, "Dry run upgrade")
	upgradeCmd.Flags().IntVar(&sqlMigrateLimitUp, "limit", 0, "Max number of migrations to apply (0 = unlimited)")

	downgradeCmd.Flags().BoolVar(&sqlMigrateDryRun, "dry-run", false, "Dry run downgrade")
	downgradeCmd.Flags().IntVar(&sqlMigrateLimitDown, "limit", 1, "Max number of migrations to apply (0 = unlimited)")
}

func upgradeCmdFunc(_ *cobra.Command, _ []string) {
	if err := ApplyMigrations(migrate.Up, sqlMigrateDryRun, sqlMigrateLimitUp); err != nil {
		sdk.Exit("Error: %s\n", err)
	}
}

func downgradeCmdFunc(_ *cobra.Command, _ []string) {
	if err := ApplyMigrations(migrate.Down, sqlMigrateDryRun, sqlMigrateLimitDown); err != nil {
		sdk.Exit("Error: %s\n", err)
	}
}

func statusCmdFunc(_ *cobra.Command, _ []string) {
	f, err := Init(context.Background(), connConf)
	if err != nil {
		sdk.Exit("Error: %s\n", err)
	}

	source := migrate.FileMigrationSource{Dir: sqlMigrateDir}
	migrations, err := source.FindMigrations()
	if err != nil {
		sdk.Exit("Error: %s\n", err)
	}

	records, err := migrate.GetMigrationRecords(f.DB(), "postgres")
	if err != nil {
		sdk.Exit("Error: %s\n", err)
	}

	applied := make(map[string]bool, len(records))
	for _, r := range records {
		applied[r.Id] = true
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Migration", "Applied"})
	for _, m := range migrations {
		if applied[m.Id] {
			table.Append([]string{m.Id, "yes"})
		} else {
			table.Append([]string{m.Id, "no"})
		}
	}
	table.Render()
}

// ApplyMigrations applies migration (or not depending on dryrun flag).
func ApplyMigrations(dir migrate.MigrationDirection, dryrun bool, limit int) error {
	f, err := Init(context.Background(), connConf)
	if err != nil {
		return err
	}

	source := migrate.FileMigrationSource{Dir: sqlMigrateDir}

	if dryrun {
		migrations, _, err := migrate.PlanMigration(f.DB(), "postgres", source, dir, limit)
		if err != nil {
			return fmt.Errorf("cannot plan migration: %s", err)
		}
		for _, m := range migrations {
			printMigration(m, dir)
		}
		return nil
	}

	n, err := migrate.ExecMax(f.DB(), "postgres", source, dir, limit)
	if err != nil {
		return fmt.Errorf("migration failed: %s", err)
	}

	if n == 1 {
		fmt.Println("Applied 1 migration")
	} else {
		fmt.Printf("Applied %d migrations\n", n)
	}

	return nil
}

func printMigration(m *migrate.PlannedMigration, dir migrate.MigrationDirection) {
	if dir == migrate.Up {
		fmt.Printf("==> Would apply migration %s (up)\n", m.Id)
		for _, q := range m.Up {
			fmt.Println(q)
		}
	} else if dir == migrate.Down {
		fmt.Printf("==> Would apply migration %s (down)\n", m.Id)
		for _, q := range m.Down {
			fmt.Println(q)
		}
	}
}
