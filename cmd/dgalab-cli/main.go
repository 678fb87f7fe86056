package main

import (
	"database/sql"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
)

var (
	db     *sql.DB
	dbPath string
)

func initDB() {
	var err error
	db, err = sql.Open("sqlite3", dbPath)
	if err != nil {
		fmt.Printf("Error opening database: %v\n", err)
		os.Exit(1)
	}
}

func main() {
	cobra.OnInitialize(initDB)

	rootCmd := &cobra.Command{
		Use:   "dgalab-cli",
		Short: "DGA Lab CLI - Query log and override management",
		Long: `dgalab-cli inspects the detector's database directly.
Browse the query log, review verdict statistics, and manage manual
block/unblock overrides.`,
	}
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "data/dgalab.db", "path to detector database")

	queryCmd := &cobra.Command{
		Use:   "query",
		Short: "Inspect the query log",
	}
	queryCmd.AddCommand(
		&cobra.Command{Use: "list", Short: "List recent queries", Run: listQueries},
		&cobra.Command{Use: "by-domain [domain]", Short: "Queries for a domain", Args: cobra.ExactArgs(1), Run: queriesByDomain},
		&cobra.Command{Use: "stats", Short: "Show verdict statistics", Run: queryStats},
	)

	overrideCmd := &cobra.Command{
		Use:   "override",
		Short: "Manage manual overrides",
	}
	overrideCmd.AddCommand(
		&cobra.Command{Use: "list", Short: "List all overrides", Run: listOverrides},
		&cobra.Command{Use: "block [domain]", Short: "Force-block a domain", Args: cobra.ExactArgs(1), Run: blockDomain},
		&cobra.Command{Use: "unblock [domain]", Short: "Force-allow a domain", Args: cobra.ExactArgs(1), Run: unblockDomain},
		&cobra.Command{Use: "remove [domain]", Short: "Remove an override", Args: cobra.ExactArgs(1), Run: removeOverride},
	)

	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database operations",
	}
	dbCmd.AddCommand(
		&cobra.Command{Use: "stats", Short: "Database statistics", Run: dbStats},
	)

	rootCmd.AddCommand(queryCmd, overrideCmd, dbCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// ============== QUERY COMMANDS ==============

func listQueries(cmd *cobra.Command, args []string) {
	rows, err := db.Query(`
		SELECT id, domain, final_verdict, model_confidence, override_applied, origin, timestamp
		FROM query_log ORDER BY timestamp DESC LIMIT 50
	`)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer rows.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDOMAIN\tVERDICT\tCONFIDENCE\tOVERRIDE\tORIGIN\tTIMESTAMP")

	count := 0
	for rows.Next() {
		var id, domain, verdict, origin, timestamp string
		var confidence float64
		var override bool
		rows.Scan(&id, &domain, &verdict, &confidence, &override, &origin, &timestamp)
		fmt.Fprintf(w, "%.8s\t%s\t%s\t%.3f\t%t\t%s\t%s\n", id, domain, verdict, confidence, override, origin, timestamp)
		count++
	}
	w.Flush()
	fmt.Printf("\nTotal: %d queries\n", count)
}

func queriesByDomain(cmd *cobra.Command, args []string) {
	rows, err := db.Query(`
		SELECT final_verdict, model_label, model_confidence, override_applied, reason, timestamp
		FROM query_log WHERE domain = ? ORDER BY timestamp DESC LIMIT 50
	`, args[0])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer rows.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "Queries for %s\n", args[0])
	fmt.Fprintln(w, "VERDICT\tMODEL\tCONFIDENCE\tOVERRIDE\tREASON\tTIMESTAMP")

	count := 0
	for rows.Next() {
		var verdict, model, reason, timestamp string
		var confidence float64
		var override bool
		rows.Scan(&verdict, &model, &confidence, &override, &reason, &timestamp)
		fmt.Fprintf(w, "%s\t%s\t%.3f\t%t\t%s\t%s\n", verdict, model, confidence, override, reason, timestamp)
		count++
	}
	w.Flush()
	fmt.Printf("\nTotal: %d\n", count)
}

func queryStats(cmd *cobra.Command, args []string) {
	var total, uniqueDomains int
	var latest sql.NullString
	db.QueryRow(`
		SELECT COUNT(*), COUNT(DISTINCT domain), MAX(timestamp) FROM query_log
	`).Scan(&total, &uniqueDomains, &latest)

	fmt.Printf(`
Query Statistics
=================
Total Queries:     %d
Unique Domains:    %d
Latest Query:      %s
`, total, uniqueDomains, latest.String)

	rows, err := db.Query(`
		SELECT final_verdict, COUNT(*) FROM query_log GROUP BY final_verdict ORDER BY COUNT(*) DESC
	`)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer rows.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "\nVERDICT\tCOUNT")
	for rows.Next() {
		var verdict string
		var count int
		rows.Scan(&verdict, &count)
		fmt.Fprintf(w, "%s\t%d\n", verdict, count)
	}
	w.Flush()
}

// ============== OVERRIDE COMMANDS ==============

func listOverrides(cmd *cobra.Command, args []string) {
	rows, err := db.Query(`
		SELECT domain, state, actor, updated_at FROM overrides ORDER BY updated_at DESC
	`)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	defer rows.Close()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DOMAIN\tSTATE\tACTOR\tUPDATED")

	count := 0
	for rows.Next() {
		var domain, state, actor, updatedAt string
		rows.Scan(&domain, &state, &actor, &updatedAt)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", domain, state, actor, updatedAt)
		count++
	}
	w.Flush()
	fmt.Printf("\nTotal: %d overrides\n", count)
}

func blockDomain(cmd *cobra.Command, args []string)   { setOverride(args[0], "blocked") }
func unblockDomain(cmd *cobra.Command, args []string) { setOverride(args[0], "unblocked") }

func setOverride(domain, state string) {
	_, err := db.Exec(`
		INSERT INTO overrides (domain, state, actor, updated_at)
		VALUES (?, ?, 'cli', ?)
		ON CONFLICT(domain) DO UPDATE SET
			state = excluded.state,
			actor = excluded.actor,
			updated_at = excluded.updated_at
	`, domain, state, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	fmt.Printf("Override set: %s -> %s\n", domain, state)
}

func removeOverride(cmd *cobra.Command, args []string) {
	result, err := db.Exec(`DELETE FROM overrides WHERE domain = ?`, args[0])
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		return
	}
	affected, _ := result.RowsAffected()
	if affected == 0 {
		fmt.Printf("No override for %s\n", args[0])
		return
	}
	fmt.Printf("Override removed: %s\n", args[0])
}

// ============== DATABASE COMMANDS ==============

func dbStats(cmd *cobra.Command, args []string) {
	var queries, overrides int
	db.QueryRow(`SELECT COUNT(*) FROM query_log`).Scan(&queries)
	db.QueryRow(`SELECT COUNT(*) FROM overrides`).Scan(&overrides)

	fmt.Printf(`
Database Statistics
====================
Path:              %s
Query Log Rows:    %d
Overrides:         %d
`, dbPath, queries, overrides)
}
