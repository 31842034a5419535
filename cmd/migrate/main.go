// migrate runs AutoMigrate plus the schema_migrations SQL ledger out-of-band.
// Deployments that set SKIP_MIGRATIONS=true on the server run this as a
// separate job so DDL never blocks request-serving instances.
//
// Usage:
//
//	DB_USER=... DB_PASSWORD=... DB_HOST=... DB_PORT=... DB_NAME=... go run ./cmd/migrate
package main

import (
	"fmt"
	"os"

	"github.com/wjz5788/liqpass-1usd-accelerator-sub001/config"
	"github.com/wjz5788/liqpass-1usd-accelerator-sub001/models"
)

func main() {
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	models.MigrateTable()
	if err := models.ApplySQLMigrations(db); err != nil {
		fmt.Fprintf(os.Stderr, "failed to apply sql migrations: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("migrations applied")
}
