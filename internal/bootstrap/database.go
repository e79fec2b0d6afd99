package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/carryonstow/wikimedia-discovery-analytics/internal/config"

	_ "github.com/lib/pq"
)

// dbPingTimeout bounds the initial connectivity check.
const dbPingTimeout = 5 * time.Second

// SetupDatabase opens and verifies the PostgreSQL connection.
func SetupDatabase(cfg *config.Config) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), dbPingTimeout)
	defer cancel()

	if pingErr := db.PingContext(ctx); pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}

	return db, nil
}
