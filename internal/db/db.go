package db

import (
	"fmt"
	"log"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gate-access-backend/config"
	"gate-access-backend/internal/model"
)

// Init initializes the database connection and runs migrations.
func Init(cfg *config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.DSN), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Info),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetimeMinutes) * time.Minute)

	log.Println("Running database migrations...")
	if err := db.AutoMigrate(
		&model.Person{},
		&model.Vendor{},
		&model.MovementRecord{},
		&model.GuestVisitRequest{},
		&model.Guest{},
		&model.OfficerSubscription{},
	); err != nil {
		return nil, fmt.Errorf("automigrate failed: %w", err)
	}

	log.Println("Applying ledger check constraints...")
	if err := applyLedgerDDL(db); err != nil {
		return nil, fmt.Errorf("ledger DDL failed: %w", err)
	}

	log.Println("Database initialization complete.")
	return db, nil
}

// applyLedgerDDL adds store-level guards behind the invariants the
// application already checks: exactly one entity reference per movement row,
// at most one outstanding pending request per student and movement type, and
// a fast path for pulling the latest completed movement per entity. The
// pending-once index is the guard that holds under concurrent creates, so a
// failure here aborts startup. The constraint adds are wrapped in DO blocks
// to stay idempotent across restarts.
func applyLedgerDDL(db *gorm.DB) error {
	ddls := []string{
		// A movement row references exactly one of student/guest/vendor.
		"DO $$ BEGIN " +
			"ALTER TABLE movement_records " +
			"ADD CONSTRAINT movement_records_single_subject CHECK (" +
			"(student_id IS NOT NULL)::int + (guest_id IS NOT NULL)::int + (vendor_id IS NOT NULL)::int = 1); " +
			"EXCEPTION WHEN duplicate_object THEN NULL; END $$;",

		// Terminal rows carry a resolution timestamp no earlier than creation.
		"DO $$ BEGIN " +
			"ALTER TABLE movement_records " +
			"ADD CONSTRAINT movement_records_resolution_after_creation CHECK (" +
			"resolved_at IS NULL OR resolved_at >= created_at); " +
			"EXCEPTION WHEN duplicate_object THEN NULL; END $$;",

		// One outstanding pending request per student and movement type. The
		// count-then-insert in CreateMovement cannot see a concurrent
		// uncommitted insert; this index rejects the loser of that race.
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_movement_records_pending_once " +
			"ON movement_records (student_id, movement_type) WHERE status = 'PENDING';",

		// Latest-completed-per-entity lookups drive the occupancy views.
		"CREATE INDEX IF NOT EXISTS idx_movement_records_effective_time " +
			"ON movement_records (status, COALESCE(resolved_at, created_at) DESC);",
	}

	for _, ddl := range ddls {
		if err := db.Exec(ddl).Error; err != nil {
			return fmt.Errorf("DDL failed on %q: %w", ddl, err)
		}
	}
	return nil
}
