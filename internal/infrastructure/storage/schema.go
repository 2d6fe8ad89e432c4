package storage

import (
	"context"
	"database/sql"
	"fmt"
)

const (
	itemsTable      = "items"
	stateTable      = "pipeline_state"
	rateLimitKey    = "last_publish"
	defaultPageSize = 100
)

var itemColumns = []string{
	"id",
	"headline",
	"raw_source_url",
	"published_at",
	"source_name",
	"byline",
	"description",
	"resolved_url",
	"extracted_text",
	"extractor",
	"summary",
	"summary_origin",
	"source_class",
	"stage",
	"stage_reason",
	"stage_attempts",
	"publish_status",
	"publish_attempts",
	"published_at_ts",
	"post_ref",
	"raw_url_hash",
	"resolved_url_hash",
	"headline_hash",
	"created_at",
	"updated_at",
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		headline TEXT NOT NULL,
		raw_source_url TEXT NOT NULL DEFAULT '',
		published_at TEXT NOT NULL DEFAULT '',
		source_name TEXT NOT NULL DEFAULT '',
		byline TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		resolved_url TEXT NOT NULL DEFAULT '',
		extracted_text TEXT NOT NULL DEFAULT '',
		extractor TEXT NOT NULL DEFAULT '',
		summary TEXT NOT NULL DEFAULT '',
		summary_origin TEXT NOT NULL DEFAULT '',
		source_class TEXT NOT NULL DEFAULT '',
		stage TEXT NOT NULL,
		stage_reason TEXT NOT NULL DEFAULT '',
		stage_attempts INTEGER NOT NULL DEFAULT 0,
		publish_status TEXT NOT NULL DEFAULT 'unpublished',
		publish_attempts INTEGER NOT NULL DEFAULT 0,
		published_at_ts TEXT NOT NULL DEFAULT '',
		post_ref TEXT NOT NULL DEFAULT '',
		raw_url_hash TEXT NOT NULL DEFAULT '',
		resolved_url_hash TEXT NOT NULL DEFAULT '',
		headline_hash TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS pipeline_state (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_items_raw_url_hash ON items(raw_url_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_items_resolved_url_hash ON items(resolved_url_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_items_headline_hash ON items(headline_hash)`,
	`CREATE INDEX IF NOT EXISTS idx_items_stage ON items(stage)`,
	`CREATE INDEX IF NOT EXISTS idx_items_created_at ON items(created_at)`,
}

func migrate(ctx context.Context, db *sql.DB) error {
	for _, stmt := range migrations {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}
