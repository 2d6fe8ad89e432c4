package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"NewsRelay/internal/domain"
	"NewsRelay/internal/normalize"
	"NewsRelay/internal/ports"
)

// SQLStore persists items into Postgres or SQLite.
type SQLStore struct {
	db      *sql.DB
	builder sq.StatementBuilderType
	driver  string
	now     func() time.Time
}

var (
	_ ports.ItemStore = (*SQLStore)(nil)
	_ ports.ItemAdmin = (*SQLStore)(nil)
)

// OpenSQL opens the database addressed by dsn and applies the schema.
//
// postgres:// and postgresql:// DSNs use lib/pq; sqlite://<path>, file:<path>
// and sqlite://:memory: use the embedded SQLite driver.
func OpenSQL(ctx context.Context, dsn string) (*SQLStore, error) {
	driver, source, err := splitDSN(dsn)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, source)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &domain.StoreError{Op: "ping", Err: err}
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, &domain.StoreError{Op: "migrate", Err: err}
	}

	return NewSQLStore(db, driver), nil
}

// NewSQLStore wires an already migrated sql.DB.
func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	var format sq.PlaceholderFormat = sq.Question
	if driver == "postgres" {
		format = sq.Dollar
	}
	return &SQLStore{
		db:      db,
		builder: sq.StatementBuilder.PlaceholderFormat(format),
		driver:  driver,
		now:     time.Now,
	}
}

func splitDSN(dsn string) (driver, source string, err error) {
	dsn = strings.TrimSpace(dsn)
	switch {
	case strings.HasPrefix(dsn, "postgres://"), strings.HasPrefix(dsn, "postgresql://"):
		return "postgres", dsn, nil
	case strings.HasPrefix(dsn, "sqlite://"):
		return "sqlite", sqliteSource(strings.TrimPrefix(dsn, "sqlite://")), nil
	case strings.HasPrefix(dsn, "file:"):
		return "sqlite", sqliteSource(strings.TrimPrefix(dsn, "file:")), nil
	default:
		return "", "", fmt.Errorf("unsupported database dsn %q", dsn)
	}
}

func sqliteSource(path string) string {
	if path == "" || path == ":memory:" {
		return "file::memory:?_pragma=busy_timeout(5000)"
	}
	return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
}

// Close releases the connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// Get loads a single item by id.
func (s *SQLStore) Get(ctx context.Context, id string) (domain.Item, bool, error) {
	item, found, err := s.get(ctx, s.db, id)
	if err != nil {
		return domain.Item{}, false, &domain.StoreError{Op: "get", Err: err}
	}
	return item, found, nil
}

// Exists reports whether an item with id is stored.
func (s *SQLStore) Exists(ctx context.Context, id string) (bool, error) {
	found, err := s.exists(ctx, sq.Eq{"id": id})
	if err != nil {
		return false, &domain.StoreError{Op: "exists", Err: err}
	}
	return found, nil
}

// Upsert merges item into the stored record inside one transaction.
func (s *SQLStore) Upsert(ctx context.Context, item domain.Item, preserve domain.FieldSet) (domain.Item, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Item{}, &domain.StoreError{Op: "upsert", Err: fmt.Errorf("begin tx: %w", err)}
	}

	merged, err := s.upsertTx(ctx, tx, item, preserve)
	if err != nil {
		_ = tx.Rollback()
		return domain.Item{}, &domain.StoreError{Op: "upsert", Err: err}
	}

	if err := tx.Commit(); err != nil {
		return domain.Item{}, &domain.StoreError{Op: "upsert", Err: fmt.Errorf("commit: %w", err)}
	}
	return merged, nil
}

func (s *SQLStore) upsertTx(ctx context.Context, tx *sql.Tx, item domain.Item, preserve domain.FieldSet) (domain.Item, error) {
	existing, found, err := s.get(ctx, tx, item.ID)
	if err != nil {
		return domain.Item{}, err
	}

	now := s.now().UTC()
	item.UpdatedAt = now
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}

	if !found {
		values := itemValues(item)
		query, args, err := s.builder.Insert(itemsTable).Columns(itemColumns...).Values(values...).ToSql()
		if err != nil {
			return domain.Item{}, fmt.Errorf("build insert: %w", err)
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return domain.Item{}, fmt.Errorf("insert item %s: %w", item.ID, err)
		}
		return item, nil
	}

	merged := domain.Merge(existing, item, preserve)
	set := map[string]any{}
	values := itemValues(merged)
	for i, col := range itemColumns {
		if col == "id" {
			continue
		}
		set[col] = values[i]
	}

	query, args, err := s.builder.Update(itemsTable).SetMap(set).Where(sq.Eq{"id": merged.ID}).ToSql()
	if err != nil {
		return domain.Item{}, fmt.Errorf("build update: %w", err)
	}
	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		return domain.Item{}, fmt.Errorf("update item %s: %w", merged.ID, err)
	}
	return merged, nil
}

// List streams items ordered by id, one page at a time.
func (s *SQLStore) List(ctx context.Context, filter ports.ListFilter) iter.Seq2[domain.Item, error] {
	return func(yield func(domain.Item, error) bool) {
		pageSize := filter.PageSize
		if pageSize <= 0 {
			pageSize = defaultPageSize
		}

		after := ""
		emitted := 0
		for {
			limit := pageSize
			if filter.Limit > 0 && filter.Limit-emitted < limit {
				limit = filter.Limit - emitted
			}
			if limit <= 0 {
				return
			}

			page, err := s.listPage(ctx, filter, after, limit)
			if err != nil {
				yield(domain.Item{}, &domain.StoreError{Op: "list", Err: err})
				return
			}

			for _, item := range page {
				if !yield(item, nil) {
					return
				}
				emitted++
			}

			if len(page) < limit {
				return
			}
			after = page[len(page)-1].ID
		}
	}
}

func (s *SQLStore) listPage(ctx context.Context, filter ports.ListFilter, after string, limit int) ([]domain.Item, error) {
	qb := s.builder.Select(itemColumns...).From(itemsTable).OrderBy("id").Limit(uint64(limit))
	if after != "" {
		qb = qb.Where(sq.Gt{"id": after})
	}
	if len(filter.Stages) > 0 {
		stages := make([]string, len(filter.Stages))
		for i, st := range filter.Stages {
			stages[i] = string(st)
		}
		qb = qb.Where(sq.Eq{"stage": stages})
	}
	if filter.PublishStatus != "" {
		qb = qb.Where(sq.Eq{"publish_status": string(filter.PublishStatus)})
	}
	if filter.IDPrefix != "" {
		qb = qb.Where(sq.Like{"id": filter.IDPrefix + "%"})
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}

	page := make([]domain.Item, 0, limit)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		page = append(page, item)
	}

	if rowsErr := rows.Err(); rowsErr != nil {
		_ = rows.Close()
		return nil, fmt.Errorf("rows iteration: %w", rowsErr)
	}

	if closeErr := rows.Close(); closeErr != nil {
		return nil, fmt.Errorf("close rows: %w", closeErr)
	}

	return page, nil
}

// HasURLHash checks the raw and resolved URL indexes.
func (s *SQLStore) HasURLHash(ctx context.Context, hash string) (bool, error) {
	if hash == "" {
		return false, nil
	}
	found, err := s.exists(ctx, sq.Or{sq.Eq{"raw_url_hash": hash}, sq.Eq{"resolved_url_hash": hash}})
	if err != nil {
		return false, &domain.StoreError{Op: "url lookup", Err: err}
	}
	return found, nil
}

// HasHeadlineHash checks the headline index.
func (s *SQLStore) HasHeadlineHash(ctx context.Context, hash string) (bool, error) {
	if hash == "" {
		return false, nil
	}
	found, err := s.exists(ctx, sq.Eq{"headline_hash": hash})
	if err != nil {
		return false, &domain.StoreError{Op: "headline lookup", Err: err}
	}
	return found, nil
}

// RecentHeadlines returns the newest stored headlines.
func (s *SQLStore) RecentHeadlines(ctx context.Context, limit int) ([]string, error) {
	if limit <= 0 {
		return nil, nil
	}

	query, args, err := s.builder.Select("headline").From(itemsTable).
		OrderBy("created_at DESC").Limit(uint64(limit)).ToSql()
	if err != nil {
		return nil, &domain.StoreError{Op: "recent headlines", Err: err}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &domain.StoreError{Op: "recent headlines", Err: err}
	}
	defer rows.Close()

	var headlines []string
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, &domain.StoreError{Op: "recent headlines", Err: err}
		}
		headlines = append(headlines, h)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StoreError{Op: "recent headlines", Err: err}
	}
	return headlines, nil
}

// RateLimitRecord reads the singleton last-publish record.
func (s *SQLStore) RateLimitRecord(ctx context.Context) (domain.RateLimitRecord, bool, error) {
	query, args, err := s.builder.Select("value").From(stateTable).Where(sq.Eq{"key": rateLimitKey}).ToSql()
	if err != nil {
		return domain.RateLimitRecord{}, false, &domain.StoreError{Op: "rate limit get", Err: err}
	}

	var raw string
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.RateLimitRecord{}, false, nil
	}
	if err != nil {
		return domain.RateLimitRecord{}, false, &domain.StoreError{Op: "rate limit get", Err: err}
	}

	ts, err := parseTime(raw)
	if err != nil {
		return domain.RateLimitRecord{}, false, &domain.StoreError{Op: "rate limit get", Err: err}
	}
	return domain.RateLimitRecord{LastPublishedAt: ts}, true, nil
}

// SetRateLimitRecord overwrites the singleton last-publish record.
func (s *SQLStore) SetRateLimitRecord(ctx context.Context, rec domain.RateLimitRecord) error {
	query, args, err := s.builder.Insert(stateTable).
		Columns("key", "value", "updated_at").
		Values(rateLimitKey, formatTime(rec.LastPublishedAt), formatTime(s.now().UTC())).
		Suffix("ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return &domain.StoreError{Op: "rate limit set", Err: err}
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return &domain.StoreError{Op: "rate limit set", Err: err}
	}
	return nil
}

// Reset returns an item to dedup_checked, clearing all derived fields.
func (s *SQLStore) Reset(ctx context.Context, id string) (domain.Item, error) {
	item, found, err := s.Get(ctx, id)
	if err != nil {
		return domain.Item{}, err
	}
	if !found {
		return domain.Item{}, fmt.Errorf("reset %s: %w", id, domain.ErrNotFound)
	}

	reset := item.ResetDerived(s.now().UTC())
	set := map[string]any{}
	values := itemValues(reset)
	for i, col := range itemColumns {
		if col != "id" {
			set[col] = values[i]
		}
	}

	query, args, err := s.builder.Update(itemsTable).SetMap(set).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Item{}, &domain.StoreError{Op: "reset", Err: err}
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return domain.Item{}, &domain.StoreError{Op: "reset", Err: err}
	}
	return reset, nil
}

// Delete removes an item permanently.
func (s *SQLStore) Delete(ctx context.Context, id string) error {
	query, args, err := s.builder.Delete(itemsTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return &domain.StoreError{Op: "delete", Err: err}
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return &domain.StoreError{Op: "delete", Err: err}
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("delete %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *SQLStore) get(ctx context.Context, q queryer, id string) (domain.Item, bool, error) {
	query, args, err := s.builder.Select(itemColumns...).From(itemsTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Item{}, false, fmt.Errorf("build get: %w", err)
	}

	item, err := scanItem(q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Item{}, false, nil
	}
	if err != nil {
		return domain.Item{}, false, err
	}
	return item, true, nil
}

func (s *SQLStore) exists(ctx context.Context, pred sq.Sqlizer) (bool, error) {
	query, args, err := s.builder.Select("1").From(itemsTable).Where(pred).Limit(1).ToSql()
	if err != nil {
		return false, fmt.Errorf("build exists: %w", err)
	}

	var one int
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanItem(row scanner) (domain.Item, error) {
	var (
		item                                           domain.Item
		publishedAt, publishedAtTS, created, updated   string
		summaryOrigin, sourceClass, stage, publishStat string
		rawHash, resolvedHash, headlineHash            string
	)

	err := row.Scan(
		&item.ID,
		&item.Headline,
		&item.RawSourceURL,
		&publishedAt,
		&item.SourceName,
		&item.Byline,
		&item.Description,
		&item.ResolvedURL,
		&item.ExtractedText,
		&item.Extractor,
		&item.Summary,
		&summaryOrigin,
		&sourceClass,
		&stage,
		&item.StageReason,
		&item.StageAttempts,
		&publishStat,
		&item.PublishAttempts,
		&publishedAtTS,
		&item.PostRef,
		&rawHash,
		&resolvedHash,
		&headlineHash,
		&created,
		&updated,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Item{}, err
		}
		return domain.Item{}, fmt.Errorf("scan item: %w", err)
	}

	item.SummaryOrigin = domain.SummaryOrigin(summaryOrigin)
	item.SourceClass = domain.SourceClass(sourceClass)
	item.Stage = domain.Stage(stage)
	item.PublishStatus = domain.PublishStatus(publishStat)

	for _, f := range []struct {
		raw string
		dst *time.Time
	}{
		{publishedAt, &item.PublishedAt},
		{publishedAtTS, &item.PublishedAtTS},
		{created, &item.CreatedAt},
		{updated, &item.UpdatedAt},
	} {
		ts, err := parseTime(f.raw)
		if err != nil {
			return domain.Item{}, fmt.Errorf("item %s: %w", item.ID, err)
		}
		*f.dst = ts
	}

	return item, nil
}

func itemValues(item domain.Item) []any {
	return []any{
		item.ID,
		item.Headline,
		item.RawSourceURL,
		formatTime(item.PublishedAt),
		item.SourceName,
		item.Byline,
		item.Description,
		item.ResolvedURL,
		item.ExtractedText,
		item.Extractor,
		item.Summary,
		string(item.SummaryOrigin),
		string(item.SourceClass),
		string(item.Stage),
		item.StageReason,
		item.StageAttempts,
		string(item.PublishStatus),
		item.PublishAttempts,
		formatTime(item.PublishedAtTS),
		item.PostRef,
		normalize.URLHash(item.RawSourceURL),
		normalize.URLHash(item.ResolvedURL),
		item.HeadlineKey(),
		formatTime(item.CreatedAt),
		formatTime(item.UpdatedAt),
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(raw string) (time.Time, error) {
	if raw == "" {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse time %q: %w", raw, err)
	}
	return ts, nil
}
