// Package eventlog persists committed ledger events in a SQL database so they
// survive restarts and can be paged by cursor.
package eventlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"gemfarm/core/types"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	defaultPageSize = 100
	maxPageSize     = 1000
)

// Log is a gorm-backed event journal.
type Log struct {
	db *gorm.DB
}

// Open connects to the configured driver and migrates the schema.
func Open(driver, dsn string) (*Log, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("eventlog: unsupported driver %q", driver)
	}
	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("eventlog: open %s: %w", driver, err)
	}
	return New(db)
}

// New wraps an existing connection.
func New(db *gorm.DB) (*Log, error) {
	if db == nil {
		return nil, fmt.Errorf("eventlog: database required")
	}
	if err := AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("eventlog: migrate: %w", err)
	}
	return &Log{db: db}, nil
}

// DB exposes the underlying connection.
func (l *Log) DB() *gorm.DB { return l.db }

// Close releases the connection pool.
func (l *Log) Close() error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toModel(record types.EventRecord) (Event, error) {
	id, err := uuid.Parse(record.ID)
	if err != nil {
		id = uuid.New()
	}
	attrs, err := json.Marshal(record.Attributes)
	if err != nil {
		return Event{}, err
	}
	return Event{
		ID:         id,
		Sequence:   record.Sequence,
		Operation:  record.Operation,
		Type:       record.Type,
		Farm:       record.Attributes["farm"],
		Attributes: string(attrs),
		Timestamp:  record.Timestamp,
	}, nil
}

func (e Event) record() (types.EventRecord, error) {
	attrs := map[string]string{}
	if e.Attributes != "" {
		if err := json.Unmarshal([]byte(e.Attributes), &attrs); err != nil {
			return types.EventRecord{}, err
		}
	}
	return types.EventRecord{
		ID:         e.ID.String(),
		Sequence:   e.Sequence,
		Cursor:     strconv.FormatUint(e.Sequence, 10),
		Operation:  e.Operation,
		Type:       e.Type,
		Attributes: attrs,
		Timestamp:  e.Timestamp,
	}, nil
}

// Append stores records in a single transaction.
func (l *Log) Append(ctx context.Context, records []types.EventRecord) error {
	if len(records) == 0 {
		return nil
	}
	rows := make([]Event, 0, len(records))
	for _, record := range records {
		row, err := toModel(record)
		if err != nil {
			return fmt.Errorf("eventlog: encode %s: %w", record.Type, err)
		}
		rows = append(rows, row)
	}
	return l.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(&rows).Error
	})
}

// LastSequence returns the highest stored sequence, or zero for an empty log.
func (l *Log) LastSequence(ctx context.Context) (uint64, error) {
	var last Event
	err := l.db.WithContext(ctx).Order("sequence desc").Limit(1).Take(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return last.Sequence, nil
}

// Query filters a page of events.
type Query struct {
	After uint64
	Type  string
	Farm  string
	Limit int
}

// List returns events after the cursor in sequence order.
func (l *Log) List(ctx context.Context, q Query) ([]types.EventRecord, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	tx := l.db.WithContext(ctx).Where("sequence > ?", q.After)
	if q.Type != "" {
		tx = tx.Where("type = ?", q.Type)
	}
	if q.Farm != "" {
		tx = tx.Where("farm = ?", q.Farm)
	}
	var rows []Event
	if err := tx.Order("sequence asc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]types.EventRecord, 0, len(rows))
	for _, row := range rows {
		record, err := row.record()
		if err != nil {
			return nil, fmt.Errorf("eventlog: decode %d: %w", row.Sequence, err)
		}
		out = append(out, record)
	}
	return out, nil
}

// LookupIdempotency returns the stored response for key.
func (l *Log) LookupIdempotency(ctx context.Context, key string) (*IdempotencyKey, bool, error) {
	var record IdempotencyKey
	err := l.db.WithContext(ctx).First(&record, "key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return &record, true, nil
}

// RememberIdempotency stores the response for a keyed request. A concurrent
// writer of the same key wins.
func (l *Log) RememberIdempotency(ctx context.Context, record *IdempotencyKey) error {
	if record == nil || record.Key == "" {
		return nil
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	return l.db.WithContext(ctx).Create(record).Error
}
