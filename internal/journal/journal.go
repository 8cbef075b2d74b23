// Copyright (c) 2026 Keymaster Team
// Keymaster Pinentry - secure credential entry agent
// This source code is licensed under the MIT license found in the LICENSE file.

// Package journal keeps an optional record of served sessions: which verbs
// were issued and how each one ended. It never stores command arguments or
// anything a user typed.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/toeirei/keymaster-pinentry/internal/logging"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// ErrDisabled is returned by Open when no DSN is configured.
var ErrDisabled = errors.New("journal disabled")

var sqlOpenFunc = sql.Open

// Session is one served connection.
type Session struct {
	ID        string    `json:"id"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitempty"`
	Transport string    `json:"transport"`
	Outcome   string    `json:"outcome"`
	Events    []Event   `json:"events,omitempty"`
}

// Event is one command and its reply. Code is zero for OK.
type Event struct {
	SessionID string    `json:"-"`
	At        time.Time `json:"at"`
	Verb      string    `json:"verb"`
	Outcome   string    `json:"outcome"`
	Code      uint32    `json:"code,omitempty"`
}

type sessionModel struct {
	bun.BaseModel `bun:"table:pinentry_sessions"`
	ID            string       `bun:"id,pk"`
	StartedAt     time.Time    `bun:"started_at,notnull"`
	EndedAt       bun.NullTime `bun:"ended_at"`
	Transport     string       `bun:"transport"`
	Outcome       string       `bun:"outcome"`
}

type eventModel struct {
	bun.BaseModel `bun:"table:pinentry_events"`
	ID            int64     `bun:"id,pk,autoincrement"`
	SessionID     string    `bun:"session_id,notnull"`
	At            time.Time `bun:"at,notnull"`
	Verb          string    `bun:"verb"`
	Outcome       string    `bun:"outcome"`
	Code          int64     `bun:"code"`
}

// Journal is a bun-backed store. It is safe for concurrent use.
type Journal struct {
	db     *bun.DB
	dbType string
	now    func() time.Time
}

// Open connects to dsn with the driver for dbType (sqlite, postgres or
// mysql) and creates the tables if needed.
func Open(ctx context.Context, dbType, dsn string) (*Journal, error) {
	if dsn == "" {
		return nil, ErrDisabled
	}
	driverName, err := driverFor(dbType)
	if err != nil {
		return nil, err
	}
	sqlDB, err := sqlOpenFunc(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}
	if dbType == "sqlite" {
		// One writer; an in-memory database also lives only on one connection.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	}

	j := &Journal{db: createBunDB(sqlDB, dbType), dbType: dbType, now: time.Now}
	if err := j.migrate(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to prepare journal tables: %w", err)
	}
	logging.Debugf("journal: opened %s store", dbType)
	return j, nil
}

func driverFor(dbType string) (string, error) {
	switch dbType {
	case "sqlite", "mysql":
		return dbType, nil
	case "postgres":
		return "pgx", nil
	}
	return "", fmt.Errorf("unsupported journal type %q", dbType)
}

func createBunDB(sqlDB *sql.DB, dbType string) *bun.DB {
	switch dbType {
	case "postgres":
		return bun.NewDB(sqlDB, pgdialect.New())
	case "mysql":
		return bun.NewDB(sqlDB, mysqldialect.New())
	default:
		return bun.NewDB(sqlDB, sqlitedialect.New())
	}
}

func (j *Journal) migrate(ctx context.Context) error {
	for _, m := range []any{(*sessionModel)(nil), (*eventModel)(nil)} {
		if _, err := j.db.NewCreateTable().Model(m).IfNotExists().Exec(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// StartSession records a new session.
func (j *Journal) StartSession(ctx context.Context, id, transport string) error {
	m := &sessionModel{ID: id, StartedAt: j.now().UTC(), Transport: transport, Outcome: "open"}
	_, err := j.db.NewInsert().Model(m).Exec(ctx)
	return err
}

// RecordEvent appends one command outcome to its session.
func (j *Journal) RecordEvent(ctx context.Context, ev Event) error {
	at := ev.At
	if at.IsZero() {
		at = j.now()
	}
	m := &eventModel{
		SessionID: ev.SessionID,
		At:        at.UTC(),
		Verb:      ev.Verb,
		Outcome:   ev.Outcome,
		Code:      int64(ev.Code),
	}
	_, err := j.db.NewInsert().Model(m).Exec(ctx)
	return err
}

// EndSession stamps the end time and final outcome.
func (j *Journal) EndSession(ctx context.Context, id, outcome string) error {
	res, err := j.db.NewUpdate().
		Model((*sessionModel)(nil)).
		Set("ended_at = ?", j.now().UTC()).
		Set("outcome = ?", outcome).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("unknown session %s", id)
	}
	return nil
}

// Recent returns the latest n sessions, newest first, with their events.
// n <= 0 returns all sessions.
func (j *Journal) Recent(ctx context.Context, n int) ([]Session, error) {
	var sm []sessionModel
	q := j.db.NewSelect().Model(&sm).OrderExpr("started_at DESC, id DESC")
	if n > 0 {
		q = q.Limit(n)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	if len(sm) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(sm))
	for _, s := range sm {
		ids = append(ids, s.ID)
	}
	var em []eventModel
	err := j.db.NewSelect().Model(&em).
		Where("session_id IN (?)", bun.In(ids)).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string][]Event, len(sm))
	for _, e := range em {
		byID[e.SessionID] = append(byID[e.SessionID], eventFromModel(e))
	}

	out := make([]Session, 0, len(sm))
	for _, s := range sm {
		sess := Session{
			ID:        s.ID,
			StartedAt: s.StartedAt,
			Transport: s.Transport,
			Outcome:   s.Outcome,
			Events:    byID[s.ID],
		}
		if !s.EndedAt.IsZero() {
			sess.EndedAt = s.EndedAt.Time
		}
		out = append(out, sess)
	}
	return out, nil
}

func eventFromModel(e eventModel) Event {
	return Event{
		SessionID: e.SessionID,
		At:        e.At,
		Verb:      e.Verb,
		Outcome:   e.Outcome,
		Code:      uint32(e.Code),
	}
}
