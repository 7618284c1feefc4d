// Package sqlstore keeps slots in a sqlite or libSQL table.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"slotwatch/internal/components/assert"
	"slotwatch/internal/components/chrono"
	"slotwatch/internal/components/telemetry"
	"slotwatch/internal/slots"
	"slotwatch/pkg/migrations"
	"strings"

	_ "embed"
)

//go:embed schema.sql
var Schema string

const (
	report_store_lookup = "store.lookup"
	report_store_put    = "store.put"
	report_store_list   = "store.list"
)

// sqlite limits the number of bound parameters per statement.
const lookupChunk = 500

type Store struct {
	db   *sql.DB
	time chrono.API
	tel  telemetry.API
}

// Open opens (and creates if needed) the slot table at path, see migrations.OpenDB for what
// path may be.
func Open(path string, time chrono.API, tel telemetry.API) (Store, error) {
	db, err := migrations.OpenAndMigrateDB(Schema, path)
	if err != nil {
		return Store{}, err
	}
	return NewStore(db, time, tel), nil
}

func NewStore(db *sql.DB, time chrono.API, tel telemetry.API) Store {
	assert.NotNil(db)
	assert.NotNil(time)
	assert.NotNil(tel)

	return Store{
		db:   db,
		time: time,
		tel:  telemetry.NewScopedAPI("sqlstore", tel),
	}
}

func (s Store) Close() error {
	return s.db.Close()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func (s Store) Lookup(ctx context.Context, ids []string) (slots.Lookup, error) {
	var out slots.Lookup
	for chunk := range slices.Chunk(ids, lookupChunk) {
		args := make([]any, len(chunk))
		for i, id := range chunk {
			args[i] = id
		}

		rows, err := s.db.QueryContext(
			ctx,
			fmt.Sprintf("SELECT timeslot FROM timeslot WHERE timeslot IN (%s)", placeholders(len(chunk))),
			args...,
		)
		if err != nil {
			s.tel.ReportBroken(report_store_lookup, err, len(chunk))
			return slots.Lookup{}, err
		}
		for rows.Next() {
			var id string
			err = rows.Scan(&id)
			if err != nil {
				rows.Close()
				s.tel.ReportBroken(report_store_lookup, err)
				return slots.Lookup{}, err
			}
			out.Confirmed = append(out.Confirmed, id)
		}
		err = rows.Close()
		if err == nil {
			err = rows.Err()
		}
		if err != nil {
			s.tel.ReportBroken(report_store_lookup, err)
			return slots.Lookup{}, err
		}
	}
	slices.Sort(out.Confirmed)
	return out, nil
}

func (s Store) Put(ctx context.Context, ids []string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		s.tel.ReportBroken(report_store_put, fmt.Errorf("begin tx: %w", err))
		return err
	}
	defer tx.Rollback()

	now := s.time.Now().Unix()
	for _, id := range ids {
		_, err = tx.ExecContext(
			ctx,
			"INSERT INTO timeslot (timeslot, created_at) VALUES (?, ?) ON CONFLICT (timeslot) DO NOTHING",
			id, now,
		)
		if err != nil {
			s.tel.ReportBroken(report_store_put, err, id)
			return err
		}
	}

	err = tx.Commit()
	if err != nil {
		s.tel.ReportBroken(report_store_put, fmt.Errorf("commit: %w", err))
		return err
	}
	return nil
}

func (s Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT timeslot FROM timeslot ORDER BY timeslot")
	if err != nil {
		s.tel.ReportBroken(report_store_list, err)
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var id string
		err = rows.Scan(&id)
		if err != nil {
			s.tel.ReportBroken(report_store_list, err)
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
