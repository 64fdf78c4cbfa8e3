//go:build integration_pg
// +build integration_pg

package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"storewatch/internal/modkit"
	"storewatch/internal/platform/config"
	"storewatch/internal/platform/logger"
	"storewatch/internal/platform/store"

	dom "storewatch/internal/services/reports/domain"

	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func startPostgres(t *testing.T) (dsn string, stop func()) {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)

	req := tc.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "postgres",
			"POSTGRES_PASSWORD": "postgres",
			"POSTGRES_DB":       "postgres",
		},
		WaitingFor: wait.ForAll(
			wait.ForListeningPort("5432/tcp"),
			wait.ForLog("database system is ready to accept connections"),
		).WithDeadline(2 * time.Minute),
	}
	c, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		cancel()
		t.Fatalf("failed to start postgres container: %v", err)
	}

	host, err := c.Host(ctx)
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("failed to get container host: %v", err)
	}
	mapped, err := c.MappedPort(ctx, "5432/tcp")
	if err != nil {
		_ = c.Terminate(context.Background())
		cancel()
		t.Fatalf("failed to get mapped port: %v", err)
	}

	dsn = fmt.Sprintf("postgres://postgres:postgres@%s:%s/postgres?sslmode=disable", host, mapped.Port())
	stop = func() {
		_ = c.Terminate(context.Background())
		cancel()
	}
	return dsn, stop
}

func openStore(t *testing.T, ctx context.Context, dsn string) *store.Store {
	t.Helper()
	st, err := store.Open(ctx, store.Config{
		AppName: "storewatch-it",
		PG:      store.PGConfig{Enabled: true, URL: dsn},
	}, store.WithLogger(*logger.Get()))
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = st.Close(context.Background()) })
	return st
}

func applySchema(t *testing.T, ctx context.Context, st *store.Store) {
	t.Helper()
	ddl, err := os.ReadFile("../../../../db/schema.sql")
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if _, err := st.PG.Exec(ctx, string(ddl)); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
}

func seedCorpus(t *testing.T, ctx context.Context, st *store.Store) {
	t.Helper()
	stmts := []string{
		// s1: single active poll right at the anchor minute; 24x7 (no hours rows)
		`INSERT INTO store_status (store_id, status, ts_utc) VALUES ('s1', 'active', '2024-10-14 12:00:00 UTC')`,
		`INSERT INTO store_timezones (store_id, timezone_str) VALUES ('s1', 'UTC')`,
		// s2: known to the universe but has no polls, so it is excluded
		`INSERT INTO store_timezones (store_id, timezone_str) VALUES ('s2', 'America/Chicago')`,
	}
	for _, q := range stmts {
		if _, err := st.PG.Exec(ctx, q); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
}

func TestReportLifecycle_Integration(t *testing.T) {
	dsn, stop := startPostgres(t)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	st := openStore(t, ctx, dsn)
	applySchema(t, ctx, st)
	seedCorpus(t, ctx, st)

	svc := New(modkit.Deps{Cfg: config.New(), PG: st.PG}, Config{
		Concurrency: 2,
		DataDir:     t.TempDir(),
	})

	// trigger is idempotent while a run is active
	first, err := svc.Trigger(ctx, dom.TriggerArgs{})
	if err != nil {
		t.Fatalf("trigger: %v", err)
	}
	if first.Status != dom.StatusPending || first.Existing {
		t.Fatalf("first trigger: %+v", first)
	}
	second, err := svc.Trigger(ctx, dom.TriggerArgs{})
	if err != nil {
		t.Fatalf("second trigger: %v", err)
	}
	if !second.Existing || second.ReportID != first.ReportID {
		t.Fatalf("second trigger must reuse the active run: %+v vs %+v", second, first)
	}

	// exactly one queued job for the run
	jobs, err := svc.repo.LeaseJobs(ctx, "it-worker", 5, time.Hour)
	if err != nil {
		t.Fatalf("lease: %v", err)
	}
	if len(jobs) != 1 || jobs[0].ReportID != first.ReportID {
		t.Fatalf("leased jobs: %+v", jobs)
	}

	// a second worker sees nothing while the lease is held
	if more, err := svc.repo.LeaseJobs(ctx, "other", 5, time.Hour); err != nil || len(more) != 0 {
		t.Fatalf("lease not exclusive: %v %v", more, err)
	}

	if err := svc.Run(ctx, jobs[0]); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := svc.repo.CompleteJob(ctx, jobs[0].JobID); err != nil {
		t.Fatalf("ack: %v", err)
	}

	// status is Complete with a public URL
	res, err := svc.Status(ctx, first.ReportID)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if res.Status != dom.StatusComplete {
		t.Fatalf("status = %s, want COMPLETE", res.Status)
	}
	wantURL := "/files/reports/" + first.ReportID + ".csv"
	if res.URL != wantURL {
		t.Fatalf("url = %q, want %q", res.URL, wantURL)
	}

	// artifact content: header plus s1 only; one poll carries the whole window
	raw, err := os.ReadFile(svc.ArtifactPath(first.ReportID + ".csv"))
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("artifact lines: %q", lines)
	}
	if lines[0] != "store_id,uptime_last_hour,uptime_last_day,uptime_last_week,"+
		"downtime_last_hour,downtime_last_day,downtime_last_week" {
		t.Fatalf("header = %q", lines[0])
	}
	if lines[1] != "s1,60,24.00,168.00,0,0.00,0.00" {
		t.Fatalf("row = %q", lines[1])
	}

	// redelivery after completion is a no-op
	if err := svc.Run(ctx, jobs[0]); err != nil {
		t.Fatalf("redelivered run: %v", err)
	}

	// a fresh trigger starts a new run once the previous one is terminal
	third, err := svc.Trigger(ctx, dom.TriggerArgs{})
	if err != nil {
		t.Fatalf("third trigger: %v", err)
	}
	if third.Existing || third.ReportID == first.ReportID {
		t.Fatalf("third trigger should start a new run: %+v", third)
	}
}

func TestReportGuards_Integration(t *testing.T) {
	dsn, stop := startPostgres(t)
	defer stop()

	ctx, cancel := context.WithTimeout(context.Background(), 90*time.Second)
	defer cancel()

	st := openStore(t, ctx, dsn)
	applySchema(t, ctx, st)

	svc := New(modkit.Deps{Cfg: config.New(), PG: st.PG}, Config{DataDir: t.TempDir()})
	r := svc.repo

	if err := r.InsertReport(ctx, "rep-1"); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// PENDING -> RUNNING only once
	if ok, err := r.MarkRunning(ctx, "rep-1"); err != nil || !ok {
		t.Fatalf("first MarkRunning: %v %v", ok, err)
	}
	if ok, _ := r.MarkRunning(ctx, "rep-1"); ok {
		t.Fatalf("second MarkRunning must not match")
	}

	// RUNNING -> COMPLETE; terminal states reject further transitions
	if ok, err := r.MarkComplete(ctx, "rep-1", "file:///tmp/rep-1.csv"); err != nil || !ok {
		t.Fatalf("MarkComplete: %v %v", ok, err)
	}
	if ok, _ := r.MarkFailed(ctx, "rep-1", "nope"); ok {
		t.Fatalf("MarkFailed must not touch a COMPLETE report")
	}

	rep, err := r.GetReport(ctx, "rep-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rep.Status != dom.StatusComplete || rep.ArtifactRef != "file:///tmp/rep-1.csv" {
		t.Fatalf("report = %+v", rep)
	}
}
