package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"storewatch/internal/modkit"
	"storewatch/internal/modkit/module"
	"storewatch/internal/platform/config"
	"storewatch/internal/platform/logger"
	"storewatch/internal/platform/store"

	reportsmod "storewatch/internal/services/reports/module"
)

func mustSetEnv(key, val string) {
	if val != "" {
		_ = os.Setenv(key, val)
	}
}

func main() {
	root := config.New()
	dbCfg := root.Prefix("SERVICE_PGSQL_")

	l := logger.Get()

	st, err := store.Open(context.Background(), store.Config{
		AppName: "storewatch-worker",
		PG: store.PGConfig{
			Enabled:     true,
			URL:         dbCfg.MustString("DBURL"),
			MaxConns:    int32(dbCfg.MayInt("MAX_CONNS", 4)),
			SlowQueryMs: dbCfg.MayInt("SLOW_MS", 500),
			LogSQL:      dbCfg.MayBool("LOG_SQL", false),
		},
	}, store.WithLogger(*l))
	if err != nil {
		l.Panic().Err(err).Msg("store.Open failed")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			l.Error().Err(err).Msg("failed to close store")
		}
	}()

	var (
		fConc    = flag.Int("concurrency", 8, "per-report store computation workers")
		fBatch   = flag.Int("batch", 1, "jobs leased per queue poll")
		fDataDir = flag.String("data_dir", "", "artifact root directory")
	)
	flag.Parse()

	deps := modkit.Deps{
		Cfg: root,
		PG:  st.PG,
		Log: *l,
	}

	// Export as env so the module can also read via FromConfig
	mustSetEnv("REPORTS_WORKER_CONCURRENCY", fmt.Sprintf("%d", *fConc))
	mustSetEnv("REPORTS_QUEUE_TAKE_BATCH", fmt.Sprintf("%d", *fBatch))
	mustSetEnv("REPORTS_DATA_DIR", *fDataDir)

	mod := reportsmod.New(deps, reportsmod.Options{
		Concurrency:    *fConc,
		QueueTakeBatch: *fBatch,
		DataDir:        *fDataDir,
	})
	module.Register(mod.Name(), mod.Ports())

	ports := module.MustPortsOf[reportsmod.Ports](mod)

	if err := ports.Runner.RunLoop(context.Background()); err != nil {
		l.Fatal().Err(err).Msg("reports runner stopped")
	}
}
