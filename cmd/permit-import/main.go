// Command permit-import loads the permit export into the database and tells
// running servers to drop cached nearby results.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/mohammed-shakir/food-facility-search/internal/core/config"
	"github.com/mohammed-shakir/food-facility-search/internal/db"
	"github.com/mohammed-shakir/food-facility-search/internal/importer"
	"github.com/mohammed-shakir/food-facility-search/internal/invalidation"
	"github.com/mohammed-shakir/food-facility-search/internal/logger"
	"github.com/mohammed-shakir/food-facility-search/internal/permits"
)

func main() {
	os.Exit(run())
}

func run() int {
	file := flag.String("file", "", "permit export (.csv or .xlsx)")
	publish := flag.Bool("publish", true, "publish an invalidation event when INVALIDATION_ENABLED=true")
	flag.Parse()

	_ = config.LoadDotEnv()
	cfg := config.FromEnv()

	runID := uuid.NewString()
	zl := logger.Build(logger.Config{
		Level:     cfg.LogLevel,
		Console:   strings.ToLower(os.Getenv("LOG_CONSOLE")) == "true",
		Service:   "food-facility-search",
		Component: "permit-import",
	}, os.Stdout)
	zl = zl.With().Str("run_id", runID).Logger()
	log := logger.NewSlog(&zl)

	if *file == "" {
		fmt.Fprintln(os.Stderr, "usage: permit-import -file <export.csv|export.xlsx>")
		return 2
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	start := time.Now()
	ps, st, err := importer.ReadFile(*file)
	if err != nil {
		log.Error("read export failed", "err", err, "file", *file)
		return 1
	}
	log.Info("export parsed", "file", *file, "rows", st.Rows, "skipped", st.Skipped, "permits", len(ps))

	h, err := db.Open(ctx, cfg.DB)
	if err != nil {
		log.Error("open db failed", "err", err)
		return 1
	}
	defer func() { _ = h.Close() }()

	n, err := permits.NewStore(h.Gorm).Upsert(ctx, ps)
	if err != nil {
		log.Error("upsert failed", "err", err)
		return 1
	}
	log.Info("permits upserted", "count", n, "duration", time.Since(start))

	if !*publish || !cfg.Invalidation.Enabled {
		return 0
	}
	pub, err := invalidation.NewPublisher(cfg.Invalidation.Brokers, cfg.Invalidation.Topic)
	if err != nil {
		log.Error("invalidation publisher failed", "err", err)
		return 1
	}
	defer func() { _ = pub.Close() }()

	ev := invalidation.NewEvent(invalidation.OpRefresh, "permit-import/"+runID, n)
	if err := pub.Publish(ctx, ev); err != nil {
		log.Error("publish invalidation failed", "err", err)
		return 1
	}
	log.Info("invalidation published", "topic", cfg.Invalidation.Topic, "op", ev.Op)
	return 0
}
