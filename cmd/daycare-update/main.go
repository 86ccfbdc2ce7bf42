// 程序入口：一次性刷新任务——门控、装载、拉取、合并、落盘；设计为由 cron/GitHub Actions 触发
package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"daycare-map/internal/logger"
	"daycare-map/internal/metrics"
	"daycare-map/internal/migrate"
	"daycare-map/internal/opendata"
	"daycare-map/internal/reconcile"
	"daycare-map/internal/snapshot"
	"daycare-map/internal/source"
	"daycare-map/internal/store"
	"daycare-map/internal/utils"

	"github.com/joho/godotenv"
)

// 退出码：0 成功或无需执行；2 底册 CSV 缺失；1 其他致命错误
const (
	exitOK          = 0
	exitFatal       = 1
	exitMissingBase = 2
)

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envIntOr(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func main() {
	_ = godotenv.Load(".env")
	l := logger.Setup()
	start := time.Now()
	now := start.In(reconcile.Taipei)

	outPath := envOr("OUTPUT_JSON", "data.json")
	centersCSV := envOr("CENTERS_CSV", "臺北市準公共化托嬰中心.csv")
	xyCSV := envOr("XY_CSV", "XY Data.csv")
	apiBase := envOr("API_BASE", opendata.DefaultBase)
	pageLimit := envIntOr("API_PAGE_LIMIT", opendata.DefaultLimit)
	timeout := time.Duration(envIntOr("API_TIMEOUT_SEC", 60)) * time.Second
	interval := envIntOr("UPDATE_INTERVAL_DAYS", reconcile.DefaultIntervalDays)
	force := os.Getenv("FORCE_UPDATE") == "1"

	existing := snapshot.Load(outPath)
	if !reconcile.ShouldRun(existing, force, now, interval) {
		l.Info("gate_skip", "interval_days", interval, "last", existing.Meta.LastSuccessfulUpdate)
		os.Exit(exitOK)
	}

	if _, err := os.Stat(centersCSV); err != nil {
		l.Error("centers_csv_missing", "path", centersCSV)
		os.Exit(exitMissingBase)
	}
	centers, err := source.LoadCenters(centersCSV)
	if err != nil {
		l.Error("centers_csv_error", "path", centersCSV, "err", err)
		os.Exit(exitFatal)
	}
	l.Info("centers_loaded", "rows", len(centers))

	geo := map[int]source.GeoRecord{}
	if _, err := os.Stat(xyCSV); err == nil {
		geo, err = source.LoadGeo(xyCSV)
		if err != nil {
			l.Error("xy_csv_error", "path", xyCSV, "err", err)
			os.Exit(exitFatal)
		}
		l.Info("geo_loaded", "rows", len(geo))
	} else {
		l.Warn("xy_csv_missing", "path", xyCSV)
	}

	client := opendata.NewClient(apiBase, pageLimit, timeout)
	records, fmeta, err := client.FetchAll(context.Background())
	if err != nil {
		l.Error("fetch_error", "err", err)
		os.Exit(exitFatal)
	}
	l.Info("fetch_done", "records", len(records))

	res := reconcile.Build(reconcile.Input{
		Centers:  centers,
		Geo:      geo,
		Records:  records,
		Existing: existing,
	})

	unmatchedMeta := res.Unmatched
	if len(unmatchedMeta) > 50 {
		// meta 里只留前 50 个，完整清单看日志；总数单独记录
		unmatchedMeta = unmatchedMeta[:50]
	}
	if res.Unmatched == nil {
		unmatchedMeta = []int{}
	}
	nowISO := now.Format(time.RFC3339)
	doc := &snapshot.Document{
		Meta: snapshot.Meta{
			Source:               apiBase,
			FetchedAt:            nowISO,
			LastSuccessfulUpdate: nowISO,
			UpdateIntervalDays:   interval,
			APIReportedCount:     fmeta.ReportedCount,
			Notes:                snapshot.DefaultNotes,
			UnmatchedCenterIDs:   unmatchedMeta,
			UnmatchedCount:       len(res.Unmatched),
		},
		Centers: res.Centers,
	}

	changed, err := snapshot.Write(outPath, doc)
	if err != nil {
		l.Error("write_error", "path", outPath, "err", err)
		os.Exit(exitFatal)
	}
	if changed {
		metrics.RunChanged.Set(1)
		l.Info("write_done", "path", outPath, "centers", len(res.Centers),
			"api_records", len(records), "unmatched", len(res.Unmatched))
	} else {
		metrics.RunChanged.Set(0)
		l.Info("write_nochange", "path", outPath)
	}

	if os.Getenv("ARCHIVE_TO_DB") == "true" {
		archive(now, doc, changed)
	}

	metrics.RunDurationMs.Set(float64(time.Since(start).Milliseconds()))
	if p := os.Getenv("METRICS_TEXTFILE"); p != "" {
		if err := metrics.WriteTextfile(p); err != nil {
			l.Error("metrics_write_error", "path", p, "err", err)
		}
	}
	os.Exit(exitOK)
}

// archive：把本轮结果同步进 Postgres 归档库
// 约束：归档失败只记日志，不影响退出码；JSON 文件才是权威产物
func archive(now time.Time, doc *snapshot.Document, changed bool) {
	l := logger.L()
	db, err := utils.OpenPostgresFromEnv()
	if err != nil {
		l.Error("archive_open_error", "err", err)
		return
	}
	defer db.Close()
	if err := migrate.EnsureSchema(db); err != nil {
		l.Error("archive_schema_error", "err", err)
		return
	}
	st := store.AttachDB(db)
	ctx := context.Background()
	if err := st.RecordRun(ctx, now, doc, changed); err != nil {
		l.Error("archive_run_error", "err", err)
	}
	if err := st.UpsertCenters(ctx, doc.Centers); err != nil {
		l.Error("archive_centers_error", "err", err)
	}
	l.Info("archive_done", "centers", len(doc.Centers))
}
