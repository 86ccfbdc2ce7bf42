// 包 metrics：单次运行的 Prometheus 指标；批处理无常驻端口，导出走 textfile collector
package metrics

import (
	"bytes"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
)

var (
	APIRequestsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "daycare_api_requests_total",
		Help: "Total resourceAquire page requests",
	})
	APIFailTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "daycare_api_fail_total",
		Help: "Total resourceAquire request failures",
	})
	APIRecordsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "daycare_api_records_total",
		Help: "Total records fetched from the dataset",
	})
	MatchByNameTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "daycare_match_by_name_total",
		Help: "Base rows matched to an API record by name fallback",
	})
	CentersEmitted = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "daycare_centers_emitted",
		Help: "Centers written to the snapshot in the last run",
	})
	UnmatchedCenters = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "daycare_unmatched_centers",
		Help: "Base rows with no API match in the last run",
	})
	RunChanged = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "daycare_run_changed",
		Help: "1 if the last run rewrote the snapshot, 0 otherwise",
	})
	RunDurationMs = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "daycare_run_duration_ms",
		Help: "Wall time of the last run in milliseconds",
	})
)

func init() {
	prometheus.MustRegister(APIRequestsTotal)
	prometheus.MustRegister(APIFailTotal)
	prometheus.MustRegister(APIRecordsTotal)
	prometheus.MustRegister(MatchByNameTotal)
	prometheus.MustRegister(CentersEmitted)
	prometheus.MustRegister(UnmatchedCenters)
	prometheus.MustRegister(RunChanged)
	prometheus.MustRegister(RunDurationMs)
}

// WriteTextfile：把已注册指标写为 node_exporter textfile collector 格式
// 背景：任务由 cron/Actions 触发后即退出，无法被抓取；落文件交由宿主侧 exporter 暴露
func WriteTextfile(path string) error {
	mfs, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	for _, mf := range mfs {
		if _, err := expfmt.MetricFamilyToText(&buf, mf); err != nil {
			return err
		}
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}
