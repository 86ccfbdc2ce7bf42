// 包 reconcile：合并三个数据源并维护逐年评鉴历史；含运行节流门控
package reconcile

import (
	"strings"
	"time"

	"daycare-map/internal/snapshot"
)

// DefaultIntervalDays：两次成功更新之间的最小间隔
const DefaultIntervalDays = 10

// Taipei：固定 +08:00 时区
// 背景：任务跑在 UTC 的 runner 上，而文档时间戳按台北时间记录；不依赖系统 tzdata
var Taipei = time.FixedZone("UTC+8", 8*60*60)

// parseLast：解析文档中记录的上次成功更新时间
// 约束：接受 T 或空格分隔；无时区偏移时按 +08:00 解释；可带小数秒
func parseLast(s string) (time.Time, bool) {
	s = strings.Replace(strings.TrimSpace(s), " ", "T", 1)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	for _, layout := range []string{"2006-01-02T15:04:05.999999999", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, Taipei); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ShouldRun：决定本次是否执行刷新
// 背景：纯时间判定，不做任何 I/O；existing 为上一次输出文档（可为 nil）
// 约束：强制标志、无历史文档、无时间戳或时间戳损坏时一律放行（坏状态宁可多跑，
// 不可卡死）；否则距上次成功更新满 intervalDays 天才放行
func ShouldRun(existing *snapshot.Document, force bool, now time.Time, intervalDays int) bool {
	if force {
		return true
	}
	if existing == nil {
		return true
	}
	last := existing.Meta.LastSuccessfulUpdate
	if last == "" {
		return true
	}
	lastAt, ok := parseLast(last)
	if !ok {
		return true
	}
	if intervalDays <= 0 {
		intervalDays = DefaultIntervalDays
	}
	return now.In(Taipei).Sub(lastAt) >= time.Duration(intervalDays)*24*time.Hour
}
