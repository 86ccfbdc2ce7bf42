// 包 snapshot：输出文档的结构定义与读写；仅在内容变化时落盘，减少无意义提交
package snapshot

import (
	"bytes"
	"encoding/json"
	"os"

	"daycare-map/internal/logger"
)

// Meta：文档级元信息，记录来源、时间戳与未匹配统计
// 约束：字段顺序即序列化顺序；前端与归档均依赖这些键名
type Meta struct {
	Source               string `json:"source"`
	FetchedAt            string `json:"fetched_at"`
	LastSuccessfulUpdate string `json:"last_successful_update"`
	UpdateIntervalDays   int    `json:"update_interval_days"`
	APIReportedCount     *int   `json:"api_reported_count"`
	Notes                string `json:"notes"`
	UnmatchedCenterIDs   []int  `json:"unmatched_center_ids_in_base_list"`
	UnmatchedCount       int    `json:"unmatched_count"`
}

// Center：单一托婴中心的合并结果
// 背景：evaluation_by_year 的键为三位民国年字符串；encoding/json 对 map 键做升序输出，
// 与历史文档保持字节级稳定
type Center struct {
	ID               int               `json:"id"`
	Name             string            `json:"name"`
	District         string            `json:"district"`
	Address          string            `json:"address"`
	Phone            string            `json:"phone"`
	CapacityApproved string            `json:"capacity_approved"`
	CapacityCurrent  string            `json:"capacity_current"`
	ResponseAddress  *string           `json:"response_address"`
	Lat              *float64          `json:"lat"`
	Lng              *float64          `json:"lng"`
	EvaluationByYear map[string]string `json:"evaluation_by_year"`
	SourceImportdate *string           `json:"source_importdate"`
}

// Document：一次运行产出的完整快照
type Document struct {
	Meta    Meta     `json:"meta"`
	Centers []Center `json:"centers"`
}

// DefaultNotes：meta.notes 的固定说明文字
const DefaultNotes = "evaluation_by_year uses Minguo year as string keys, e.g. '114'. Values like '優/甲/乙/丙/已歇業/...' are kept as-is."

// Encode：确定性序列化
// 约束：两空格缩进、不做 HTML 转义、结尾追加换行；数组顺序保持输入顺序
func Encode(doc *Document) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Load：读取既有快照
// 背景：文件缺失或内容损坏都按“无历史”处理（返回 nil），由门控与合并层自行降级；
// 不把坏状态当作致命错误
func Load(path string) *Document {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		logger.L().Warn("snapshot_parse_error", "path", path, "err", err)
		return nil
	}
	return &doc
}

// Write：仅在序列化结果与磁盘现状不同才写入
// 返回：是否发生写入；调用方据此决定日志与归档行为
func Write(path string, doc *Document) (bool, error) {
	data, err := Encode(doc)
	if err != nil {
		return false, err
	}
	if old, err := os.ReadFile(path); err == nil && bytes.Equal(old, data) {
		return false, nil
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return false, err
	}
	return true, nil
}
