// 包 source：本地 CSV 数据源装载，包含底册名单与地理编码表
package source

import (
	"bytes"
	"encoding/csv"
	"math"
	"os"
	"strconv"
	"strings"

	"daycare-map/internal/logger"
)

// 底册 CSV 的列名（与上游导出文件保持一致，繁体）
const (
	ColID               = "序號"
	ColName             = "機構名稱"
	ColDistrict         = "行政區"
	ColAddress          = "地址"
	ColPhone            = "電話"
	ColCapacityApproved = "核定收托人數"
	ColCapacityCurrent  = "實際收托人數"
	ColLegacyGrade      = "評鑑結果"
)

// 地理编码 CSV 的列名
const (
	ColGeoID      = "id"
	ColGeoAddress = "Response_Address"
	ColGeoLat     = "lat"
	ColGeoLng     = "lng"
)

// BaseRecord：底册一行，ID 已解析为整数
type BaseRecord struct {
	ID               int
	Name             string
	District         string
	Address          string
	Phone            string
	CapacityApproved string
	CapacityCurrent  string
	LegacyGrade      string
}

// GeoRecord：地理编码一行；坐标解析失败或为 NaN 时置 nil
type GeoRecord struct {
	ResponseAddress string
	Lat             *float64
	Lng             *float64
}

// ReadTable：读取带表头的 CSV 为 列名→值 的行序列
// 约束：容忍 UTF-8 BOM 前缀与行尾列数不齐；短行缺失的列不出现在映射中
func ReadTable(path string) ([]map[string]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	b = bytes.TrimPrefix(b, []byte{0xEF, 0xBB, 0xBF})
	r := csv.NewReader(bytes.NewReader(b))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	header := rows[0]
	out := make([]map[string]string, 0, len(rows)-1)
	for _, rec := range rows[1:] {
		m := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				m[col] = rec[i]
			}
		}
		out = append(out, m)
	}
	return out, nil
}

// parseID：宽松整数解析，失败返回 false
func parseID(s string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, false
	}
	return n, true
}

// LoadCenters：装载底册名单
// 约束：序號无法解析为整数的行静默丢弃（不计入未匹配统计）；其余字段原样去空白保留
func LoadCenters(path string) ([]BaseRecord, error) {
	rows, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	out := make([]BaseRecord, 0, len(rows))
	for _, r := range rows {
		id, ok := parseID(r[ColID])
		if !ok {
			logger.L().Debug("center_row_skip", "raw_id", r[ColID])
			continue
		}
		out = append(out, BaseRecord{
			ID:               id,
			Name:             strings.TrimSpace(r[ColName]),
			District:         strings.TrimSpace(r[ColDistrict]),
			Address:          strings.TrimSpace(r[ColAddress]),
			Phone:            strings.TrimSpace(r[ColPhone]),
			CapacityApproved: strings.TrimSpace(r[ColCapacityApproved]),
			CapacityCurrent:  strings.TrimSpace(r[ColCapacityCurrent]),
			LegacyGrade:      strings.TrimSpace(r[ColLegacyGrade]),
		})
	}
	return out, nil
}

// parseCoord：解析单个坐标，空串/非数字/NaN 均视为缺失
func parseCoord(s string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(v) {
		return nil
	}
	return &v
}

// NormalizeLatLng：修正上游地理编码表的经纬度互换缺陷
// 背景：部分行 lat 填了 121.x、lng 填了 25.x；当 |lat|>90 且 |lng|<=90 时交换，
// 其余情况原样返回；任一缺失则不动
func NormalizeLatLng(lat, lng *float64) (*float64, *float64) {
	if lat == nil || lng == nil {
		return lat, lng
	}
	if math.Abs(*lat) > 90 && math.Abs(*lng) <= 90 {
		return lng, lat
	}
	return lat, lng
}

// LoadGeo：装载地理编码表为 id→GeoRecord
// 约束：id 缺失、非整数或非正值的行跳过；该文件整体缺失由调用方按“无地理数据”降级
func LoadGeo(path string) (map[int]GeoRecord, error) {
	rows, err := ReadTable(path)
	if err != nil {
		return nil, err
	}
	out := make(map[int]GeoRecord, len(rows))
	for _, r := range rows {
		id, ok := parseID(r[ColGeoID])
		if !ok || id <= 0 {
			continue
		}
		lat := parseCoord(r[ColGeoLat])
		lng := parseCoord(r[ColGeoLng])
		lat, lng = NormalizeLatLng(lat, lng)
		out[id] = GeoRecord{
			ResponseAddress: strings.TrimSpace(r[ColGeoAddress]),
			Lat:             lat,
			Lng:             lng,
		}
	}
	return out, nil
}
