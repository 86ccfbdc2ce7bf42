package reconcile

import (
	"regexp"
	"strings"

	"daycare-map/internal/logger"
	"daycare-map/internal/metrics"
	"daycare-map/internal/opendata"
	"daycare-map/internal/snapshot"
	"daycare-map/internal/source"
)

// 底册遗留的单年度字段，形如「111-乙」；连字号接受半角与全角
var legacyGradeRe = regexp.MustCompile(`^(\d{3})\s*[-－]\s*(.+?)\s*$`)

// ParseLegacyGrade：解析遗留评鉴字段为 (年度, 等第)
func ParseLegacyGrade(s string) (string, string, bool) {
	m := legacyGradeRe.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return "", "", false
	}
	return m[1], strings.TrimSpace(m[2]), true
}

// MatchStrategy：远端记录命中方式
type MatchStrategy int

const (
	MatchNone MatchStrategy = iota
	MatchByNo
	MatchByName
)

// Index：API 记录的双键索引
// 背景：底册与数据集的主键不保证一致，先按編號精确匹配，再退化为名称精确匹配；
// 命中方式显式返回，便于统计与排查
type Index struct {
	byNo   map[int]opendata.Record
	byName map[string]opendata.Record
}

func NewIndex(records []opendata.Record) *Index {
	ix := &Index{
		byNo:   make(map[int]opendata.Record, len(records)),
		byName: make(map[string]opendata.Record, len(records)),
	}
	for _, rec := range records {
		if no, ok := rec.No(); ok {
			ix.byNo[no] = rec
		}
		if name := rec.Name(); name != "" {
			ix.byName[name] = rec
		}
	}
	return ix
}

// Match：两段式查找；未命中返回 (nil, MatchNone)
func (ix *Index) Match(id int, name string) (opendata.Record, MatchStrategy) {
	if rec, ok := ix.byNo[id]; ok {
		return rec, MatchByNo
	}
	if name != "" {
		if rec, ok := ix.byName[name]; ok {
			return rec, MatchByName
		}
	}
	return nil, MatchNone
}

// historyByID：从上一次文档提取 id→逐年评鉴，作为本轮合并的基线
func historyByID(existing *snapshot.Document) map[int]map[string]string {
	if existing == nil {
		return nil
	}
	out := make(map[int]map[string]string, len(existing.Centers))
	for _, c := range existing.Centers {
		if _, ok := out[c.ID]; ok {
			continue
		}
		if len(c.EvaluationByYear) > 0 {
			out[c.ID] = c.EvaluationByYear
		}
	}
	return out
}

// Input：一次合并的全部输入；Existing 可为 nil（无历史或历史损坏）
type Input struct {
	Centers  []source.BaseRecord
	Geo      map[int]source.GeoRecord
	Records  []opendata.Record
	Existing *snapshot.Document
}

// Result：合并产物；Centers 顺序与底册一致，Unmatched 为两段匹配均落空的底册 id
type Result struct {
	Centers   []snapshot.Center
	Unmatched []int
}

// Build：三源合并
// 不变式：逐年评鉴只增不减——历史文档为基线，底册遗留字段覆盖单一年度，
// API 年度列最后覆盖其提供的全部年度键；先前记录的 (年度,等第) 只会被同一年度
// 的新值替换，不会凭空消失
func Build(in Input) Result {
	ix := NewIndex(in.Records)
	history := historyByID(in.Existing)

	res := Result{Centers: make([]snapshot.Center, 0, len(in.Centers))}
	for _, c := range in.Centers {
		evalByYear := make(map[string]string)
		for yr, grade := range history[c.ID] {
			evalByYear[yr] = grade
		}
		if yr, grade, ok := ParseLegacyGrade(c.LegacyGrade); ok {
			evalByYear[yr] = grade
		}

		var importdate *string
		rec, how := ix.Match(c.ID, c.Name)
		switch how {
		case MatchNone:
			res.Unmatched = append(res.Unmatched, c.ID)
			logger.L().Debug("center_unmatched", "id", c.ID, "name", c.Name)
		case MatchByName:
			metrics.MatchByNameTotal.Inc()
			logger.L().Debug("center_match_by_name", "id", c.ID, "name", c.Name)
			fallthrough
		case MatchByNo:
			for yr, grade := range rec.YearGrades() {
				evalByYear[yr] = grade
			}
			importdate = rec.Importdate()
		}

		out := snapshot.Center{
			ID:               c.ID,
			Name:             c.Name,
			District:         c.District,
			Address:          c.Address,
			Phone:            c.Phone,
			CapacityApproved: c.CapacityApproved,
			CapacityCurrent:  c.CapacityCurrent,
			EvaluationByYear: evalByYear,
			SourceImportdate: importdate,
		}
		if geo, ok := in.Geo[c.ID]; ok {
			addr := geo.ResponseAddress
			out.ResponseAddress = &addr
			out.Lat = geo.Lat
			out.Lng = geo.Lng
		}
		res.Centers = append(res.Centers, out)
	}

	metrics.CentersEmitted.Set(float64(len(res.Centers)))
	metrics.UnmatchedCenters.Set(float64(len(res.Unmatched)))
	return res
}
