// 包 opendata：data.taipei resourceAquire 数据集客户端，按 limit/offset 分页拉全量
package opendata

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"daycare-map/internal/logger"
	"daycare-map/internal/metrics"
	"daycare-map/internal/version"
)

// DefaultBase：评鉴结果数据集的 resourceAquire 端点
const DefaultBase = "https://data.taipei/api/v1/dataset/43c0bdc5-ddb0-40bf-accd-a096d8c5ac23?scope=resourceAquire"

// DefaultLimit：单页条数；数据集规模为数百条，一两页即可取完
const DefaultLimit = 1000

// Record：API 单条记录
// 背景：上游字段集不固定（逐年新增「NNN年」列），以开放映射承接，字段取用走访问器
type Record map[string]any

// API 记录中的固定字段名
const (
	fieldNo         = "編號"
	fieldName       = "機構名稱"
	fieldImportdate = "_importdate"
)

// FetchMeta：首页返回的分页元信息，原样保留供输出文档与日志使用
type FetchMeta struct {
	APIURL         string
	ReportedCount  *int
	ReportedLimit  *int
	ReportedOffset *int
}

// 响应包络：{ result: { count, limit, offset, results: [...] } }
type page struct {
	Result struct {
		Count   any      `json:"count"`
		Limit   any      `json:"limit"`
		Offset  any      `json:"offset"`
		Results []Record `json:"results"`
	} `json:"result"`
}

// Client：分页拉取客户端；HTTP 超时固定，不做重试（失败整体终止由上层处理）
type Client struct {
	Base  string
	Limit int
	HTTP  *http.Client
}

func NewClient(base string, limit int, timeout time.Duration) *Client {
	if base == "" {
		base = DefaultBase
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Client{Base: base, Limit: limit, HTTP: &http.Client{Timeout: timeout}}
}

// toInt：JSON 数值/数字字符串到 int 的宽松转换
func toInt(v any) (int, bool) {
	switch x := v.(type) {
	case float64:
		return int(x), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		if err != nil {
			return 0, false
		}
		return n, true
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

func intPtr(v any) *int {
	if n, ok := toInt(v); ok {
		return &n
	}
	return nil
}

// fetchPage：单页请求；非 200 视为硬错误
func (c *Client) fetchPage(ctx context.Context, offset int) (*page, error) {
	u := fmt.Sprintf("%s&limit=%d&offset=%d", c.Base, c.Limit, offset)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "taipei-daycare-map/"+version.Version+" (+github-actions)")
	metrics.APIRequestsTotal.Inc()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		metrics.APIFailTotal.Inc()
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		metrics.APIFailTotal.Inc()
		return nil, fmt.Errorf("bad status %d", resp.StatusCode)
	}
	var p page
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil {
		metrics.APIFailTotal.Inc()
		return nil, err
	}
	return &p, nil
}

// FetchAll：顺序翻页直到累计条数达到服务端报告的 count
// 约束：首页的 count/limit/offset 作为元信息返回；任一页失败即整体失败，不跳页；
// 空页提前终止，防止上游 count 异常导致死循环
func (c *Client) FetchAll(ctx context.Context) ([]Record, FetchMeta, error) {
	var out []Record
	meta := FetchMeta{APIURL: c.Base}
	offset := 0
	for {
		p, err := c.fetchPage(ctx, offset)
		if err != nil {
			return nil, meta, err
		}
		if offset == 0 {
			meta.ReportedCount = intPtr(p.Result.Count)
			meta.ReportedLimit = intPtr(p.Result.Limit)
			meta.ReportedOffset = intPtr(p.Result.Offset)
		}
		out = append(out, p.Result.Results...)
		metrics.APIRecordsTotal.Add(float64(len(p.Result.Results)))
		logger.L().Debug("fetch_page", "offset", offset, "page_records", len(p.Result.Results), "total", len(out))
		count, ok := toInt(p.Result.Count)
		if !ok || len(out) >= count {
			break
		}
		if len(p.Result.Results) == 0 {
			logger.L().Warn("fetch_empty_page", "offset", offset, "reported_count", count, "got", len(out))
			break
		}
		offset += c.Limit
	}
	return out, meta, nil
}

// No：记录的整数編號；缺失或非数字返回 false
func (r Record) No() (int, bool) {
	return toInt(r[fieldNo])
}

// Name：记录的機構名稱（去空白）
func (r Record) Name() string {
	s, _ := r[fieldName].(string)
	return strings.TrimSpace(s)
}

// Importdate：_importdate.date 字段
// 样例：{"date":"2025-12-15 10:17:58.487468","timezone":"Asia/Taipei",...}
func (r Record) Importdate() *string {
	m, ok := r[fieldImportdate].(map[string]any)
	if !ok {
		return nil
	}
	d, ok := m["date"].(string)
	if !ok || d == "" {
		return nil
	}
	return &d
}
