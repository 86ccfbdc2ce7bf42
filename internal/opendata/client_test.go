package opendata

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(limit int) *Client {
	c := NewClient("https://data.example/api/v1/dataset/abc?scope=resourceAquire", limit, 5*time.Second)
	httpmock.ActivateNonDefault(c.HTTP)
	return c
}

func pageBody(count int, records string) string {
	return fmt.Sprintf(`{"result":{"count":%d,"limit":2,"offset":0,"results":[%s]}}`, count, records)
}

func TestFetchAllSinglePage(t *testing.T) {
	c := newTestClient(2)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", `=~^https://data\.example/`,
		httpmock.NewStringResponder(http.StatusOK,
			pageBody(2, `{"編號":"1","機構名稱":"甲園"},{"編號":"2","機構名稱":"乙園"}`)))

	records, meta, err := c.FetchAll(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.NotNil(t, meta.ReportedCount)
	assert.Equal(t, 2, *meta.ReportedCount)
	assert.Equal(t, c.Base, meta.APIURL)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestFetchAllPagesUntilCount(t *testing.T) {
	c := newTestClient(1)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", `=~^https://data\.example/`,
		func(req *http.Request) (*http.Response, error) {
			if req.URL.Query().Get("offset") == "0" {
				return httpmock.NewStringResponse(http.StatusOK, `{"result":{"count":2,"limit":1,"offset":0,"results":[{"編號":"1"}]}}`), nil
			}
			return httpmock.NewStringResponse(http.StatusOK, `{"result":{"count":2,"limit":1,"offset":1,"results":[{"編號":"2"}]}}`), nil
		})

	records, meta, err := c.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, records, 2)
	// 元信息取自首页
	require.NotNil(t, meta.ReportedOffset)
	assert.Equal(t, 0, *meta.ReportedOffset)
	assert.Equal(t, 2, httpmock.GetTotalCallCount())
}

func TestFetchAllBadStatusIsFatal(t *testing.T) {
	c := newTestClient(2)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", `=~^https://data\.example/`,
		httpmock.NewStringResponder(http.StatusInternalServerError, "boom"))

	_, _, err := c.FetchAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad status")
}

func TestFetchAllEmptyPageStops(t *testing.T) {
	// 上游 count 虚高时靠空页兜底退出，而不是无限翻页
	c := newTestClient(2)
	defer httpmock.DeactivateAndReset()

	httpmock.RegisterResponder("GET", `=~^https://data\.example/`,
		httpmock.NewStringResponder(http.StatusOK, `{"result":{"count":999,"limit":2,"offset":0,"results":[]}}`))

	records, _, err := c.FetchAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, records)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestRecordAccessors(t *testing.T) {
	rec := Record{
		"編號":   "12",
		"機構名稱": " 某某托嬰中心 ",
		"_importdate": map[string]any{
			"date": "2025-12-15 10:17:58.487468", "timezone": "Asia/Taipei",
		},
	}
	no, ok := rec.No()
	require.True(t, ok)
	assert.Equal(t, 12, no)
	assert.Equal(t, "某某托嬰中心", rec.Name())
	require.NotNil(t, rec.Importdate())
	assert.Equal(t, "2025-12-15 10:17:58.487468", *rec.Importdate())

	assert.Nil(t, Record{}.Importdate())
	_, ok = Record{"編號": "x"}.No()
	assert.False(t, ok)
}

func TestYearGrades(t *testing.T) {
	rec := Record{
		"編號":    float64(3),
		"110年":  "乙",
		"111年":  " 甲 ",
		"114年":  nil,
		"備註":    "無",
		"1100年": "不符合樣式",
	}
	years := rec.YearGrades()
	assert.Equal(t, map[string]string{"110": "乙", "111": "甲", "114": ""}, years)
}
