package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestReadTableStripsBOM(t *testing.T) {
	p := writeFile(t, "a.csv", "\xEF\xBB\xBF序號,機構名稱\n1,甲園\n")
	rows, err := ReadTable(p)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	// BOM 不应黏在首列列名上
	assert.Equal(t, "1", rows[0]["序號"])
	assert.Equal(t, "甲園", rows[0]["機構名稱"])
}

func TestLoadCentersSkipsUnparseableID(t *testing.T) {
	p := writeFile(t, "centers.csv",
		"序號,機構名稱,行政區,地址,電話,核定收托人數,實際收托人數,評鑑結果\n"+
			"1,甲園,中正區,某路1號,02-1111,20,18,111-乙\n"+
			"x,壞行,中正區,某路2號,02-2222,10,9,\n"+
			"3, 丙園 ,大安區,某路3號,02-3333,30,25,\n")
	centers, err := LoadCenters(p)
	require.NoError(t, err)
	require.Len(t, centers, 2)
	assert.Equal(t, 1, centers[0].ID)
	assert.Equal(t, "111-乙", centers[0].LegacyGrade)
	assert.Equal(t, 3, centers[1].ID)
	assert.Equal(t, "丙園", centers[1].Name)
	assert.Equal(t, "30", centers[1].CapacityApproved)
}

func TestNormalizeLatLngSwaps(t *testing.T) {
	f := func(v float64) *float64 { return &v }

	// 经纬互换：|lat|>90 且 |lng|<=90 时交换
	lat, lng := NormalizeLatLng(f(121.5), f(25.0))
	assert.Equal(t, 25.0, *lat)
	assert.Equal(t, 121.5, *lng)

	// 正常值不动
	lat, lng = NormalizeLatLng(f(25.0), f(121.5))
	assert.Equal(t, 25.0, *lat)
	assert.Equal(t, 121.5, *lng)

	// 任一缺失不动
	lat, lng = NormalizeLatLng(nil, f(121.5))
	assert.Nil(t, lat)
	assert.Equal(t, 121.5, *lng)
}

func TestLoadGeo(t *testing.T) {
	p := writeFile(t, "xy.csv",
		"id,Response_Address,lat,lng\n"+
			"1,台北市信義區市府路1號,25.04,121.53\n"+
			"2,互換的行,121.5,25.0\n"+
			"3,壞坐標,abc,121.5\n"+
			"4,空坐標,,\n"+
			"0,非法id,25.0,121.5\n"+
			"x,非法id,25.0,121.5\n")
	geo, err := LoadGeo(p)
	require.NoError(t, err)
	require.Len(t, geo, 4)

	assert.Equal(t, 25.04, *geo[1].Lat)
	assert.Equal(t, 121.53, *geo[1].Lng)

	// 装载时即完成互换修正
	assert.Equal(t, 25.0, *geo[2].Lat)
	assert.Equal(t, 121.5, *geo[2].Lng)

	assert.Nil(t, geo[3].Lat)
	assert.Equal(t, 121.5, *geo[3].Lng)

	assert.Nil(t, geo[4].Lat)
	assert.Nil(t, geo[4].Lng)
	assert.Equal(t, "空坐標", geo[4].ResponseAddress)
}

func TestLoadGeoMissingFile(t *testing.T) {
	_, err := LoadGeo(filepath.Join(t.TempDir(), "nope.csv"))
	assert.Error(t, err)
}
