package opendata

import (
	"fmt"
	"regexp"
	"strings"
)

// 年度列名形如「114年」；三位数字为民国年，作为年度键
var yearColRe = regexp.MustCompile(`^(\d{3})年$`)

// YearGrades：扫描记录的全部字段名，抽取 年度→评鉴等第
// 背景：上游按年追加「NNN年」列，模式匹配而非固定字段列表；值统一转字符串并去空白，
// null 视为空串保留键
func (r Record) YearGrades() map[string]string {
	years := make(map[string]string)
	for k, v := range r {
		m := yearColRe.FindStringSubmatch(strings.TrimSpace(k))
		if m == nil {
			continue
		}
		grade := ""
		if v != nil {
			grade = strings.TrimSpace(fmt.Sprint(v))
		}
		years[m[1]] = grade
	}
	return years
}
