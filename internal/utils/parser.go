package utils

import (
	"strings"
	"unicode"
)

// NormalizeQuery 规范化搜索词：去掉控制字符，合并连续空白
func NormalizeQuery(query string) string {
	query = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, query)
	return strings.Join(strings.Fields(query), " ")
}

// QueryKey 搜索缓存使用的键，大小写不敏感
func QueryKey(query string) string {
	return strings.ToLower(NormalizeQuery(query))
}
