package paysign

import (
	"sort"
	"strings"
)

// canonicalString собирает строку для подписи: параметры без полей подписи и без пустых
// значений, отсортированные по ключу и склеенные как k=v через '&'.
func canonicalString(params map[string]string, excludeKeys ...string) string {
	excluded := make(map[string]struct{}, len(excludeKeys))
	for _, k := range excludeKeys {
		excluded[k] = struct{}{}
	}

	keys := make([]string, 0, len(params))
	for k, v := range params {
		if _, skip := excluded[k]; skip || v == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}
	return strings.Join(pairs, "&")
}
