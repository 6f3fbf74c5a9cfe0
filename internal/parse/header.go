package parse

import (
	"regexp"
	"strings"
)

var (
	unitSuffixRegex = regexp.MustCompile(`\s*\([^)]*\)$`)
	underscoreRuns  = regexp.MustCompile(`_+`)
)

// headerAliases maps normalized export headers to canonical field names.
var headerAliases = map[string]string{
	"注文番号":         "order_id",
	"注文id":         "order_id",
	"order_number": "order_id",
	"order_no":     "order_id",
	"orderid":      "order_id",
	"注文日":          "order_date",
	"購入日":          "order_date",
	"利用日":          "use_date",
	"取引日":          "use_date",
	"日付":           "date",
	"金額":           "amount",
	"合計":           "amount",
	"請求額":          "amount",
	"支払金額":         "amount",
	"total":        "amount",
	"price":        "amount",
	"内容":           "vendor",
	"店名":           "vendor",
	"支払先":          "vendor",
	"取引先":          "vendor",
	"merchant":     "vendor",
	"store":        "vendor",
	"経費id":         "expense_id",
	"明細id":         "expense_id",
	"商品名":          "item",
	"品名":           "item",
	"title":        "item",
	"メモ":           "memo",
	"備考":           "memo",
	"note":         "memo",
	"領収書":          "receipt",
	"証憑":           "receipt",
	"サイト":          "source",
	"pdf":          "pdf_path",
	"領収書pdf":       "pdf_path",
}

// NormalizeHeader canonicalizes a CSV or HTML table header.
func NormalizeHeader(h string) string {
	h = strings.TrimPrefix(h, "\ufeff")
	h = strings.TrimSpace(FoldWidth(h))
	h = unitSuffixRegex.ReplaceAllString(h, "")
	h = strings.ToLower(h)
	h = strings.NewReplacer(" ", "_", "-", "_", "　", "_").Replace(h)
	h = underscoreRuns.ReplaceAllString(h, "_")
	h = strings.Trim(h, "_")

	if alias, ok := headerAliases[h]; ok {
		return alias
	}
	return h
}

// NormalizeHeaders applies NormalizeHeader to every element.
func NormalizeHeaders(headers []string) []string {
	out := make([]string, len(headers))
	for i, h := range headers {
		out[i] = NormalizeHeader(h)
	}
	return out
}
