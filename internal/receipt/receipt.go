// Package receipt pulls the billed total out of receipt PDFs so a
// reconciled pair can be checked against the document on file.
package receipt

import (
	"bytes"
	"fmt"
	"regexp"

	"github.com/ledongthuc/pdf"
	"github.com/shopspring/decimal"

	"github.com/firefly-engineering/skillctl/internal/parse"
)

// totalLabels are searched in priority order. Latin labels match
// case-insensitively and not as the tail of a longer word ("Subtotal").
var totalLabels = compileLabels(
	"ご請求額",
	"ご請求金額",
	"請求金額",
	"grand total",
	"order total",
	"合計金額",
	"合計",
	"total",
)

type totalLabel struct {
	re    *regexp.Regexp
	latin bool
}

func compileLabels(labels ...string) []totalLabel {
	out := make([]totalLabel, len(labels))
	for i, l := range labels {
		out[i] = totalLabel{re: regexp.MustCompile(`(?i)` + regexp.QuoteMeta(l)), latin: isLatin(l)}
	}
	return out
}

var amountAfterLabel = regexp.MustCompile(`^[\s:：]*(?:\(税込\)|（税込）)?[\s:：]*([△▲\-−]?\s*[¥￥$]?\s*(?:[0-9０-９]{1,3}(?:[,，][0-9０-９]{3})+|[0-9０-９]+)(?:\.[0-9]+)?\s*円?)`)

// ExtractText returns the plain text of every page in the PDF.
func ExtractText(path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	content, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract text from %s: %w", path, err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(content); err != nil {
		return "", fmt.Errorf("failed to read text from %s: %w", path, err)
	}
	return buf.String(), nil
}

// FindTotal locates the amount following the highest-priority total label.
// When a label occurs more than once the last occurrence wins, since
// receipts list line items before the grand total.
func FindTotal(text string) (decimal.Decimal, bool) {
	for _, label := range totalLabels {
		var found decimal.Decimal
		ok := false

		for _, loc := range label.re.FindAllStringIndex(text, -1) {
			start, end := loc[0], loc[1]
			if label.latin && start > 0 && isLetter(text[start-1]) {
				continue
			}
			m := amountAfterLabel.FindStringSubmatch(text[end:])
			if m == nil {
				continue
			}
			amount, err := parse.ParseAmount(m[1])
			if err != nil {
				continue
			}
			found, ok = amount, true
		}

		if ok {
			return found, true
		}
	}
	return decimal.Decimal{}, false
}

// TotalFromFile extracts the text of path and runs FindTotal over it.
func TotalFromFile(path string) (decimal.Decimal, bool, error) {
	text, err := ExtractText(path)
	if err != nil {
		return decimal.Decimal{}, false, err
	}
	total, ok := FindTotal(text)
	return total, ok, nil
}

func isLatin(s string) bool {
	return s != "" && s[0] < 0x80
}

func isLetter(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z')
}
