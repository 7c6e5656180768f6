package utils

import (
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var printer = message.NewPrinter(language.English)

// FormatCount groups thousands: 12345 -> "12,345".
func FormatCount[T ~int | ~int64 | ~uint64](n T) string {
	return printer.Sprintf("%d", n)
}

// FormatQty prints a quantity without trailing zeros: 4 -> "4", 1.50 -> "1.5".
func FormatQty(q float64) string {
	return strconv.FormatFloat(q, 'f', -1, 64)
}

// FormatPercent prints a percentage the way the dashboard shows it.
func FormatPercent(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}

// FormatDateTime renders a time in the shop's timestamp layout, empty for zero values.
func FormatDateTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("2006-01-02 15:04:05")
}

// HumanizeSlug turns "variable-product-part" into "Variable Product Part".
func HumanizeSlug(slug string) string {
	words := strings.Fields(strings.ReplaceAll(slug, "-", " "))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
