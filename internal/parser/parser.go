// Package parser turns bank SMS notifications into candidate transactions.
//
// Parsing is keyword based: an amount anchored on the "مبلغ" marker and a
// direction taken from two disjoint keyword sets. Dates are never read from
// the text; the caller supplies them.
package parser

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"

	"github.com/prudhvinik1/smsledger/internal/models"
)

const (
	ReasonMissingFields    = "could not extract required fields"
	ReasonNonPositive      = "amount must be positive"
	ReasonUnknownDirection = "could not determine transaction direction"
)

// ParseError is returned for any text that cannot become a candidate transaction.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return "parse failure: " + e.Reason
}

// IsParseError reports whether err is a parse failure and returns its reason.
func IsParseError(err error) (string, bool) {
	var pe *ParseError
	if errors.As(err, &pe) {
		return pe.Reason, true
	}
	return "", false
}

// amount marker, optional colon, optional currency code, then the number
var amountPattern = regexp.MustCompile(`مبلغ\s*:?\s*(?:[A-Za-z]{3}\s*)?(\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:\.\d+)?)`)

var (
	receivedKeywords = []string{
		"إضافة تحويل",
		"إيداع",
		"ايداع",
		"استرداد",
		"حوالة واردة",
		"تحويل وارد",
		"استلام",
	}
	sentKeywords = []string{
		"سحب",
		"خصم",
		"حوالة صادرة",
		"تحويل صادر",
		"شراء",
		"دفع",
	}
)

// Arabic-Indic and Eastern Arabic-Indic digits plus the Arabic separators.
var digitReplacer = strings.NewReplacer(
	"٠", "0", "١", "1", "٢", "2", "٣", "3", "٤", "4",
	"٥", "5", "٦", "6", "٧", "7", "٨", "8", "٩", "9",
	"۰", "0", "۱", "1", "۲", "2", "۳", "3", "۴", "4",
	"۵", "5", "۶", "6", "۷", "7", "۸", "8", "۹", "9",
	"٫", ".", "٬", ",",
)

// Parse extracts amount and direction from rawText. suppliedDate is passed
// through untouched. The same input always yields the same result.
func Parse(rawText string, suppliedDate time.Time) (models.ParsedTransaction, error) {
	text := normalize(rawText)

	amount, err := extractAmount(text)
	if err != nil {
		return models.ParsedTransaction{}, err
	}

	txType, ok := classify(text)
	if !ok {
		return models.ParsedTransaction{}, &ParseError{Reason: ReasonUnknownDirection}
	}

	return models.ParsedTransaction{
		Amount: amount,
		Type:   txType,
		Date:   suppliedDate,
	}, nil
}

func normalize(s string) string {
	return digitReplacer.Replace(norm.NFKC.String(s))
}

// extractAmount uses the first marker occurrence only.
func extractAmount(text string) (decimal.Decimal, error) {
	m := amountPattern.FindStringSubmatch(text)
	if m == nil {
		return decimal.Zero, &ParseError{Reason: ReasonMissingFields}
	}

	amount, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return decimal.Zero, &ParseError{Reason: ReasonMissingFields}
	}
	if !amount.IsPositive() {
		return decimal.Zero, &ParseError{Reason: ReasonNonPositive}
	}
	return amount, nil
}

// classify checks the received set before the sent set.
func classify(text string) (models.TransactionType, bool) {
	if containsAny(text, receivedKeywords) {
		return models.TransactionReceived, true
	}
	if containsAny(text, sentKeywords) {
		return models.TransactionSent, true
	}
	return "", false
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, norm.NFKC.String(kw)) {
			return true
		}
	}
	return false
}
