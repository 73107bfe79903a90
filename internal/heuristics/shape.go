// Package heuristics supplies deterministic, explainable detection that
// supplements (not replaces) vision-model judgment: shift classification,
// missing-row recovery and key-value association checks. Pure functions,
// no I/O.
package heuristics

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/manikumarthati/extractionWithValidation/internal/schema"
)

// shape is the expected surface form of a cell value. Declared types drive
// it first; for string-typed columns the field name disambiguates (a
// "salary" column holds money even when declared as string).
type shape int

const (
	shapeText shape = iota
	shapeNumeric
	shapeCode // identifiers: alphanumeric with at least one digit
)

var numericNameHints = map[string]struct{}{
	"amount": {}, "cost": {}, "salary": {}, "rate": {}, "price": {},
	"total": {}, "fee": {}, "fees": {}, "tax": {}, "wage": {}, "wages": {},
	"balance": {}, "qty": {}, "quantity": {}, "percent": {},
}

var codeNameHints = map[string]struct{}{
	"id": {}, "code": {}, "ssn": {}, "number": {}, "no": {},
}

// expectedShape decides on the last token of the field name, so "tax_type"
// stays text while "benefit_cost" is money.
func expectedShape(f schema.Field) shape {
	if f.Type == schema.TypeNumber {
		return shapeNumeric
	}
	if f.Type != schema.TypeString {
		return shapeText
	}
	name := strings.ToLower(f.Path)
	if i := strings.LastIndexAny(name, "._"); i >= 0 {
		name = name[i+1:]
	}
	if _, ok := numericNameHints[name]; ok {
		return shapeNumeric
	}
	if _, ok := codeNameHints[name]; ok {
		return shapeCode
	}
	return shapeText
}

// matchesShape reports whether a non-null value plausibly belongs in a
// column of the given shape.
func matchesShape(v any, s shape) bool {
	if v == nil {
		return false
	}
	switch t := v.(type) {
	case float64, float32, int, int64:
		return s == shapeNumeric || s == shapeCode
	case bool:
		return false
	case string:
		str := strings.TrimSpace(t)
		if str == "" {
			return false
		}
		switch s {
		case shapeNumeric:
			return isNumericToken(str)
		case shapeCode:
			return containsDigit(str)
		default:
			return !isNumericToken(str)
		}
	default:
		return false
	}
}

// isNumericToken accepts plain numbers plus currency/percent-marked values
// ("$1,250.00", "2.5%", "-7.08").
func isNumericToken(tok string) bool {
	cleaned := strings.TrimSpace(tok)
	hadMarker := strings.ContainsAny(cleaned, "$%")
	cleaned = strings.NewReplacer("$", "", "%", "", ",", "").Replace(cleaned)
	if cleaned == "" {
		return false
	}
	if _, err := strconv.ParseFloat(cleaned, 64); err == nil {
		return true
	}
	return hadMarker && containsDigit(cleaned)
}

func hasCurrencyOrPercent(tok string) bool {
	return strings.ContainsAny(tok, "$%")
}

func containsDigit(s string) bool {
	for _, r := range s {
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}
