package normalize

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// currencySymbols maps a leading symbol to its ISO code.
var currencySymbols = map[string]string{
	"$": "USD",
	"€": "EUR",
	"£": "GBP",
	"¥": "JPY",
}

// currencyCodes are ISO codes recognized as a prefix or suffix of a value.
var currencyCodes = map[string]bool{
	"USD": true, "EUR": true, "GBP": true, "JPY": true,
	"CAD": true, "AUD": true, "CHF": true, "SEK": true, "NOK": true, "DKK": true,
}

// ParseValue parses extracted value text into a number and an optional
// currency code. Accepts thousands separators, a currency symbol or ISO code
// prefix/suffix, and accountant-style negatives: "(1,234.50)" and "1234.50-".
// The returned currency is "" when the text carries no currency marker.
func ParseValue(text string) (float64, string, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return 0, "", eris.New("normalize: empty value")
	}

	currency := ""

	for sym, code := range currencySymbols {
		if strings.HasPrefix(s, sym) {
			currency = code
			s = strings.TrimSpace(strings.TrimPrefix(s, sym))
			break
		}
	}
	for code := range currencyCodes {
		if strings.HasPrefix(s, code+" ") || s == code {
			currency = code
			s = strings.TrimSpace(strings.TrimPrefix(s, code))
			break
		}
		if strings.HasSuffix(s, " "+code) {
			currency = code
			s = strings.TrimSpace(strings.TrimSuffix(s, code))
			break
		}
	}

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}
	if strings.HasSuffix(s, "-") {
		neg = true
		s = strings.TrimSpace(strings.TrimSuffix(s, "-"))
	}

	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, "", eris.Errorf("normalize: no numeric content in %q", text)
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, "", eris.Wrapf(err, "normalize: parse value %q", text)
	}
	if neg {
		v = -v
	}
	return v, currency, nil
}
