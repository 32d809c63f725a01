package importer

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Canonical column names
const (
	ColTicker      = "Ticker"
	ColQuantity    = "Quantité"
	ColAcquisition = "Acquisition"
	ColCurrency    = "Devise"
	ColCategory    = "Catégorie"
	ColTargetLT    = "Objectif_LT"
	ColFactor      = "Facteur_Ajustement_FX"
	ColName        = "Nom"
)

var requiredColumns = []string{ColTicker, ColQuantity, ColAcquisition, ColCurrency}

var synonyms = map[string][]string{
	ColTicker:      {"Ticker", "Tickers"},
	ColQuantity:    {"Quantité", "Quantite", "Quantity"},
	ColAcquisition: {"Acquisition"},
	ColCurrency:    {"Devise", "Currency"},
	ColCategory:    {"Catégorie", "Categories", "Catégories", "category"},
	ColTargetLT:    {"Objectif_LT", "LT"},
	ColFactor:      {"H", "Facteur_Ajustement_FX"},
	ColName:        {"Nom", "Name"},
}

// headerKey folds case, whitespace and Unicode composition so that
// "Quantité" typed with a combining accent still matches.
func headerKey(s string) string {
	return strings.ToLower(strings.TrimSpace(norm.NFC.String(s)))
}

var lookup = func() map[string]string {
	m := make(map[string]string)
	for canonical, names := range synonyms {
		for _, n := range names {
			m[headerKey(n)] = canonical
		}
	}
	return m
}()

// schema maps canonical column names to their index in a row
type schema map[string]int

// mapHeader resolves the header once. The first matching column wins.
func mapHeader(header []string) (schema, error) {
	s := make(schema)
	for i, h := range header {
		canonical, ok := lookup[headerKey(strings.TrimPrefix(h, "\ufeff"))]
		if !ok {
			continue
		}
		if _, dup := s[canonical]; !dup {
			s[canonical] = i
		}
	}

	var missing []string
	for _, c := range requiredColumns {
		if _, ok := s[c]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Missing: missing}
	}
	return s, nil
}

// cell returns the trimmed value of column c, or "" when absent
func (s schema) cell(row []string, c string) string {
	i, ok := s[c]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
