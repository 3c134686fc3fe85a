package repository

import (
	"fmt"
	"strings"
	"time"

	"bazaars/internal/domain"
)

// sortableColumns lists the columns a caller may order by. All of them are
// indexed (or the primary key), so sorted pages stay answerable from an index.
var sortableColumns = map[string]bool{
	"id":         true,
	"price":      true,
	"status":     true,
	"created_at": true,
	"updated_at": true,
	"top_ad":     true,
}

// normalizeSort validates the requested ordering against the column whitelist.
// Anything unknown falls back to the default created_at ASC.
func normalizeSort(sortBy, order string) (string, string) {
	if !sortableColumns[sortBy] {
		sortBy = "created_at"
	}
	order = strings.ToUpper(order)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	return sortBy, order
}

// buildFilterClause renders filter as a WHERE clause with positional
// placeholders starting at argPos. It returns an empty clause when no filter
// field is set.
func buildFilterClause(filter domain.AdFilter, argPos int) (string, []interface{}) {
	var conds []string
	var args []interface{}

	add := func(format string, val interface{}) {
		conds = append(conds, fmt.Sprintf(format, argPos))
		args = append(args, val)
		argPos++
	}

	if filter.TitleContains != nil {
		add("title ILIKE $%d", "%"+*filter.TitleContains+"%")
	}
	if filter.DescriptionContains != nil {
		add("description ILIKE $%d", "%"+*filter.DescriptionContains+"%")
	}
	if filter.PriceLT != nil {
		add("price < $%d", *filter.PriceLT)
	}
	if filter.PriceGT != nil {
		add("price > $%d", *filter.PriceGT)
	}
	if filter.UpdatedAtLT != nil {
		add("updated_at < $%d", *filter.UpdatedAtLT)
	}
	if filter.UpdatedAtGT != nil {
		add("updated_at > $%d", *filter.UpdatedAtGT)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// buildFilterClauseLiteral renders filter as a WHERE clause with quoted
// literal values. DECLARE is a utility statement and cannot carry bind
// parameters, so the cursor path inlines its filter values.
func buildFilterClauseLiteral(filter domain.AdFilter) string {
	var conds []string

	if filter.TitleContains != nil {
		conds = append(conds, "title ILIKE "+quoteLiteral("%"+*filter.TitleContains+"%"))
	}
	if filter.DescriptionContains != nil {
		conds = append(conds, "description ILIKE "+quoteLiteral("%"+*filter.DescriptionContains+"%"))
	}
	if filter.PriceLT != nil {
		conds = append(conds, fmt.Sprintf("price < %v", *filter.PriceLT))
	}
	if filter.PriceGT != nil {
		conds = append(conds, fmt.Sprintf("price > %v", *filter.PriceGT))
	}
	if filter.UpdatedAtLT != nil {
		conds = append(conds, "updated_at < "+quoteTimestamp(*filter.UpdatedAtLT))
	}
	if filter.UpdatedAtGT != nil {
		conds = append(conds, "updated_at > "+quoteTimestamp(*filter.UpdatedAtGT))
	}

	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// quoteLiteral produces a single-quoted SQL string literal with embedded
// quotes doubled. Backslashes are doubled as well and the literal is prefixed
// with E so the escape handling does not depend on server settings.
func quoteLiteral(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, "'", "''")
	return "E'" + s + "'"
}

func quoteTimestamp(t time.Time) string {
	return "'" + t.UTC().Format("2006-01-02 15:04:05.999999") + "'::timestamp"
}
