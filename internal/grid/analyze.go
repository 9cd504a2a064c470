package grid

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gridagent/gridagent/internal/cache"
)

// FetchFunc loads a complete sheet by id.
type FetchFunc func(ctx context.Context, id int64) (*Sheet, error)

// AnalyzeRequest selects the operations to run over one sheet.
type AnalyzeRequest struct {
	SheetID      int64
	Operations   []string // summary, columns, stats, filter, count, sample, all
	FilterColumn string
	FilterValue  string
	FilterType   string // contains (default), equals, starts_with, ends_with
	GroupBy      string
}

// Analyzer performs several read-only operations against the same fetched
// sheet in a single call, fetching the sheet data once and reusing it across
// sub-operations within a user turn via the object cache.
type Analyzer struct {
	sheets *cache.ObjectCache[*Sheet]
	fetch  FetchFunc
	logger *zap.Logger
}

// NewAnalyzer builds an Analyzer. A non-positive ttl falls back to the
// object-cache default; a nil logger is replaced with a no-op.
func NewAnalyzer(fetch FetchFunc, ttl time.Duration, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{
		sheets: cache.NewObjectCache[*Sheet](ttl),
		fetch:  fetch,
		logger: logger.With(zap.String("component", "analyzer")),
	}
}

// Analyze fetches the sheet (cached) and runs every requested operation,
// returning one combined formatted report.
func (a *Analyzer) Analyze(ctx context.Context, req AnalyzeRequest) (string, error) {
	ops, err := normalizeOps(req.Operations)
	if err != nil {
		return "", err
	}

	sheet, err := a.sheets.GetOrFetch(ctx, req.SheetID, a.fetch)
	if err != nil {
		return "", fmt.Errorf("fetch sheet %d: %w", req.SheetID, err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Analysis: %s\n", sheet.Name)
	b.WriteString(strings.Repeat("=", 60) + "\n\n")

	for _, op := range ops {
		switch op {
		case "summary":
			writeSummary(&b, sheet)
		case "columns":
			writeColumns(&b, sheet)
		case "stats":
			writeStats(&b, sheet)
		case "filter":
			writeFilter(&b, sheet, req)
		case "count":
			writeCount(&b, sheet, req.GroupBy)
		case "sample":
			writeSample(&b, sheet)
		}
	}

	return b.String(), nil
}

func normalizeOps(ops []string) ([]string, error) {
	if len(ops) == 0 {
		return []string{"summary"}, nil
	}

	known := map[string]bool{
		"summary": true, "columns": true, "stats": true,
		"filter": true, "count": true, "sample": true,
	}

	var out []string
	for _, op := range ops {
		op = strings.ToLower(strings.TrimSpace(op))
		if op == "" {
			continue
		}
		if op == "all" {
			out = append(out, "summary", "columns", "stats")
			continue
		}
		if !known[op] {
			return nil, fmt.Errorf("unknown operation %q", op)
		}
		out = append(out, op)
	}
	if len(out) == 0 {
		out = []string{"summary"}
	}
	return out, nil
}

// resolveColumn finds a column by name: exact match first, then substring
// match in either direction.
func resolveColumn(sheet *Sheet, name string) (Column, bool) {
	if name == "" {
		return Column{}, false
	}
	lower := strings.ToLower(name)
	for _, col := range sheet.Columns {
		if strings.ToLower(col.Title) == lower {
			return col, true
		}
	}
	for _, col := range sheet.Columns {
		title := strings.ToLower(col.Title)
		if strings.Contains(title, lower) || strings.Contains(lower, title) {
			return col, true
		}
	}
	return Column{}, false
}

func columnTitles(sheet *Sheet) string {
	titles := make([]string, len(sheet.Columns))
	for i, col := range sheet.Columns {
		titles[i] = col.Title
	}
	return strings.Join(titles, ", ")
}

func writeSummary(b *strings.Builder, sheet *Sheet) {
	b.WriteString("## Summary\n")
	fmt.Fprintf(b, "- Total Rows: %d\n", len(sheet.Rows))
	fmt.Fprintf(b, "- Total Columns: %d\n", len(sheet.Columns))

	typeCounts := make(map[string]int)
	var typeOrder []string
	for _, col := range sheet.Columns {
		if typeCounts[col.Type] == 0 {
			typeOrder = append(typeOrder, col.Type)
		}
		typeCounts[col.Type]++
	}
	parts := make([]string, len(typeOrder))
	for i, t := range typeOrder {
		parts[i] = fmt.Sprintf("%s(%d)", t, typeCounts[t])
	}
	fmt.Fprintf(b, "- Column Types: %s\n\n", strings.Join(parts, ", "))
}

func writeColumns(b *strings.Builder, sheet *Sheet) {
	b.WriteString("## Columns\n")
	for i, col := range sheet.Columns {
		fmt.Fprintf(b, "%d. %s (%s)\n", i+1, col.Title, col.Type)
	}
	b.WriteString("\n")
}

func writeStats(b *strings.Builder, sheet *Sheet) {
	b.WriteString("## Column Statistics\n")
	for _, col := range sheet.Columns {
		filled := 0
		for _, row := range sheet.Rows {
			if strings.TrimSpace(row.Cells[col.Title]) != "" {
				filled++
			}
		}
		pct := 0.0
		if len(sheet.Rows) > 0 {
			pct = float64(filled) / float64(len(sheet.Rows)) * 100
		}
		bar := strings.Repeat("#", int(pct/10))
		fmt.Fprintf(b, "- %s: %.0f%% filled %s\n", col.Title, pct, bar)
	}
	b.WriteString("\n")
}

func writeFilter(b *strings.Builder, sheet *Sheet, req AnalyzeRequest) {
	if req.FilterColumn == "" || req.FilterValue == "" {
		b.WriteString("## Filter\nSkipped: filter column and filter value required\n\n")
		return
	}

	col, ok := resolveColumn(sheet, req.FilterColumn)
	if !ok {
		fmt.Fprintf(b, "## Filter\nColumn %q not found. Available: %s\n\n", req.FilterColumn, columnTitles(sheet))
		return
	}

	filterType := req.FilterType
	if filterType == "" {
		filterType = "contains"
	}
	fmt.Fprintf(b, "## Filter: %s %s '%s'\n", col.Title, filterType, req.FilterValue)

	var matches []Row
	for _, row := range sheet.Rows {
		if matchesFilter(row.Cells[col.Title], req.FilterValue, filterType) {
			matches = append(matches, row)
		}
	}

	fmt.Fprintf(b, "Found %d matching rows\n", len(matches))
	for i, row := range matches {
		if i == 10 {
			fmt.Fprintf(b, "  ... and %d more\n", len(matches)-10)
			break
		}
		fmt.Fprintf(b, "  Row %d: %s\n", row.Number, formatRow(sheet, row))
	}
	b.WriteString("\n")
}

func matchesFilter(cellValue, filterValue, filterType string) bool {
	cell := strings.ToLower(cellValue)
	want := strings.ToLower(filterValue)
	switch filterType {
	case "equals":
		return cell == want
	case "starts_with":
		return strings.HasPrefix(cell, want)
	case "ends_with":
		return strings.HasSuffix(cell, want)
	default: // contains
		return strings.Contains(cell, want)
	}
}

func writeCount(b *strings.Builder, sheet *Sheet, groupBy string) {
	if groupBy == "" {
		b.WriteString("## Count by Column\nSkipped: group-by column required\n\n")
		return
	}

	col, ok := resolveColumn(sheet, groupBy)
	if !ok {
		fmt.Fprintf(b, "## Count\nColumn %q not found. Available: %s\n\n", groupBy, columnTitles(sheet))
		return
	}

	fmt.Fprintf(b, "## Count by: %s\n", col.Title)

	counts := make(map[string]int)
	for _, row := range sheet.Rows {
		value := row.Cells[col.Title]
		if value == "" {
			value = "(empty)"
		}
		counts[value]++
	}

	values := make([]string, 0, len(counts))
	for v := range counts {
		values = append(values, v)
	}
	sort.Slice(values, func(i, j int) bool {
		if counts[values[i]] != counts[values[j]] {
			return counts[values[i]] > counts[values[j]]
		}
		return values[i] < values[j]
	})

	total := len(sheet.Rows)
	for _, value := range values {
		count := counts[value]
		pct := 0.0
		if total > 0 {
			pct = float64(count) / float64(total) * 100
		}
		bar := strings.Repeat("#", int(pct/5))
		fmt.Fprintf(b, "  %s: %d (%.1f%%) %s\n", value, count, pct, bar)
	}
	b.WriteString("\n")
}

func writeSample(b *strings.Builder, sheet *Sheet) {
	b.WriteString("## Sample Data (First 5 Rows)\n")
	for i, row := range sheet.Rows {
		if i == 5 {
			break
		}
		fmt.Fprintf(b, "Row %d: %s\n", row.Number, formatRow(sheet, row))
	}
	b.WriteString("\n")
}

// formatRow renders non-empty cells in column order.
func formatRow(sheet *Sheet, row Row) string {
	var parts []string
	for _, col := range sheet.Columns {
		if value := row.Cells[col.Title]; value != "" {
			parts = append(parts, fmt.Sprintf("%s: %s", col.Title, value))
		}
	}
	return strings.Join(parts, " | ")
}

// FormatSheet renders a complete sheet as the text returned by the
// sheet-fetch query tool, capped at maxRows data rows.
func FormatSheet(sheet *Sheet, maxRows int) string {
	if maxRows <= 0 {
		maxRows = 1000
	}
	shown := len(sheet.Rows)
	if shown > maxRows {
		shown = maxRows
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Sheet: %s\n", sheet.Name)
	fmt.Fprintf(&b, "Total Rows: %d (showing %d)\n", len(sheet.Rows), shown)
	fmt.Fprintf(&b, "Columns: %s\n\n", columnTitles(sheet))

	if shown > 0 {
		b.WriteString("Data:\n")
		for _, row := range sheet.Rows[:shown] {
			fmt.Fprintf(&b, "  Row %d: %s\n", row.Number, formatRow(sheet, row))
		}
	}
	return b.String()
}
