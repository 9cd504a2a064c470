// Package grid is the tabular-data layer the agent's query tools run over.
// Store fetches sheets from the backing database; Analyzer performs
// multi-operation analysis over one fetched sheet, reusing the fetched
// object across sub-operations through a short-TTL object cache.
package grid

// Column describes one sheet column.
type Column struct {
	Title string `json:"title"`
	Type  string `json:"type"`
}

// Row is one sheet row; cells map column titles to display values. Empty
// cells are absent from the map.
type Row struct {
	Number int               `json:"number"`
	Cells  map[string]string `json:"cells"`
}

// Sheet is a fully fetched sheet.
type Sheet struct {
	ID      int64    `json:"id"`
	Name    string   `json:"name"`
	Columns []Column `json:"columns"`
	Rows    []Row    `json:"rows"`
}
