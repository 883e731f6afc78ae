package export

// Column describes one exported field.
type Column struct {
	Key   string
	Label string
	// Width is a relative PDF column weight; zero means 1.
	Width float64
}

// Table is tabular export content keyed by column key.
type Table struct {
	Columns []Column
	Rows    []map[string]string
}

func (t Table) labels() []string {
	out := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		out[i] = col.Label
		if out[i] == "" {
			out[i] = col.Key
		}
	}
	return out
}

func (t Table) record(row map[string]string) []string {
	out := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		out[i] = row[col.Key]
	}
	return out
}
