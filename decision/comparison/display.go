package comparison

// Partition groups rows by how many columns offer them.
type Partition struct {
	Shared  []Row `json:"shared"`
	Partial []Row `json:"partial"`
	None    []Row `json:"none"`
}

// Partition splits rows into those every entity offers, those only some
// offer, and those none offer. Each group keeps matrix row order.
func (m *Matrix) Partition() Partition {
	p := Partition{Shared: []Row{}, Partial: []Row{}, None: []Row{}}
	for _, row := range m.Rows {
		offered := 0
		for _, c := range row.Cells {
			if c.Offered() {
				offered++
			}
		}
		switch {
		case offered == 0:
			p.None = append(p.None, row)
		case offered == len(row.Cells):
			p.Shared = append(p.Shared, row)
		default:
			p.Partial = append(p.Partial, row)
		}
	}
	return p
}

// DifferencesOnly returns a copy of m keeping only rows whose cells are not
// all equal. The attribute universe of the copy lists the kept rows.
func (m *Matrix) DifferencesOnly() *Matrix {
	out := *m
	out.Rows = make([]Row, 0, len(m.Rows))
	out.AttributeUniverse = make([]string, 0, len(m.Rows))
	for _, row := range m.Rows {
		if rowDiffers(row) {
			out.Rows = append(out.Rows, row)
			out.AttributeUniverse = append(out.AttributeUniverse, row.Attribute)
		}
	}
	return &out
}

func rowDiffers(row Row) bool {
	for i := 1; i < len(row.Cells); i++ {
		a, b := row.Cells[0], row.Cells[i]
		if a.State != b.State || a.Value != b.Value {
			return true
		}
	}
	return false
}

// ColumnCoverage summarises how many rows one entity offers.
type ColumnCoverage struct {
	EntityID string  `json:"entity_id"`
	Offered  int     `json:"offered"`
	Total    int     `json:"total"`
	Ratio    float64 `json:"ratio"`
}

// Coverage reports, per column, the share of rows the entity offers.
func (m *Matrix) Coverage() []ColumnCoverage {
	cov := make([]ColumnCoverage, len(m.Columns))
	for c, col := range m.Columns {
		cov[c] = ColumnCoverage{EntityID: col.EntityID, Total: len(m.Rows)}
	}
	for _, row := range m.Rows {
		for c, cell := range row.Cells {
			if c < len(cov) && cell.Offered() {
				cov[c].Offered++
			}
		}
	}
	for c := range cov {
		if cov[c].Total > 0 {
			cov[c].Ratio = float64(cov[c].Offered) / float64(cov[c].Total)
		}
	}
	return cov
}
