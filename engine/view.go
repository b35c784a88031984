package engine

import (
	"strconv"

	"github.com/samarth-org/samarth/dataset"
)

// ============================================================================
// TABLE VIEW — Read-only access to the analytic table
// ============================================================================
// Sandboxed programs never touch the table directly; they read through
// this interface. Metric returns (value, present) — an absent metric is
// missing data, never zero, and the distinction is preserved all the
// way into aggregation.
//
// SubViews are index lists into a parent view: filtering and grouping
// never copy rows.
// ============================================================================

// TableView provides indexed, read-only access to analytic rows.
type TableView interface {
	Len() int
	Dimension(i int, key string) string
	Metric(i int, key string) (float64, bool)
}

// NewTableView wraps a frozen AnalyticTable.
func NewTableView(t *dataset.AnalyticTable) TableView {
	return &tableView{table: t}
}

type tableView struct {
	table *dataset.AnalyticTable
}

func (v *tableView) Len() int { return v.table.Len() }

func (v *tableView) Dimension(i int, key string) string {
	if i < 0 || i >= v.table.Len() {
		return ""
	}
	row := v.table.Row(i)
	switch key {
	case "district":
		return row.District
	case "year":
		return strconv.Itoa(row.Year)
	}
	return ""
}

func (v *tableView) Metric(i int, key string) (float64, bool) {
	if i < 0 || i >= v.table.Len() {
		return 0, false
	}
	return v.table.Row(i).Metric(key)
}

// subView is a filtered or grouped subset — indices into the parent.
type subView struct {
	parent  TableView
	indices []int
}

func newSubView(parent TableView, indices []int) TableView {
	return &subView{parent: parent, indices: indices}
}

func (v *subView) Len() int { return len(v.indices) }

func (v *subView) Dimension(i int, key string) string {
	if i < 0 || i >= len(v.indices) {
		return ""
	}
	return v.parent.Dimension(v.indices[i], key)
}

func (v *subView) Metric(i int, key string) (float64, bool) {
	if i < 0 || i >= len(v.indices) {
		return 0, false
	}
	return v.parent.Metric(v.indices[i], key)
}
