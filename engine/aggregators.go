package engine

import (
	"context"
	"errors"
	"math"
	"sort"
	"strings"
)

// ============================================================================
// AGGREGATORS — Grouping, aggregation, and sorting via TableView
// ============================================================================
// Grouping produces SubViews (index lists into the parent view).
// Aggregation is missing-aware: rows where the metric is absent are
// skipped, never treated as zero. A group where every row lacks the
// metric contributes nothing; a run where no group has data yields an
// empty value, not a fabricated scalar.
//
// Group count is bounded and the context deadline is checked between
// groups, so a runaway program is cut off instead of starving the
// process.
// ============================================================================

// errGroupBudget marks a program that exceeded the group budget. The
// executor maps it to a resource failure.
var errGroupBudget = errors.New("group budget exceeded")

// group holds one aggregation bucket during execution.
type group struct {
	label string
	view  TableView
}

// aggregate runs the group → aggregate → sort → limit pipeline for a
// validated program over an already-filtered view.
func aggregate(ctx context.Context, view TableView, p *Program, unit string, maxGroups int) (Value, error) {
	if view.Len() == 0 {
		return EmptyValue(), nil
	}

	groups, err := buildGroups(view, p.GroupBy, maxGroups)
	if err != nil {
		return Value{}, err
	}

	rows := make([]ValueRow, 0, len(groups))
	for _, g := range groups {
		if err := ctx.Err(); err != nil {
			return Value{}, err
		}
		v, count, ok := aggregateGroup(g.view, p.Metric, p.Aggregation)
		if !ok {
			continue
		}
		rows = append(rows, ValueRow{Label: g.label, Value: v, Count: count})
	}

	if len(rows) == 0 {
		return EmptyValue(), nil
	}

	// Ungrouped programs collapse to a scalar.
	if len(p.GroupBy) == 0 {
		return ScalarValue(rows[0].Value, unit), nil
	}

	sortRows(rows, p.SortBy)
	if p.Limit > 0 && len(rows) > p.Limit {
		rows = rows[:p.Limit]
	}
	return TableValue(rows, unit), nil
}

// ============================================================================
// GROUPING
// ============================================================================

func buildGroups(view TableView, groupBy []string, maxGroups int) ([]group, error) {
	if len(groupBy) == 0 {
		return []group{{label: "total", view: view}}, nil
	}

	grouped := make(map[string][]int)
	order := make([]string, 0)

	for i := 0; i < view.Len(); i++ {
		key := groupKey(view, i, groupBy)
		if _, exists := grouped[key]; !exists {
			if len(order) >= maxGroups {
				return nil, errGroupBudget
			}
			order = append(order, key)
		}
		grouped[key] = append(grouped[key], i)
	}

	groups := make([]group, 0, len(order))
	for _, key := range order {
		groups = append(groups, group{
			label: key,
			view:  newSubView(view, grouped[key]),
		})
	}
	return groups, nil
}

func groupKey(view TableView, i int, groupBy []string) string {
	if len(groupBy) == 1 {
		return view.Dimension(i, groupBy[0])
	}
	parts := make([]string, len(groupBy))
	for j, dim := range groupBy {
		parts[j] = view.Dimension(i, dim)
	}
	return strings.Join(parts, " / ")
}

// ============================================================================
// AGGREGATION
// ============================================================================

// aggregateGroup computes one aggregation for a group. count is the
// number of rows where the metric was present; ok is false when no row
// carried it (the group is skipped, not reported as zero).
func aggregateGroup(view TableView, metric, aggregation string) (value float64, count int, ok bool) {
	if aggregation == "count" {
		return float64(view.Len()), view.Len(), view.Len() > 0
	}

	sum := 0.0
	min := math.Inf(1)
	max := math.Inf(-1)
	for i := 0; i < view.Len(); i++ {
		v, present := view.Metric(i, metric)
		if !present {
			continue
		}
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
		count++
	}
	if count == 0 {
		return 0, 0, false
	}

	switch aggregation {
	case "avg":
		return sum / float64(count), count, true
	case "min":
		return min, count, true
	case "max":
		return max, count, true
	default: // sum
		return sum, count, true
	}
}

// ============================================================================
// SORTING
// ============================================================================

func sortRows(rows []ValueRow, sortBy string) {
	switch sortBy {
	case "value_desc":
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Value > rows[j].Value })
	case "value_asc":
		sort.SliceStable(rows, func(i, j int) bool { return rows[i].Value < rows[j].Value })
	case "label_asc":
		sort.SliceStable(rows, func(i, j int) bool { return strings.ToLower(rows[i].Label) < strings.ToLower(rows[j].Label) })
	case "label_desc":
		sort.SliceStable(rows, func(i, j int) bool { return strings.ToLower(rows[i].Label) > strings.ToLower(rows[j].Label) })
	default:
		// preserve grouping order
	}
}
