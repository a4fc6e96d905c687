package validate

import (
	"math"
	"time"

	"github.com/derickschaefer/periodic/internal/model"
)

// instant keys a timestamp by its exact value. UnixNano would overflow
// outside 1678..2262.
type instant struct {
	sec  int64
	nsec int32
}

func keyOf(t time.Time) instant {
	return instant{sec: t.Unix(), nsec: int32(t.Nanosecond())}
}

func cloneRow(r model.Row) model.Row {
	return model.Row{Time: r.Time, Values: append([]float64(nil), r.Values...)}
}

// resolveDuplicates applies strategy to rows sharing a timestamp. The result
// is a fresh slice of fresh rows in first-occurrence order; removed counts
// the rows that did not survive.
func resolveDuplicates(rows []model.Row, strategy DuplicateStrategy, maxReported int) ([]model.Row, int, error) {
	groups := make(map[instant][]int, len(rows))
	order := make([]instant, 0, len(rows))
	for i, r := range rows {
		k := keyOf(r.Time)
		if _, ok := groups[k]; !ok {
			order = append(order, k)
		}
		groups[k] = append(groups[k], i)
	}

	out := make([]model.Row, 0, len(order))
	if len(order) == len(rows) {
		for _, r := range rows {
			out = append(out, cloneRow(r))
		}
		return out, 0, nil
	}

	if strategy == DuplicatesError {
		e := &DuplicateTimestampError{}
		for _, k := range order {
			if g := groups[k]; len(g) > 1 {
				e.Total++
				if len(e.Times) < maxReported {
					e.Times = append(e.Times, rows[g[0]].Time)
				}
			}
		}
		return nil, 0, e
	}

	for _, k := range order {
		g := groups[k]
		switch {
		case len(g) == 1:
			out = append(out, cloneRow(rows[g[0]]))
		case strategy == DuplicatesDrop:
		case strategy == DuplicatesKeepFirst:
			out = append(out, cloneRow(rows[g[0]]))
		case strategy == DuplicatesKeepLast:
			out = append(out, cloneRow(rows[g[len(g)-1]]))
		case strategy == DuplicatesMerge:
			out = append(out, mergeRows(rows, g))
		}
	}
	return out, len(rows) - len(out), nil
}

// mergeRows takes, per column, the first non-null value across idx.
func mergeRows(rows []model.Row, idx []int) model.Row {
	first := rows[idx[0]]
	merged := cloneRow(first)
	for c := range merged.Values {
		if !math.IsNaN(merged.Values[c]) {
			continue
		}
		for _, i := range idx[1:] {
			if vals := rows[i].Values; c < len(vals) && !math.IsNaN(vals[c]) {
				merged.Values[c] = vals[c]
				break
			}
		}
	}
	return merged
}
