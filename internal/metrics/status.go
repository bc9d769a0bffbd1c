package metrics

import "sort"

// StatusBucket is the number of failed requests of one outcome kind that
// reported the same status code.
type StatusBucket struct {
	Kind  string
	Code  string
	Count int
}

// FlattenStatusBuckets converts a nested kind->status map into rows sorted by
// descending count, then by kind and code for stability.
func FlattenStatusBuckets(buckets map[string]map[string]int) []StatusBucket {
	if len(buckets) == 0 {
		return nil
	}
	rows := make([]StatusBucket, 0)
	for kind, codes := range buckets {
		for code, count := range codes {
			rows = append(rows, StatusBucket{Kind: kind, Code: code, Count: count})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			if rows[i].Kind == rows[j].Kind {
				return rows[i].Code < rows[j].Code
			}
			return rows[i].Kind < rows[j].Kind
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}

// ErrorTypeCount is one row of the error-type breakdown.
type ErrorTypeCount struct {
	Type  string
	Count int
}

// SortErrorTypes orders an error-type breakdown by descending count.
func SortErrorTypes(types map[string]int) []ErrorTypeCount {
	if len(types) == 0 {
		return nil
	}
	rows := make([]ErrorTypeCount, 0, len(types))
	for t, n := range types {
		rows = append(rows, ErrorTypeCount{Type: t, Count: n})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			return rows[i].Type < rows[j].Type
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}
