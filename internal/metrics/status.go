package metrics

import (
	"sort"
	"strconv"
)

// StatusBucket represents the aggregated count for a protocol/code pair.
type StatusBucket struct {
	Protocol string
	Code     string
	Class    string
	Count    int
}

// StatusClass groups a recorded code: "2xx".."5xx" for numeric HTTP codes,
// "transport" for anything else (transport failure kinds).
func StatusClass(code string) string {
	n, err := strconv.Atoi(code)
	if err != nil || n < 100 || n > 599 {
		return "transport"
	}
	return strconv.Itoa(n/100) + "xx"
}

// FlattenStatusBuckets converts a nested protocol->code map into rows sorted
// by descending count, then by protocol/code for stability.
func FlattenStatusBuckets(buckets map[string]map[string]int) []StatusBucket {
	if len(buckets) == 0 {
		return nil
	}
	rows := make([]StatusBucket, 0)
	for protocol, codes := range buckets {
		for code, count := range codes {
			rows = append(rows, StatusBucket{
				Protocol: protocol,
				Code:     code,
				Class:    StatusClass(code),
				Count:    count,
			})
		}
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Count == rows[j].Count {
			if rows[i].Protocol == rows[j].Protocol {
				return rows[i].Code < rows[j].Code
			}
			return rows[i].Protocol < rows[j].Protocol
		}
		return rows[i].Count > rows[j].Count
	})
	return rows
}
