// Package dateutil extracts calendar components from FEC date strings.
//
// Bulk files carry dates in three shapes:
//   - MM/DD/YYYY, e.g. "01/15/2024"
//   - MMDDYYYY (8 chars), e.g. "01152024"
//   - MDDYYYY (7 chars), e.g. "1152024"
package dateutil

import (
	"strconv"
	"strings"
)

// Year extracts the 4-digit year from a raw date value.
// Returns ok=false for any shape it does not recognize; malformed
// values are expected in bulk data and are never an error.
func Year(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}

	if strings.Contains(raw, "/") {
		parts := strings.Split(raw, "/")
		if len(parts) == 3 && len(parts[2]) == 4 {
			return atoi(parts[2])
		}
		return 0, false
	}

	switch len(raw) {
	case 8:
		return atoi(raw[4:8])
	case 7:
		return atoi(raw[3:7])
	}
	return 0, false
}

// Month extracts the month (1-12 as recorded; not range-checked) from
// a raw date value. Same tolerance rules as Year.
func Month(raw string) (int, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, false
	}

	if strings.Contains(raw, "/") {
		parts := strings.Split(raw, "/")
		if len(parts) == 3 && (len(parts[0]) == 1 || len(parts[0]) == 2) {
			return atoi(parts[0])
		}
		return 0, false
	}

	switch len(raw) {
	case 8:
		return atoi(raw[0:2])
	case 7:
		return atoi(raw[0:1])
	}
	return 0, false
}

func atoi(s string) (int, bool) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, false
	}
	return n, true
}
