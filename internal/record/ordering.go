package record

import "strings"

// ParseOrdering splits a comma-joined "orderby" parameter, dropping blanks.
func ParseOrdering(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// OrderingColumn strips a leading "-" and reports whether it was descending.
func OrderingColumn(term string) (string, bool) {
	if strings.HasPrefix(term, "-") {
		return term[1:], true
	}
	return term, false
}

// ValidOrdering reports whether every term names a column of d.
func (d *Descriptor) ValidOrdering(terms []string) bool {
	if len(terms) == 0 {
		return false
	}
	for _, t := range terms {
		col, _ := OrderingColumn(t)
		if !d.HasColumn(col) {
			return false
		}
	}
	return true
}

// ToggleOrdering returns the orderby value for a sortable column header. If
// field is part of the current ordering its direction is flipped in place,
// otherwise the list is ordered by field alone.
func ToggleOrdering(field string, current []string) string {
	out := make([]string, 0, len(current))
	found := false
	for _, term := range current {
		col, desc := OrderingColumn(term)
		if col != field {
			out = append(out, term)
			continue
		}
		found = true
		if desc {
			out = append(out, field)
		} else {
			out = append(out, "-"+field)
		}
	}
	if !found {
		return field
	}
	return strings.Join(out, ",")
}
