package filter

import "strings"

// ParseFilters decodes query values of the form "type:v1,v2". Repeated
// types are kept as separate filters. Values without a type or without any
// value are dropped.
func ParseFilters(raw []string) []Filter {
	out := make([]Filter, 0, len(raw))
	for _, r := range raw {
		typ, values, ok := strings.Cut(r, ":")
		typ = strings.ToLower(strings.TrimSpace(typ))
		if !ok || typ == "" {
			continue
		}
		f := Filter{Type: typ}
		for _, v := range strings.Split(values, ",") {
			if v = strings.TrimSpace(v); v != "" {
				f.Values = append(f.Values, v)
			}
		}
		if len(f.Values) == 0 {
			continue
		}
		out = append(out, f)
	}
	return out
}

// ParseSorts decodes query values of the form "field:dir" where dir is
// "asc" or "desc". A bare field sorts ascending.
func ParseSorts(raw []string) []Sort {
	out := make([]Sort, 0, len(raw))
	for _, r := range raw {
		field, dir, _ := strings.Cut(r, ":")
		field = strings.ToLower(strings.TrimSpace(field))
		if field == "" {
			continue
		}
		out = append(out, Sort{
			Field: field,
			Desc:  strings.EqualFold(strings.TrimSpace(dir), "desc"),
		})
	}
	return out
}
