package pipeline

import (
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Domain is the option list offered for one categorical field.
type Domain struct {
	Column string
	Values []string
}

// Default is the first observed value, or "" for an all-missing column.
func (d Domain) Default() string {
	if len(d.Values) == 0 {
		return ""
	}
	return d.Values[0]
}

// Contains reports whether v was observed.
func (d Domain) Contains(v string) bool {
	for _, x := range d.Values {
		if x == v {
			return true
		}
	}
	return false
}

// CategoricalDomains returns, for every string-typed column in column order,
// its distinct non-missing values in first-seen order.
func CategoricalDomains(df dataframe.DataFrame) []Domain {
	names := df.Names()
	types := df.Types()
	domains := make([]Domain, 0, len(names))
	for i, name := range names {
		if types[i] != series.String {
			continue
		}
		s := df.Col(name)
		nas := s.IsNaN()
		seen := make(map[string]struct{})
		values := make([]string, 0)
		for j, v := range s.Records() {
			if nas[j] {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			values = append(values, v)
		}
		domains = append(domains, Domain{Column: name, Values: values})
	}
	return domains
}
