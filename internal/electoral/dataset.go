package electoral

import (
	"github.com/rotisserie/eris"
)

// Dataset is the immutable province-keyed electoral dataset. Province order and
// district order are the source feed's order.
type Dataset struct {
	provinces []Province
	index     map[string]int
}

// New builds a Dataset. Province names must be unique, and district names
// must be unique within their province. Each district's Province field is set
// to its owning province.
func New(provinces []Province) (*Dataset, error) {
	ds := &Dataset{
		provinces: make([]Province, 0, len(provinces)),
		index:     make(map[string]int, len(provinces)),
	}
	for _, p := range provinces {
		if _, dup := ds.index[p.Name]; dup {
			return nil, eris.Errorf("electoral: duplicate province %q", p.Name)
		}
		seen := make(map[string]bool, len(p.Districts))
		districts := make([]District, 0, len(p.Districts))
		for _, d := range p.Districts {
			if seen[d.Name] {
				return nil, eris.Errorf("electoral: duplicate district %q in province %q", d.Name, p.Name)
			}
			seen[d.Name] = true
			d = d.Clone()
			d.Province = p.Name
			districts = append(districts, d)
		}
		ds.index[p.Name] = len(ds.provinces)
		ds.provinces = append(ds.provinces, Province{Name: p.Name, Districts: districts})
	}
	return ds, nil
}

// Provinces returns province names in source order.
func (ds *Dataset) Provinces() []string {
	if ds == nil {
		return nil
	}
	names := make([]string, len(ds.provinces))
	for i, p := range ds.provinces {
		names[i] = p.Name
	}
	return names
}

// HasProvince reports whether name is a province key.
func (ds *Dataset) HasProvince(name string) bool {
	if ds == nil {
		return false
	}
	_, ok := ds.index[name]
	return ok
}

// Districts returns copies of a province's districts in source order.
func (ds *Dataset) Districts(province string) []District {
	if ds == nil {
		return nil
	}
	i, ok := ds.index[province]
	if !ok {
		return nil
	}
	return cloneDistricts(ds.provinces[i].Districts)
}

// AllDistricts returns every district, province by province, in source order.
func (ds *Dataset) AllDistricts() []District {
	if ds == nil {
		return nil
	}
	var out []District
	for _, p := range ds.provinces {
		out = append(out, cloneDistricts(p.Districts)...)
	}
	return out
}

// District looks up a district by province and exact name.
func (ds *Dataset) District(province, name string) (District, bool) {
	if ds == nil {
		return District{}, false
	}
	i, ok := ds.index[province]
	if !ok {
		return District{}, false
	}
	for _, d := range ds.provinces[i].Districts {
		if d.Name == name {
			return d.Clone(), true
		}
	}
	return District{}, false
}

// Len returns the total number of districts.
func (ds *Dataset) Len() int {
	if ds == nil {
		return 0
	}
	n := 0
	for _, p := range ds.provinces {
		n += len(p.Districts)
	}
	return n
}

// EachProvince calls fn with a copy of each province in order.
func (ds *Dataset) EachProvince(fn func(Province)) {
	if ds == nil {
		return
	}
	for _, p := range ds.provinces {
		fn(Province{Name: p.Name, Districts: cloneDistricts(p.Districts)})
	}
}

func cloneDistricts(in []District) []District {
	out := make([]District, len(in))
	for i, d := range in {
		out[i] = d.Clone()
	}
	return out
}

// Province returns a copy of the named province.
func (ds *Dataset) Province(name string) (Province, bool) {
	if ds == nil {
		return Province{}, false
	}
	i, ok := ds.index[name]
	if !ok {
		return Province{}, false
	}
	p := ds.provinces[i]
	return Province{Name: p.Name, Districts: cloneDistricts(p.Districts)}, true
}
