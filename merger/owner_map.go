package merger

import (
	"sort"
)

// OwnerMap represents typename:fieldname:owner mapping for root fields
type OwnerMap map[string]map[string]string

func (o OwnerMap) Set(typename, fieldname, owner string) {
	if o[typename] == nil {
		o[typename] = make(map[string]string)
	}

	o[typename][fieldname] = owner
}

// Owner returns name of the schema resolving typename.fieldname
func (o OwnerMap) Owner(typename, fieldname string) (string, bool) {
	if o[typename] == nil {
		return "", false
	}

	res, ok := o[typename][fieldname]
	return res, ok
}

// Owners returns sorted names of every schema owning at least one field
func (o OwnerMap) Owners() []string {
	u := make(map[string]struct{})
	for _, fields := range o {
		for _, owner := range fields {
			u[owner] = struct{}{}
		}
	}

	owners := make([]string, 0, len(u))
	for owner := range u {
		owners = append(owners, owner)
	}
	sort.Strings(owners)

	return owners
}
