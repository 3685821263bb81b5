package role

import "strings"

// Role is a capability an authenticated session may hold.
type Role struct {
	Name string
}

func (r Role) Code() string {
	return r.Name
}

func (r Role) Label() string {
	if len(r.Name) == 0 {
		return ""
	}
	return strings.ToUpper(r.Name[:1]) + r.Name[1:]
}

type Enum struct {
	Orders  Role
	Kitchen Role
}

var Roles = Enum{
	Orders:  Role{Name: "pedidos"},
	Kitchen: Role{Name: "cocina"},
}

var All = []Role{
	Roles.Orders,
	Roles.Kitchen,
}

// ByName returns the role for a given name, or nil if not found
func ByName(name string) *Role {
	for _, r := range All {
		if r.Name == name {
			return &r
		}
	}
	return nil
}
