package orderstatus

import (
	"strings"
)

type Status struct {
	Name string
}

func (s Status) Code() string {
	return s.Name
}

func (s Status) Label() string {
	if s.Name == "" {
		return ""
	}
	return strings.ToUpper(s.Name[:1]) + s.Name[1:]
}

type Enum struct {
	Pending    Status
	Completing Status
	Terminated Status
	Cancelled  Status
}

var Statuses = Enum{
	Pending:    Status{Name: "pending"},
	Completing: Status{Name: "completing"},
	Terminated: Status{Name: "terminated"},
	Cancelled:  Status{Name: "cancelled"},
}

var All = []Status{
	Statuses.Pending,
	Statuses.Completing,
	Statuses.Terminated,
	Statuses.Cancelled,
}

// ByName returns the status for a given name, or nil if not found
func ByName(name string) *Status {
	for _, s := range All {
		if s.Name == name {
			return &s
		}
	}
	return nil
}

// Final reports whether an order in this status has left the pending set.
func (s Status) Final() bool {
	return s == Statuses.Terminated || s == Statuses.Cancelled
}

// SheetLabel is the status text written to terminated records.
const SheetLabel = "Terminado"
