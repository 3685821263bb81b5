package access

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/appetiteclub/comanda/pkg/enums/role"
	"github.com/aquamarinepk/aqm"
)

var ErrMissingCapability = errors.New("missing capability")

// Checker answers whether the current session holds a role.
type Checker interface {
	HasCapability(role string) bool
}

// StaticChecker grants a fixed set of roles.
type StaticChecker struct {
	roles map[string]bool
}

func NewStaticChecker(roles ...string) *StaticChecker {
	c := &StaticChecker{roles: make(map[string]bool)}
	for _, r := range roles {
		r = strings.TrimSpace(r)
		if r != "" {
			c.roles[r] = true
		}
	}
	return c
}

func (c *StaticChecker) HasCapability(r string) bool {
	return c.roles[r]
}

// FromConfig reads auth.roles as a comma separated list. When unset every
// known role is granted.
func FromConfig(config *aqm.Config, logger aqm.Logger) *StaticChecker {
	if logger == nil {
		logger = aqm.NewNoopLogger()
	}

	var raw string
	if config != nil {
		raw, _ = config.GetString("auth.roles")
	}

	if strings.TrimSpace(raw) == "" {
		logger.Info("auth.roles not set, granting all roles")
		all := make([]string, 0, len(role.All))
		for _, r := range role.All {
			all = append(all, r.Code())
		}
		return NewStaticChecker(all...)
	}

	return NewStaticChecker(strings.Split(raw, ",")...)
}

// Require is the view-initialization gate: it fails when the role is not
// held, and the caller must not construct the view.
func Require(c Checker, r role.Role) error {
	if c == nil || !c.HasCapability(r.Code()) {
		return fmt.Errorf("%w: %s", ErrMissingCapability, r.Code())
	}
	return nil
}

// Middleware rejects requests with 403 when the role is not held.
func Middleware(c Checker, r role.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if err := Require(c, r); err != nil {
				aqm.RespondError(w, http.StatusForbidden, "Access denied")
				return
			}
			next.ServeHTTP(w, req)
		})
	}
}
