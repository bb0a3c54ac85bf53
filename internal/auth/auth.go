package auth

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/hrchat/hrchat/internal/hrquery"
)

const (
	// RoleHRAdmin may ask about any employee; its queries are never scoped.
	RoleHRAdmin  = "hr_admin"
	RoleEmployee = "employee"
)

// AnyEmployee in a static key entry means the key is not bound to one employee.
const AnyEmployee = "*"

type Identity struct {
	Subject    string
	EmployeeID *int64
	Roles      []string
}

func (i Identity) HasRole(role string) bool {
	for _, candidate := range i.Roles {
		if candidate == role {
			return true
		}
	}
	return false
}

func (i Identity) Elevated() bool {
	return i.HasRole(RoleHRAdmin)
}

// Scope restricts every query of a non-elevated identity bound to an employee.
func (i Identity) Scope() hrquery.Scope {
	if i.Elevated() || i.EmployeeID == nil {
		return hrquery.Scope{}
	}
	id := *i.EmployeeID
	return hrquery.Scope{EmployeeID: &id}
}

type APIKeyValidator interface {
	Validate(ctx context.Context, apiKey string) (Identity, bool)
}

type StaticAPIKeyValidator struct {
	keys map[string]Identity
}

// NewStaticAPIKeyValidator parses comma separated key:employeeID|*:role|role entries.
func NewStaticAPIKeyValidator(spec string) (*StaticAPIKeyValidator, error) {
	validator := &StaticAPIKeyValidator{keys: map[string]Identity{}}
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return validator, nil
	}

	for index, entry := range strings.Split(spec, ",") {
		parts := strings.Split(strings.TrimSpace(entry), ":")
		if len(parts) != 3 {
			return nil, fmt.Errorf("invalid static key entry %d: expected key:employeeID|*:role|role", index+1)
		}
		key := strings.TrimSpace(parts[0])
		employee := strings.TrimSpace(parts[1])
		if key == "" || employee == "" {
			return nil, fmt.Errorf("invalid static key entry %d: empty key or employee", index+1)
		}
		if _, exists := validator.keys[key]; exists {
			return nil, fmt.Errorf("invalid static key entry %d: duplicate key", index+1)
		}

		identity := Identity{Subject: "static:" + employee}
		if employee != AnyEmployee {
			id, err := strconv.ParseInt(employee, 10, 64)
			if err != nil || id <= 0 {
				return nil, fmt.Errorf("invalid static key entry %d: employee id %q is not a positive integer", index+1, employee)
			}
			identity.EmployeeID = &id
		}

		for _, role := range strings.Split(strings.TrimSpace(parts[2]), "|") {
			role = strings.TrimSpace(role)
			if role == "" {
				continue
			}
			identity.Roles = append(identity.Roles, role)
		}
		if len(identity.Roles) == 0 {
			return nil, fmt.Errorf("invalid static key entry %d: at least one role is required", index+1)
		}
		sort.Strings(identity.Roles)
		validator.keys[key] = identity
	}

	return validator, nil
}

func (v *StaticAPIKeyValidator) Validate(_ context.Context, apiKey string) (Identity, bool) {
	identity, ok := v.keys[apiKey]
	return identity, ok
}
