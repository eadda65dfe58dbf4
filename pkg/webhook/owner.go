package webhook

import (
	"strings"
)

// Result is the outcome of an owner authorization.
type Result int

const (
	Allowed Result = iota
	Denied
	MissingOwner
)

func (r Result) String() string {
	switch r {
	case Allowed:
		return "allowed"
	case Denied:
		return "denied"
	case MissingOwner:
		return "missing-owner"
	default:
		return "unknown"
	}
}

type Decision struct {
	Result Result
	Reason string
}

func (d Decision) IsAllowed() bool {
	return d.Result == Allowed
}

// OwnerAuthorizer checks repository owners against an allow-list.
// Logins are compared case-insensitively, like GitHub does.
type OwnerAuthorizer struct {
	owners map[string]struct{}
}

func NewOwnerAuthorizer(owners []string) *OwnerAuthorizer {
	set := make(map[string]struct{}, len(owners))
	for _, owner := range owners {
		owner = strings.ToLower(strings.TrimSpace(owner))
		if owner != "" {
			set[owner] = struct{}{}
		}
	}
	return &OwnerAuthorizer{owners: set}
}

// Authorize decides on the claimed owner login, an empty login means the payload had none.
func (a *OwnerAuthorizer) Authorize(owner string) Decision {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return Decision{Result: MissingOwner, Reason: "payload does not contain a repository owner"}
	}
	if _, ok := a.owners[strings.ToLower(owner)]; !ok {
		return Decision{Result: Denied, Reason: "owner '" + owner + "' is not in the allow-list"}
	}
	return Decision{Result: Allowed}
}

func (a *OwnerAuthorizer) IsAuthorizedOwner(owner string) bool {
	return a.Authorize(owner).IsAllowed()
}
