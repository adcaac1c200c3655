package models

import "slices"

// Principal is the authenticated caller.
type Principal struct {
	Name   string   `json:"name"`
	Admin  bool     `json:"admin"`
	Groups []string `json:"groups,omitempty"`
}

func (p Principal) InGroup(group string) bool {
	return slices.Contains(p.Groups, group)
}
