package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Privilege is a bit set of operations a grant permits.
type Privilege int

const (
	Read   Privilege = 1 << iota // 1
	Write                        // 2
	Delete                       // 4

	AllPrivileges = Read | Write | Delete
)

func (p Privilege) String() string {
	switch p {
	case Read:
		return "READ"
	case Write:
		return "WRITE"
	case Delete:
		return "DELETE"
	default:
		return fmt.Sprintf("Privilege(%d)", int(p))
	}
}

// GrantKind says how a grant's principal field is matched.
type GrantKind string

const (
	GrantPrivate GrantKind = "PRIVATE"
	GrantGroup   GrantKind = "GROUP"
	GrantPublic  GrantKind = "PUBLIC"
)

func (k GrantKind) Valid() bool {
	switch k {
	case GrantPrivate, GrantGroup, GrantPublic:
		return true
	}
	return false
}

// Grant gives Principal (a user name, a group name, or nothing for PUBLIC)
// the privileges in Mask.
type Grant struct {
	Principal string    `json:"principal,omitempty"`
	Kind      GrantKind `json:"kind"`
	Mask      Privilege `json:"mask"`
}

// Grants is an ordered grant list; order matters for evaluation. It is
// persisted as a JSON array.
type Grants []Grant

func (g Grants) Value() (driver.Value, error) {
	if g == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(g)
}

func (g *Grants) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*g = Grants{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("grants: unsupported source type %T", src)
	}
	var out Grants
	if err := json.Unmarshal(b, &out); err != nil {
		return fmt.Errorf("grants: %w", err)
	}
	if out == nil {
		out = Grants{}
	}
	*g = out
	return nil
}
