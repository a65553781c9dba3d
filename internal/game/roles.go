package game

import "encoding/json"

type Role int

const (
	RoleNone Role = iota
	RolePolice
	RoleThief
)

func (r Role) String() string {
	switch r {
	case RolePolice:
		return "POLICE"
	case RoleThief:
		return "THIEF"
	default:
		return "NONE"
	}
}

// MarshalJSON serializes Role as a string.
func (r Role) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.String())
}

// UnmarshalJSON deserializes Role from a string.
func (r *Role) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch s {
	case "POLICE":
		*r = RolePolice
	case "THIEF":
		*r = RoleThief
	default:
		*r = RoleNone
	}
	return nil
}

// Winner identifies the winning team of a closed session.
type Winner int

const (
	WinnerNone Winner = iota
	WinnerPolice
	WinnerThief
)

func (w Winner) String() string {
	switch w {
	case WinnerPolice:
		return "POLICE"
	case WinnerThief:
		return "THIEF"
	default:
		return "NONE"
	}
}

// MarshalJSON serializes Winner as a string.
func (w Winner) MarshalJSON() ([]byte, error) {
	return json.Marshal(w.String())
}

// Team returns the role on the winning side, RoleNone for an open session.
func (w Winner) Team() Role {
	switch w {
	case WinnerPolice:
		return RolePolice
	case WinnerThief:
		return RoleThief
	default:
		return RoleNone
	}
}
