package wire

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Denom is a validated coin denomination: 1-128 ASCII alphanumeric
// characters in "/"-separated parts, each part non-empty.
type Denom string

// ParseDenom validates s and returns it as a Denom.
func ParseDenom(s string) (Denom, error) {
	if len(s) == 0 || len(s) > 128 {
		return "", fmt.Errorf("wire: denom length must be in [1,128], got %d", len(s))
	}
	parts := strings.Split(s, "/")
	for _, p := range parts {
		if p == "" {
			return "", fmt.Errorf("wire: denom %q has an empty path segment", s)
		}
		for _, r := range p {
			isAlnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
			if !isAlnum {
				return "", fmt.Errorf("wire: denom %q has non-alphanumeric character %q", s, r)
			}
		}
	}
	return Denom(s), nil
}

func (d Denom) String() string { return string(d) }

func (d Denom) MarshalJSON() ([]byte, error) { return json.Marshal(string(d)) }

func (d *Denom) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := ParseDenom(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
