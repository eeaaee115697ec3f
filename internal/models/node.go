package models

import (
	"encoding/json"
	"strconv"
	"time"
)

// Node is a Lightning node row as persisted and served by the read API.
type Node struct {
	PublicKey string `json:"publicKey" db:"public_key"`
	Alias     string `json:"alias" db:"alias"`
	// Capacity is denominated in BTC. Nil when unknown.
	Capacity  *float64  `json:"capacity" db:"capacity"`
	FirstSeen time.Time `json:"firstSeen" db:"first_seen"`
}

// nodeJSON is the wire shape of Node. Capacity travels as a decimal string.
type nodeJSON struct {
	PublicKey string  `json:"publicKey"`
	Alias     string  `json:"alias"`
	Capacity  *string `json:"capacity"`
	FirstSeen string  `json:"firstSeen"`
}

// MarshalJSON implements json.Marshaler.
func (n Node) MarshalJSON() ([]byte, error) {
	out := nodeJSON{
		PublicKey: n.PublicKey,
		Alias:     n.Alias,
		FirstSeen: n.FirstSeen.UTC().Format(time.RFC3339),
	}
	if n.Capacity != nil {
		s := FormatCapacity(*n.Capacity)
		out.Capacity = &s
	}
	return json.Marshal(out)
}

// UnmarshalJSON implements json.Unmarshaler for the string-capacity wire shape.
func (n *Node) UnmarshalJSON(data []byte) error {
	var in nodeJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	firstSeen, err := time.Parse(time.RFC3339, in.FirstSeen)
	if err != nil {
		return err
	}

	n.PublicKey = in.PublicKey
	n.Alias = in.Alias
	n.FirstSeen = firstSeen.UTC()
	n.Capacity = nil
	if in.Capacity != nil {
		v, err := strconv.ParseFloat(*in.Capacity, 64)
		if err != nil {
			return err
		}
		n.Capacity = &v
	}
	return nil
}

// FormatCapacity renders a BTC amount using the shortest decimal
// representation that parses back to the same float, without exponent.
func FormatCapacity(btc float64) string {
	return strconv.FormatFloat(btc, 'f', -1, 64)
}
