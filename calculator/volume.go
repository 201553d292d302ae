// Package calculator converts nutrition and infusion prescriptions into the
// volumes a nurse draws up: component volume reduction, the two-tier glucose
// blend and the fixed-concentration drug titration tables. Every function is
// pure and recomputes from its inputs.
package calculator

import (
	"encoding/json"
	"errors"
)

var (
	// ErrBlendUndefined is returned by GlucoseBlend.Err when no split exists
	ErrBlendUndefined = errors.New("glucose blend undefined")
	// ErrBlendEmpty marks a blend with no glucose volume or percentage
	ErrBlendEmpty = errors.New("glucose volume or percentage not set")
	// ErrBlendOutOfRange marks a percentage outside the stock tiers
	ErrBlendOutOfRange = errors.New("glucose percentage outside 5-33%")
	// ErrDilutionUndefined is returned for a speed outside the allowed set
	ErrDilutionUndefined = errors.New("dilution target undefined for infusion speed")
	// ErrUnknownDrug is returned for a drug id missing from the drug table
	ErrUnknownDrug = errors.New("unknown drug")
)

// Volume is a volume in ml that may be not applicable
type Volume struct {
	Ml    float64
	Valid bool
}

// NotApplicable is the Volume callers render as a placeholder
var NotApplicable = Volume{}

// Ml returns a defined Volume
func Ml(v float64) Volume {
	return Volume{Ml: v, Valid: true}
}

// MarshalJSON encodes a defined volume as a number and NotApplicable as null
func (v Volume) MarshalJSON() ([]byte, error) {
	if !v.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(v.Ml)
}

// UnmarshalJSON implements json.Unmarshaler
func (v *Volume) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*v = NotApplicable
		return nil
	}
	var ml float64
	if err := json.Unmarshal(b, &ml); err != nil {
		return err
	}
	*v = Ml(ml)
	return nil
}
