package calculator

import (
	"fmt"
	"math"
	"strconv"
)

// GlucoseTier is the concentration (%) of a glucose stock solution
type GlucoseTier float64

const (
	Glucose5  GlucoseTier = 5
	Glucose10 GlucoseTier = 10
	Glucose33 GlucoseTier = 33
)

// Label returns the stock name as charted, e.g. "Glucosio 10%"
func (t GlucoseTier) Label() string {
	return "Glucosio " + strconv.FormatFloat(float64(t), 'f', -1, 64) + "%"
}

// BlendStatus tells whether a glucose blend could be split
type BlendStatus string

const (
	BlendResolved   BlendStatus = "resolved"
	BlendEmpty      BlendStatus = "empty"
	BlendOutOfRange BlendStatus = "out_of_range"
)

// GlucoseBlend is the split of a glucose prescription over two stock tiers
type GlucoseBlend struct {
	Status         BlendStatus `json:"status"`
	TargetPercent  float64     `json:"targetPercent"`
	TargetVolumeMl float64     `json:"targetVolumeMl"`
	LowTier        GlucoseTier `json:"lowTier,omitempty"`
	HighTier       GlucoseTier `json:"highTier,omitempty"`
	Low            Volume      `json:"lowVolumeMl"`
	High           Volume      `json:"highVolumeMl"`
	// HighRawMl is the unrounded high tier share of an interior blend.
	// It is kept for checks on the rounding direction and never serialized.
	HighRawMl float64 `json:"-"`
}

// Defined reports whether the blend produced volumes
func (b GlucoseBlend) Defined() bool {
	return b.Status == BlendResolved
}

// Err returns nil for a resolved blend, an ErrBlendUndefined chain otherwise
func (b GlucoseBlend) Err() error {
	switch b.Status {
	case BlendResolved:
		return nil
	case BlendOutOfRange:
		return fmt.Errorf("%w: %w (%v%%)", ErrBlendUndefined, ErrBlendOutOfRange, b.TargetPercent)
	default:
		return fmt.Errorf("%w: %w", ErrBlendUndefined, ErrBlendEmpty)
	}
}

// GlucoseTiers returns the two stocks bracketing targetPercent
func GlucoseTiers(targetPercent float64) (low, high GlucoseTier) {
	if targetPercent < float64(Glucose10) {
		return Glucose5, Glucose10
	}
	return Glucose10, Glucose33
}

// ResolveGlucoseBlend splits targetVolumeMl at targetPercent over the two
// bracketing stocks. The high concentration share is rounded up to the next
// 0.1 ml and the low share takes the remainder, never below zero.
func ResolveGlucoseBlend(targetPercent, targetVolumeMl float64) GlucoseBlend {
	blend := GlucoseBlend{
		Status:         BlendEmpty,
		TargetPercent:  targetPercent,
		TargetVolumeMl: targetVolumeMl,
		Low:            NotApplicable,
		High:           NotApplicable,
	}

	if targetVolumeMl <= 0 || targetPercent <= 0 {
		return blend
	}
	if targetPercent < float64(Glucose5) || targetPercent > float64(Glucose33) {
		blend.Status = BlendOutOfRange
		return blend
	}

	low, high := GlucoseTiers(targetPercent)
	blend.Status = BlendResolved
	blend.LowTier = low
	blend.HighTier = high

	cLow, cHigh := float64(low), float64(high)
	switch targetPercent {
	case cLow:
		blend.Low = Ml(targetVolumeMl)
		return blend
	case cHigh:
		blend.High = Ml(targetVolumeMl)
		return blend
	}

	highRaw := targetVolumeMl * (targetPercent - cLow) / (cHigh - cLow)
	highRounded := math.Ceil(highRaw*10) / 10
	lowAdjusted := math.Max(0, targetVolumeMl-highRounded)

	blend.HighRawMl = highRaw
	blend.High = Ml(highRounded)
	blend.Low = Ml(lowAdjusted)
	return blend
}
