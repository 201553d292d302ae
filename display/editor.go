package display

import (
	"github.com/giygas/pn-calculator/calculator"
)

const (
	unknownTierLabel = "Glucosio --%"
	outOfRangeLabel  = "Range errato"
	tierRangeLabel   = "5-33%"
)

// MixParts are the four cells of the glucose mix box: the volume of each
// tier (P1 low, P2 high) and their labels
type MixParts struct {
	P1 string `json:"p1"`
	P2 string `json:"p2"`
	L1 string `json:"l1"`
	L2 string `json:"l2"`
}

// GlucoseMix renders a blend for the editor
func (f *Formatter) GlucoseMix(b calculator.GlucoseBlend) MixParts {
	switch b.Status {
	case calculator.BlendResolved:
		return MixParts{
			P1: f.Volume(b.Low),
			P2: f.Volume(b.High),
			L1: b.LowTier.Label(),
			L2: b.HighTier.Label(),
		}
	case calculator.BlendOutOfRange:
		return MixParts{P1: outOfRangeLabel, P2: tierRangeLabel, L1: unknownTierLabel, L2: unknownTierLabel}
	default:
		return MixParts{P1: Placeholder, P2: Placeholder, L1: unknownTierLabel, L2: unknownTierLabel}
	}
}

// GlucoseMix renders a blend with the default formatter
func GlucoseMix(b calculator.GlucoseBlend) MixParts {
	return std.GlucoseMix(b)
}

// DilutionLabel is the "Porta a" cell of a drug order, e.g. "2,5 ml"
func (f *Formatter) DilutionLabel(speed float64) string {
	target := calculator.ComputeDilutionTarget(speed)
	if !target.Valid {
		return Placeholder
	}
	return f.Simple(target.Ml) + " ml"
}

// DilutionLabel renders with the default formatter
func DilutionLabel(speed float64) string {
	return std.DilutionLabel(speed)
}

// ComponentCell is one formatted row of the volume table
type ComponentCell struct {
	ID     calculator.ComponentID `json:"id"`
	Label  string                 `json:"label"`
	Volume string                 `json:"volume"`
}

// DrugCell is one formatted drug block
type DrugCell struct {
	ID        string `json:"id"`
	Label     string `json:"label"`
	Prelevare string `json:"prelevare"`
	PortaA    string `json:"portaA"`
}

// Summary is the editor rendering of a computed prescription
type Summary struct {
	Components []ComponentCell `json:"components"`
	Other      string          `json:"other"`
	Other2     string          `json:"other2"`
	Glucose    string          `json:"glucose"`
	GlucoseMix MixParts        `json:"glucoseMix"`
	Total      string          `json:"total"`
	FlowRate   string          `json:"flowRate"`
	Drugs      []DrugCell      `json:"drugs"`
}

// Summarize formats every figure of s the way the editor shows it
func (f *Formatter) Summarize(s calculator.ComputedNutritionSummary) Summary {
	out := Summary{
		Components: make([]ComponentCell, 0, len(s.Volumes.Components)),
		Other:      f.Ml(s.Volumes.Other.VolumeMl),
		Other2:     f.Ml(s.Volumes.Other2.VolumeMl),
		Glucose:    f.Ml(s.GlucoseVolumeMl),
		GlucoseMix: f.GlucoseMix(s.Blend),
		Total:      f.Ml(s.TotalVolumeMl),
		FlowRate:   f.Flow(s.FlowRateMlPerHour),
		Drugs:      make([]DrugCell, 0, len(s.Drugs)),
	}

	for _, c := range s.Volumes.Components {
		out.Components = append(out.Components, ComponentCell{ID: c.ID, Label: c.Label, Volume: f.Ml(c.VolumeMl)})
	}
	for _, d := range s.Drugs {
		out.Drugs = append(out.Drugs, DrugCell{
			ID:        string(d.ID),
			Label:     d.Label,
			Prelevare: f.Ml(d.PrelevareMl),
			PortaA:    f.DilutionLabel(d.SpeedMlPerHour),
		})
	}

	return out
}
