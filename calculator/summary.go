package calculator

import (
	"github.com/giygas/pn-calculator/calculator/entities"
)

// DrugComputation is the titration of one charted drug
type DrugComputation struct {
	Drug
	Dose             float64 `json:"dose"`
	SpeedMlPerHour   float64 `json:"speedMlPerHour"`
	PrelevareMl      float64 `json:"prelevareMl"`
	DilutionTargetMl Volume  `json:"dilutionTargetMl"`
	Active           bool    `json:"active"`
}

// ComputeDrug titrates one drug order. Dose and speed are independent:
// the speed only selects the dilution target.
func ComputeDrug(d Drug, order entities.DrugOrder) DrugComputation {
	dose := order.Dose.Float64()
	return DrugComputation{
		Drug:             d,
		Dose:             dose,
		SpeedMlPerHour:   order.Speed,
		PrelevareMl:      d.PrelevareMl(dose),
		DilutionTargetMl: ComputeDilutionTarget(order.Speed),
		Active:           dose > 0,
	}
}

// ComputeDrugs titrates every drug of the table in charting order
func ComputeDrugs(n entities.NutritionData) []DrugComputation {
	out := make([]DrugComputation, 0, len(drugTable))
	for _, d := range drugTable {
		out = append(out, ComputeDrug(d, n.Order(d.ID)))
	}
	return out
}

// ActiveDrugs keeps the drugs with a dose above zero
func ActiveDrugs(drugs []DrugComputation) []DrugComputation {
	var out []DrugComputation
	for _, d := range drugs {
		if d.Active {
			out = append(out, d)
		}
	}
	return out
}

// ComputedNutritionSummary is everything derived from one prescription
type ComputedNutritionSummary struct {
	Volumes           ComponentVolumes  `json:"volumes"`
	GlucoseVolumeMl   float64           `json:"glucoseVolumeMl"`
	Blend             GlucoseBlend      `json:"blend"`
	TotalVolumeMl     float64           `json:"totalVolumeMl"`
	FlowRateMlPerHour float64           `json:"flowRateMlPerHour"`
	Drugs             []DrugComputation `json:"drugs"`
}

// Compute derives the full summary of a normalized prescription
func Compute(n entities.NutritionData) ComputedNutritionSummary {
	glucoseMl := n.GlucoseMl.Float64()
	volumes := ComputeComponentVolumes(n)
	total, flow := ComputeTotals(glucoseMl, volumes)

	return ComputedNutritionSummary{
		Volumes:           volumes,
		GlucoseVolumeMl:   glucoseMl,
		Blend:             ResolveGlucoseBlend(n.GlucosePercent.Float64(), glucoseMl),
		TotalVolumeMl:     total,
		FlowRateMlPerHour: flow,
		Drugs:             ComputeDrugs(n),
	}
}
