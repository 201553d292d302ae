package calculator

import (
	"fmt"

	"github.com/giygas/pn-calculator/calculator/entities"
)

// Drug is one row of the vial strength table: VialMl of stock hold
// VialAmount of active drug, in Unit.
type Drug struct {
	ID         entities.DrugID `json:"id"`
	Label      string          `json:"label"`
	Unit       string          `json:"unit"`
	VialMl     float64         `json:"vialMl"`
	VialAmount float64         `json:"vialAmount"`
}

// PrelevareMl is the stock volume holding dose units of the drug
func (d Drug) PrelevareMl(dose float64) float64 {
	return dose * d.VialMl / d.VialAmount
}

var drugTable = []Drug{
	{entities.Fentanest, "Fentanest", "mcg", 2, 100},
	{entities.Dopamina, "Dopamina", "mg", 1, 40},
	{entities.Midazolam, "Midazolam", "mg", 1, 5},
	{entities.Dobutamina, "Dobutamina", "mg", 1, 12.5},
	{entities.Noradrenalina, "Noradrenalina", "mg", 1, 2},
	{entities.Lasix, "Lasix", "mg", 2, 20},
	{entities.Sildenafil, "Sildenafil", "mg", 1, 0.8},
	{entities.Fenoldopam, "Fenoldopam", "mg", 2, 20},
	{entities.AcidoEtacrinico, "Acido etacrinico", "mg", 20, 50},
}

var drugsByID = func() map[entities.DrugID]Drug {
	m := make(map[entities.DrugID]Drug, len(drugTable))
	for _, d := range drugTable {
		m[d.ID] = d
	}
	return m
}()

// Drugs returns the vial strength table in charting order
func Drugs() []Drug {
	out := make([]Drug, len(drugTable))
	copy(out, drugTable)
	return out
}

// LookupDrug returns the table row for id
func LookupDrug(id entities.DrugID) (Drug, bool) {
	d, ok := drugsByID[id]
	return d, ok
}

// ComputeDrugPrelevare returns the ml to draw up for dose of drug id
func ComputeDrugPrelevare(id entities.DrugID, dose float64) (float64, error) {
	d, ok := drugsByID[id]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownDrug, id)
	}
	return d.PrelevareMl(dose), nil
}

// speedTargets maps each allowed infusion speed (ml/h) to the syringe
// volume the drawn-up drug is diluted to
var speedTargets = []struct {
	SpeedMlPerHour float64
	TargetMl       float64
}{
	{0.1, 2.5},
	{0.2, 5},
	{0.5, 12},
	{1.0, 24},
}

// AllowedSpeeds returns the closed set of infusion speeds
func AllowedSpeeds() []float64 {
	out := make([]float64, len(speedTargets))
	for i, s := range speedTargets {
		out[i] = s.SpeedMlPerHour
	}
	return out
}

// ComputeDilutionTarget looks up the dilution volume for speed. Speeds
// outside AllowedSpeeds are NotApplicable.
func ComputeDilutionTarget(speed float64) Volume {
	for _, s := range speedTargets {
		if s.SpeedMlPerHour == speed {
			return Ml(s.TargetMl)
		}
	}
	return NotApplicable
}

// DilutionTarget is ComputeDilutionTarget with an error for undefined speeds
func DilutionTarget(speed float64) (float64, error) {
	v := ComputeDilutionTarget(speed)
	if !v.Valid {
		return 0, fmt.Errorf("%w: %v ml/h", ErrDilutionUndefined, speed)
	}
	return v.Ml, nil
}
