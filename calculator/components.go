package calculator

import (
	"github.com/giygas/pn-calculator/calculator/entities"
)

// HoursPerDay is the infusion period the total volume is spread over
const HoursPerDay = 24

// ComponentID identifies a fixed nutrition component
type ComponentID string

const (
	ComponentTPH        ComponentID = "tph"
	ComponentEsafosfina ComponentID = "esafosfina"
	ComponentNaCl       ComponentID = "nacl"
	ComponentKCl        ComponentID = "kcl"
	ComponentMagnesium  ComponentID = "magnesio"
	ComponentCalcium    ComponentID = "calcio"
	ComponentOligo      ComponentID = "oligoelementi"
	ComponentCernevit   ComponentID = "cernevit"
	ComponentSMOF       ComponentID = "smof"
)

// Component is one row of the concentration table: Divisor input units
// yield one ml.
type Component struct {
	ID      ComponentID `json:"id"`
	Label   string      `json:"label"`
	Unit    string      `json:"unit"`
	Divisor float64     `json:"divisor"`
	Field   string      `json:"field"`

	quantity func(n entities.NutritionData) entities.Quantity
}

// Quantity returns the entered amount of this component
func (c Component) Quantity(n entities.NutritionData) float64 {
	return c.quantity(n).Float64()
}

// VolumeMl converts an entered amount into ml
func (c Component) VolumeMl(quantity float64) float64 {
	return quantity / c.Divisor
}

var componentTable = []Component{
	{ComponentTPH, "TPH", "ml", 1, "tphMl", func(n entities.NutritionData) entities.Quantity { return n.TphMl }},
	{ComponentEsafosfina, "Esafosfina", "ml", 1, "esafosfinaMl", func(n entities.NutritionData) entities.Quantity { return n.EsafosfinaMl }},
	{ComponentNaCl, "NaCl", "mEq", 2, "naclMeq", func(n entities.NutritionData) entities.Quantity { return n.NaClMeq }},
	{ComponentKCl, "KCl", "mEq", 2, "kclMeq", func(n entities.NutritionData) entities.Quantity { return n.KClMeq }},
	{ComponentMagnesium, "Magnesio", "mg", 10, "mgMg", func(n entities.NutritionData) entities.Quantity { return n.MagnesiumMg }},
	{ComponentCalcium, "Calcio", "mg", 10, "caMg", func(n entities.NutritionData) entities.Quantity { return n.CalciumMg }},
	{ComponentOligo, "Oligoelementi", "ml", 1, "oligoMl", func(n entities.NutritionData) entities.Quantity { return n.OligoMl }},
	{ComponentCernevit, "Cernevit", "ml", 1, "cernevitMl", func(n entities.NutritionData) entities.Quantity { return n.CernevitMl }},
	{ComponentSMOF, "SMOF Lipids", "ml", 1, "smofMl", func(n entities.NutritionData) entities.Quantity { return n.SmofMl }},
}

// Components returns the concentration table in charting order
func Components() []Component {
	out := make([]Component, len(componentTable))
	copy(out, componentTable)
	return out
}

// ComponentVolume is the draw-up volume of one component
type ComponentVolume struct {
	ID       ComponentID `json:"id"`
	Label    string      `json:"label"`
	Unit     string      `json:"unit"`
	Quantity float64     `json:"quantity"`
	VolumeMl float64     `json:"volumeMl"`
}

// OtherVolume is a free-form component, already expressed in ml
type OtherVolume struct {
	Label    string  `json:"label"`
	VolumeMl float64 `json:"volumeMl"`
}

// ComponentVolumes holds every component volume of a prescription
type ComponentVolumes struct {
	Components []ComponentVolume `json:"components"`
	Other      OtherVolume       `json:"other"`
	Other2     OtherVolume       `json:"other2"`
}

// ComputeComponentVolumes reduces each entered quantity to ml
func ComputeComponentVolumes(n entities.NutritionData) ComponentVolumes {
	out := ComponentVolumes{
		Components: make([]ComponentVolume, 0, len(componentTable)),
		Other:      OtherVolume{Label: n.OtherLabel, VolumeMl: n.OtherMl.Float64()},
		Other2:     OtherVolume{Label: n.Other2Label, VolumeMl: n.Other2Ml.Float64()},
	}

	for _, c := range componentTable {
		q := c.Quantity(n)
		out.Components = append(out.Components, ComponentVolume{
			ID:       c.ID,
			Label:    c.Label,
			Unit:     c.Unit,
			Quantity: q,
			VolumeMl: c.VolumeMl(q),
		})
	}

	return out
}

// ComputeTotals returns the total infusion volume and the hourly flow rate.
// The glucose volume is added as entered, then every component in table
// order, then the two free-form components. Nothing is rounded.
func ComputeTotals(glucoseMl float64, volumes ComponentVolumes) (totalMl, flowMlPerHour float64) {
	totalMl = 0
	totalMl += glucoseMl
	for _, c := range volumes.Components {
		totalMl += c.VolumeMl
	}
	totalMl += volumes.Other.VolumeMl
	totalMl += volumes.Other2.VolumeMl

	return totalMl, FlowRate(totalMl)
}

// FlowRate spreads a total volume over HoursPerDay
func FlowRate(totalMl float64) float64 {
	return totalMl / HoursPerDay
}
