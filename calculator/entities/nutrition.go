// Package entities holds the records exchanged between the calculator, the
// patient store and the HTTP layer. JSON field names follow the historical
// patient collection format so stored collections load unchanged.
package entities

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// DrugID identifies one of the fixed-concentration infusion drugs
type DrugID string

const (
	Fentanest       DrugID = "fentanest"
	Dopamina        DrugID = "dopamina"
	Midazolam       DrugID = "midazolam"
	Dobutamina      DrugID = "dobutamina"
	Noradrenalina   DrugID = "noradrenalina"
	Lasix           DrugID = "lasix"
	Sildenafil      DrugID = "sildenafil"
	Fenoldopam      DrugID = "fenoldopam"
	AcidoEtacrinico DrugID = "acidoEtacrinico"
)

// DrugIDs lists the charted drugs in display order
var DrugIDs = []DrugID{
	Fentanest,
	Dopamina,
	Midazolam,
	Dobutamina,
	Noradrenalina,
	Lasix,
	Sildenafil,
	Fenoldopam,
	AcidoEtacrinico,
}

// DefaultSpeed is the infusion speed (ml/h) of a drug order nobody touched
const DefaultSpeed = 0.1

const (
	DefaultOtherLabel  = "Nuovo componente"
	DefaultOther2Label = "Nuovo componente 2"
)

// DrugOrder is the dose and infusion speed charted for one drug
type DrugOrder struct {
	Dose  Quantity `json:"dose"`
	Speed float64  `json:"speed"`
}

// NutritionData is the parenteral nutrition prescription of one patient.
// Drug orders are serialized flat as <drugId>Dose and <drugId>Speed.
type NutritionData struct {
	GlucosePercent Quantity `json:"glucosioPerc"`
	GlucoseMl      Quantity `json:"glucosioMl"`

	TphMl        Quantity `json:"tphMl"`
	EsafosfinaMl Quantity `json:"esafosfinaMl"`
	NaClMeq      Quantity `json:"naclMeq"`
	KClMeq       Quantity `json:"kclMeq"`
	MagnesiumMg  Quantity `json:"mgMg"`
	CalciumMg    Quantity `json:"caMg"`
	OligoMl      Quantity `json:"oligoMl"`
	CernevitMl   Quantity `json:"cernevitMl"`
	SmofMl       Quantity `json:"smofMl"`

	OtherMl     Quantity `json:"altroMl"`
	OtherLabel  string   `json:"altroLabel"`
	Other2Ml    Quantity `json:"altro2Ml"`
	Other2Label string   `json:"altro2Label"`

	Drugs map[DrugID]DrugOrder `json:"-"`
}

// nutritionFields has the same layout as NutritionData without its JSON methods
type nutritionFields NutritionData

// DefaultNutrition returns the all-zero record every input is merged against
func DefaultNutrition() NutritionData {
	n := NutritionData{
		OtherLabel:  DefaultOtherLabel,
		Other2Label: DefaultOther2Label,
		Drugs:       make(map[DrugID]DrugOrder, len(DrugIDs)),
	}
	for _, id := range DrugIDs {
		n.Drugs[id] = DrugOrder{Speed: DefaultSpeed}
	}
	return n
}

// Normalize fills the gaps of a partially entered record: every known drug
// gets an order, unset speeds fall back to DefaultSpeed and non-finite
// quantities become zero. It runs once, where input enters the system.
func (n *NutritionData) Normalize() {
	for _, q := range n.quantities() {
		*q = finite(*q)
	}

	if n.Drugs == nil {
		n.Drugs = make(map[DrugID]DrugOrder, len(DrugIDs))
	}
	for _, id := range DrugIDs {
		if _, ok := n.Drugs[id]; !ok {
			n.Drugs[id] = DrugOrder{}
		}
	}
	for id, order := range n.Drugs {
		order.Dose = finite(order.Dose)
		if order.Speed == 0 || math.IsNaN(order.Speed) || math.IsInf(order.Speed, 0) {
			order.Speed = DefaultSpeed
		}
		n.Drugs[id] = order
	}
}

// Order returns the drug order for id, or a zero order at DefaultSpeed
func (n NutritionData) Order(id DrugID) DrugOrder {
	if order, ok := n.Drugs[id]; ok {
		return order
	}
	return DrugOrder{Speed: DefaultSpeed}
}

// Quantities returns every numeric field keyed by its JSON name, drug doses included
func (n NutritionData) Quantities() map[string]Quantity {
	out := map[string]Quantity{
		"glucosioPerc": n.GlucosePercent,
		"glucosioMl":   n.GlucoseMl,
		"tphMl":        n.TphMl,
		"esafosfinaMl": n.EsafosfinaMl,
		"naclMeq":      n.NaClMeq,
		"kclMeq":       n.KClMeq,
		"mgMg":         n.MagnesiumMg,
		"caMg":         n.CalciumMg,
		"oligoMl":      n.OligoMl,
		"cernevitMl":   n.CernevitMl,
		"smofMl":       n.SmofMl,
		"altroMl":      n.OtherMl,
		"altro2Ml":     n.Other2Ml,
	}
	for id, order := range n.Drugs {
		out[string(id)+"Dose"] = order.Dose
	}
	return out
}

func (n *NutritionData) quantities() []*Quantity {
	return []*Quantity{
		&n.GlucosePercent, &n.GlucoseMl,
		&n.TphMl, &n.EsafosfinaMl, &n.NaClMeq, &n.KClMeq, &n.MagnesiumMg,
		&n.CalciumMg, &n.OligoMl, &n.CernevitMl, &n.SmofMl,
		&n.OtherMl, &n.Other2Ml,
	}
}

// MarshalJSON implements json.Marshaler
func (n NutritionData) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(nutritionFields(n))
	if err != nil {
		return nil, err
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, err
	}

	for id, order := range n.Drugs {
		dose, err := json.Marshal(order.Dose)
		if err != nil {
			return nil, fmt.Errorf("drug %s dose: %w", id, err)
		}
		speed, err := json.Marshal(order.Speed)
		if err != nil {
			return nil, fmt.Errorf("drug %s speed: %w", id, err)
		}
		fields[string(id)+"Dose"] = dose
		fields[string(id)+"Speed"] = speed
	}

	return json.Marshal(fields)
}

// UnmarshalJSON implements json.Unmarshaler. Keys absent from b keep the
// value of DefaultNutrition, so a record without labels gets the default ones.
func (n *NutritionData) UnmarshalJSON(b []byte) error {
	fields := nutritionFields(DefaultNutrition())
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	fields.Drugs = make(map[DrugID]DrugOrder)
	for key, value := range raw {
		var id DrugID
		isDose := false
		switch {
		case strings.HasSuffix(key, "Dose"):
			id, isDose = DrugID(strings.TrimSuffix(key, "Dose")), true
		case strings.HasSuffix(key, "Speed"):
			id = DrugID(strings.TrimSuffix(key, "Speed"))
		default:
			continue
		}
		if id == "" {
			continue
		}

		var q Quantity
		if err := json.Unmarshal(value, &q); err != nil {
			return fmt.Errorf("field %s: %w", key, err)
		}

		order := fields.Drugs[id]
		if isDose {
			order.Dose = q
		} else {
			order.Speed = float64(q)
		}
		fields.Drugs[id] = order
	}

	*n = NutritionData(fields)
	return nil
}
