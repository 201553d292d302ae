package entities

import "encoding/json"

// Patient is one charted patient with the active nutrition record.
// BirthDate carries the sheet date in YYYY-MM-DD form and CreatedAt is in
// Unix milliseconds.
type Patient struct {
	ID        string        `json:"id"`
	FirstName string        `json:"firstName"`
	LastName  string        `json:"lastName"`
	BirthDate string        `json:"birthDate"`
	Nutrition NutritionData `json:"nutrition"`
	CreatedAt int64         `json:"createdAt"`
}

type patientFields Patient

// UnmarshalJSON implements json.Unmarshaler. A patient without a nutrition
// record gets DefaultNutrition.
func (p *Patient) UnmarshalJSON(b []byte) error {
	fields := patientFields{Nutrition: DefaultNutrition()}
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	*p = Patient(fields)
	return nil
}
