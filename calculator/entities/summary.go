package entities

// SummaryRequest carries the patient details sent to the clinical summarizer
type SummaryRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	BirthDate string `json:"birthDate"`
	Notes     string `json:"notes,omitempty"`
}

// SummaryRequestFor builds a request from a stored patient and optional notes
func SummaryRequestFor(p Patient, notes string) SummaryRequest {
	return SummaryRequest{
		FirstName: p.FirstName,
		LastName:  p.LastName,
		BirthDate: p.BirthDate,
		Notes:     notes,
	}
}
