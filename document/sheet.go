// Package document builds the printable prescription sheet handed to the
// ward. Every figure is recomputed from the patient record through the
// calculator so the sheet never depends on what an editor last displayed.
package document

import (
	"fmt"
	"strings"
	"time"

	"github.com/giygas/pn-calculator/calculator"
	"github.com/giygas/pn-calculator/calculator/entities"
	"github.com/giygas/pn-calculator/display"
)

const (
	otherFallbackLabel  = "Altro 1"
	other2FallbackLabel = "Altro 2"
	dateLayout          = "2006-01-02"
)

// Row is one component line: label, entered dosage and volume in ml
type Row struct {
	Label  string `json:"label"`
	Dosage string `json:"dosage"`
	Volume string `json:"volume"`
}

// GlucoseRow is the glucose line. MixLines holds one entry per stock tier
// drawn up; when the blend is undefined it is empty and Volume carries the
// raw glucose volume.
type GlucoseRow struct {
	Label    string   `json:"label"`
	Dosage   string   `json:"dosage"`
	MixLines []string `json:"mixLines,omitempty"`
	Volume   string   `json:"volume,omitempty"`
}

// DrugRow is one entry of the drug block
type DrugRow struct {
	Label     string `json:"label"`
	Dose      string `json:"dose"`
	Speed     string `json:"speed"`
	PortaA    string `json:"portaA"`
	Prelevare string `json:"prelevare"`
}

// Sheet is the fully formatted printable sheet of one patient
type Sheet struct {
	LastName  string     `json:"lastName"`
	FirstName string     `json:"firstName"`
	Date      string     `json:"date"`
	Glucose   GlucoseRow `json:"glucose"`
	Rows      []Row      `json:"rows"`
	Total     string     `json:"total"`
	FlowRate  string     `json:"flowRate"`
	Drugs     []DrugRow  `json:"drugs,omitempty"`
}

// Build formats the sheet of p. A nil formatter uses the display default.
func Build(p entities.Patient, f *display.Formatter) Sheet {
	if f == nil {
		f = display.Default()
	}
	n := p.Nutrition

	glucoseMl := n.GlucoseMl.Float64()
	volumes := calculator.ComputeComponentVolumes(n)
	total, flow := calculator.ComputeTotals(glucoseMl, volumes)
	blend := calculator.ResolveGlucoseBlend(n.GlucosePercent.Float64(), glucoseMl)

	sheet := Sheet{
		LastName:  p.LastName,
		FirstName: p.FirstName,
		Date:      sheetDate(p.BirthDate),
		Glucose:   glucoseRow(f, blend, n.GlucosePercent.Float64(), glucoseMl),
		Rows:      make([]Row, 0, len(volumes.Components)+2),
		Total:     f.Ml(total) + " ml",
		FlowRate:  f.Flow(flow) + " ml/h",
	}

	for _, c := range volumes.Components {
		sheet.Rows = append(sheet.Rows, Row{
			Label:  c.Label,
			Dosage: f.Ml(c.Quantity) + " " + c.Unit,
			Volume: f.Ml(c.VolumeMl),
		})
	}
	sheet.Rows = append(sheet.Rows,
		otherRow(f, volumes.Other, otherFallbackLabel),
		otherRow(f, volumes.Other2, other2FallbackLabel),
	)

	for _, d := range calculator.ActiveDrugs(calculator.ComputeDrugs(n)) {
		sheet.Drugs = append(sheet.Drugs, DrugRow{
			Label:     drugLabel(f, d.Drug),
			Dose:      f.Simple(d.Dose) + " " + d.Unit,
			Speed:     f.Simple(d.SpeedMlPerHour) + " ml/h",
			PortaA:    f.DilutionLabel(d.SpeedMlPerHour),
			Prelevare: f.Ml(d.PrelevareMl) + " ml",
		})
	}

	return sheet
}

func glucoseRow(f *display.Formatter, blend calculator.GlucoseBlend, percent, volumeMl float64) GlucoseRow {
	row := GlucoseRow{
		Label:  "GLUCOSIO " + f.Simple(percent) + "%",
		Dosage: f.Ml(volumeMl) + " ml",
	}

	if !blend.Defined() {
		row.Volume = f.Ml(volumeMl)
		return row
	}

	add := func(tier calculator.GlucoseTier, v calculator.Volume) {
		if v.Valid && v.Ml > 0 {
			row.MixLines = append(row.MixLines, tier.Label()+" -> "+f.Ml(v.Ml)+" ml")
		}
	}
	add(blend.LowTier, blend.Low)
	add(blend.HighTier, blend.High)

	return row
}

func otherRow(f *display.Formatter, o calculator.OtherVolume, fallback string) Row {
	label := strings.TrimSpace(o.Label)
	if label == "" {
		label = fallback
	}
	return Row{
		Label:  label,
		Dosage: f.Ml(o.VolumeMl) + " ml",
		Volume: f.Ml(o.VolumeMl),
	}
}

// drugLabel renders the vial strength, e.g. "Dopamina 40mg/1ml"
func drugLabel(f *display.Formatter, d calculator.Drug) string {
	return fmt.Sprintf("%s %s%s/%sml", d.Label, f.Simple(d.VialAmount), d.Unit, f.Simple(d.VialMl))
}

// sheetDate renders a YYYY-MM-DD date as d/m/yyyy. Anything else is shown as entered.
func sheetDate(s string) string {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return s
	}
	return fmt.Sprintf("%d/%d/%d", t.Day(), int(t.Month()), t.Year())
}

var fileNameReplacer = strings.NewReplacer(
	"/", "_", "\\", "_", ":", "_", "*", "_", "?", "_",
	"\"", "_", "<", "_", ">", "_", "|", "_",
)

// FileName returns the download name of the sheet of p
func FileName(p entities.Patient) string {
	return fileNameReplacer.Replace(fmt.Sprintf("Scheda_%s_%s.txt", p.LastName, p.FirstName))
}
