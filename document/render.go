package document

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/language"
	"golang.org/x/text/transform"
)

// Width is the number of columns of a rendered sheet, sized for an A5 page
const Width = 64

const (
	labelCol  = 24
	dosageCol = 16
)

var upper = cases.Upper(language.Italian)

// Render writes sheet as fixed-width UTF-8 text
func Render(w io.Writer, sheet Sheet) error {
	bw := bufio.NewWriter(w)
	sw := &sheetWriter{w: bw}

	sw.rule('=')
	sw.line(fmt.Sprintf("COGNOME: %s", upper.String(sheet.LastName)))
	sw.line(fmt.Sprintf("NOME: %s", sheet.FirstName))
	sw.line(fmt.Sprintf("DATA SCHEDA: %s", sheet.Date))
	sw.rule('=')

	sw.columns("Componente", "Dosaggio", "Volume (ml)")
	sw.rule('-')

	g := sheet.Glucose
	switch len(g.MixLines) {
	case 0:
		sw.columns(g.Label, g.Dosage, g.Volume)
	default:
		sw.columns(g.Label, g.Dosage, g.MixLines[0])
		for _, l := range g.MixLines[1:] {
			sw.columns("", "", l)
		}
	}
	sw.rule('-')

	for _, r := range sheet.Rows {
		sw.columns(r.Label, r.Dosage, r.Volume)
	}

	sw.rule('=')
	sw.split("VOLUME TOTALE:", sheet.Total)
	sw.split("VELOCITÀ INFUSIONE:", sheet.FlowRate)

	if len(sheet.Drugs) > 0 {
		sw.blank()
		sw.line("FARMACI E SEDAZIONE")
		sw.rule('-')
		for _, d := range sheet.Drugs {
			sw.line(d.Label)
			sw.line(fmt.Sprintf("  Dose: %s   Vel: %s   Porta a: %s", d.Dose, d.Speed, d.PortaA))
			sw.split("", "Prelevare: "+d.Prelevare)
			sw.rule('-')
		}
	}

	if sw.err != nil {
		return sw.err
	}
	return bw.Flush()
}

// RenderWindows1252 writes sheet encoded as Windows-1252 for print spoolers
// that do not read UTF-8. Characters outside the code page are replaced.
func RenderWindows1252(w io.Writer, sheet Sheet) error {
	enc := encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder())
	ew := transform.NewWriter(w, enc)
	if err := Render(ew, sheet); err != nil {
		return err
	}
	return ew.Close()
}

// sheetWriter keeps the first write error so Render can check once
type sheetWriter struct {
	w   *bufio.Writer
	err error
}

func (s *sheetWriter) line(text string) {
	if s.err != nil {
		return
	}
	_, s.err = s.w.WriteString(strings.TrimRight(text, " ") + "\n")
}

func (s *sheetWriter) blank() {
	s.line("")
}

func (s *sheetWriter) rule(c rune) {
	s.line(strings.Repeat(string(c), Width))
}

// columns lays out a label, a dosage and a right aligned volume
func (s *sheetWriter) columns(label, dosage, volume string) {
	left := pad(label, labelCol) + pad(dosage, dosageCol)
	s.split(left, volume)
}

// split writes left and right aligned text on one line, or on two when
// they do not fit
func (s *sheetWriter) split(left, right string) {
	gap := Width - runeLen(left) - runeLen(right)
	if gap >= 1 {
		s.line(left + strings.Repeat(" ", gap) + right)
		return
	}
	s.line(left)
	s.line(strings.Repeat(" ", max(0, Width-runeLen(right))) + right)
}

func pad(s string, width int) string {
	n := runeLen(s)
	if n >= width {
		return s + " "
	}
	return s + strings.Repeat(" ", width-n)
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
