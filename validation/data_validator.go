// Package validation checks patient records and free text before they reach
// the patient store or an outbound API.
package validation

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/giygas/pn-calculator/calculator/entities"
	"github.com/giygas/pn-calculator/interfaces"
)

const (
	maxNameLength  = 100
	maxLabelLength = 60
	maxInputLength = 500
	maxPercent     = 100
	birthDateForm  = "2006-01-02"
)

// Pre-compiled regex patterns, compiled once at package initialization
var (
	// Names: letters of any script, spaces, apostrophes, hyphens and periods
	nameRegex = regexp.MustCompile(`^[\p{L}\s'\-\.]+$`)

	// Labels and notes: names plus digits and clinical punctuation
	textRegex = regexp.MustCompile(`^[\p{L}\p{N}\s'\-\.,;:()/%+°]+$`)

	// Dangerous patterns as strings (faster than regex for simple substring matching)
	dangerousPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"onclick=", "onmouseover=", "onfocus=", "onblur=", "onchange=", "onsubmit=",
		"eval(", "expression(", "url(", "@import", "binding(", "behavior(",
		// SQL injection patterns
		"' or ", "\" or ", "union select", "drop table", "delete from", "insert into",
		"/*", "*/", "exec(", "execute(",
		// Command injection patterns
		"`", "$(", "${",
		// Path traversal patterns
		"../", "..\\", "%2e%2e", "file://",
		// NoSQL injection patterns
		"{$ne:", "{$gt:", "{$where:", "{$or:", "{$regex:", "{$expr:",
	}
)

// ErrInvalid is wrapped by every validation failure
var ErrInvalid = errors.New("invalid input")

// DataValidatorImpl implements the interfaces.DataValidator interface
type DataValidatorImpl struct{}

// NewDataValidator creates a new data validator
func NewDataValidator() interfaces.DataValidator {
	return &DataValidatorImpl{}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// ValidateInput validates free text typed by a user, such as summary notes
func (v *DataValidatorImpl) ValidateInput(input string) error {
	if strings.TrimSpace(input) == "" {
		return invalid("input cannot be empty")
	}

	if utf8.RuneCountInString(input) > maxInputLength {
		return invalid("input too long: maximum %d characters", maxInputLength)
	}

	if err := checkDangerous(input); err != nil {
		return err
	}

	if !textRegex.MatchString(input) {
		return invalid("input contains invalid characters")
	}

	if v.hasExcessiveRepetition(input) {
		return invalid("input contains excessive character repetition")
	}

	return nil
}

// ValidateNutrition checks that every quantity is a finite non-negative
// number, the glucose concentration is a percentage and both free-form
// labels are safe. Drug speeds outside the dilution table are accepted:
// they simply have no dilution target.
func (v *DataValidatorImpl) ValidateNutrition(n *entities.NutritionData) error {
	if n == nil {
		return invalid("nutrition is nil")
	}

	for field, q := range n.Quantities() {
		f := q.Float64()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return invalid("%s is not a finite number", field)
		}
		if f < 0 {
			return invalid("%s cannot be negative: %g", field, f)
		}
	}

	if p := n.GlucosePercent.Float64(); p > maxPercent {
		return invalid("glucosioPerc must be between 0 and %d, got %g", maxPercent, p)
	}

	for id, order := range n.Drugs {
		if math.IsNaN(order.Speed) || math.IsInf(order.Speed, 0) {
			return invalid("%sSpeed is not a finite number", id)
		}
		if order.Speed < 0 {
			return invalid("%sSpeed cannot be negative: %g", id, order.Speed)
		}
	}

	if err := v.validateLabel("altroLabel", n.OtherLabel); err != nil {
		return err
	}
	return v.validateLabel("altro2Label", n.Other2Label)
}

// ValidatePatient checks names, birth date and the nutrition record
func (v *DataValidatorImpl) ValidatePatient(p *entities.Patient) error {
	if p == nil {
		return invalid("patient is nil")
	}

	if err := v.validateName("firstName", p.FirstName); err != nil {
		return err
	}
	if err := v.validateName("lastName", p.LastName); err != nil {
		return err
	}

	if strings.TrimSpace(p.BirthDate) == "" {
		return invalid("birthDate is required")
	}
	if _, err := time.Parse(birthDateForm, p.BirthDate); err != nil {
		return invalid("birthDate must be in YYYY-MM-DD format, got %q", p.BirthDate)
	}

	return v.ValidateNutrition(&p.Nutrition)
}

// ValidatePatientID checks that id is a UUID
func (v *DataValidatorImpl) ValidatePatientID(id string) error {
	if strings.TrimSpace(id) == "" {
		return invalid("patient id cannot be empty")
	}
	if _, err := uuid.Parse(id); err != nil {
		return invalid("patient id must be a UUID")
	}
	return nil
}

func (v *DataValidatorImpl) validateName(field, name string) error {
	if strings.TrimSpace(name) == "" {
		return invalid("%s is required", field)
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return invalid("%s too long: maximum %d characters", field, maxNameLength)
	}
	if err := checkDangerous(name); err != nil {
		return err
	}
	if !nameRegex.MatchString(name) {
		return invalid("%s contains invalid characters. Only letters, spaces, hyphens, apostrophes and periods are allowed", field)
	}
	if v.hasExcessiveRepetition(name) {
		return invalid("%s contains excessive character repetition", field)
	}
	return nil
}

// validateLabel accepts an empty label: the sheet falls back to a default
func (v *DataValidatorImpl) validateLabel(field, label string) error {
	if label == "" {
		return nil
	}
	if utf8.RuneCountInString(label) > maxLabelLength {
		return invalid("%s too long: maximum %d characters", field, maxLabelLength)
	}
	if err := checkDangerous(label); err != nil {
		return err
	}
	if strings.TrimSpace(label) != "" && !textRegex.MatchString(label) {
		return invalid("%s contains invalid characters", field)
	}
	return nil
}

func checkDangerous(input string) error {
	lowerInput := strings.ToLower(input)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lowerInput, pattern) {
			return invalid("input contains potentially dangerous content")
		}
	}
	return nil
}

// hasExcessiveRepetition checks for the same character repeated more than 10 times consecutively
func (v *DataValidatorImpl) hasExcessiveRepetition(input string) bool {
	for i := 0; i < len(input)-10; i++ {
		allSame := true
		for j := 1; j <= 10; j++ {
			if input[i] != input[i+j] {
				allSame = false
				break
			}
		}
		if allSame {
			return true
		}
	}
	return false
}
