package domain

import "fmt"

// ConstraintType says whether a constraint must hold or is a preference.
type ConstraintType string

const (
	ConstraintHard ConstraintType = "hard"
	ConstraintSoft ConstraintType = "soft"
)

// Validate checks if the constraint type is valid
func (c ConstraintType) Validate() error {
	switch c {
	case ConstraintHard, ConstraintSoft:
		return nil
	default:
		return fmt.Errorf("invalid constraint type %q: must be hard or soft", string(c))
	}
}

// Confidence grades how sure the author is about an assumption.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// Validate checks if the confidence level is valid
func (c Confidence) Validate() error {
	switch c {
	case ConfidenceLow, ConfidenceMedium, ConfidenceHigh:
		return nil
	default:
		return fmt.Errorf("invalid confidence %q: must be low, medium, or high", string(c))
	}
}

// Rank orders confidence levels; higher is more certain.
func (c Confidence) Rank() int {
	switch c {
	case ConfidenceHigh:
		return 3
	case ConfidenceMedium:
		return 2
	case ConfidenceLow:
		return 1
	default:
		return 0
	}
}
