package models

import (
	"errors"
	"fmt"
	"strings"
)

// Quality is the categorical confidence label attached to every observation.
// Labels are totally ordered: poor < questionable < good < excellent.
type Quality string

const (
	QualityPoor         Quality = "poor"
	QualityQuestionable Quality = "questionable"
	QualityGood         Quality = "good"
	QualityExcellent    Quality = "excellent"
)

// qualityWeights is the single weight table used for threshold filtering,
// weighted averaging and the precomputed quality_weight column.
var qualityWeights = map[Quality]float64{
	QualityPoor:         0.3,
	QualityQuestionable: 0.5,
	QualityGood:         0.8,
	QualityExcellent:    1.0,
}

var qualityOrder = []Quality{QualityPoor, QualityQuestionable, QualityGood, QualityExcellent}

// ErrInvalidQuality is the sentinel wrapped by InvalidQualityError.
var ErrInvalidQuality = errors.New("invalid quality")

// InvalidQualityError reports a label outside the recognised set.
type InvalidQualityError struct {
	Value string
}

func (e *InvalidQualityError) Error() string {
	return fmt.Sprintf("invalid quality %q: expected one of poor, questionable, good, excellent", e.Value)
}

// Unwrap allows errors.Is(err, ErrInvalidQuality)
func (e *InvalidQualityError) Unwrap() error {
	return ErrInvalidQuality
}

// IsTransient returns false as a bad label never becomes valid on retry
func (e *InvalidQualityError) IsTransient() bool {
	return false
}

// Qualities returns all labels in ascending order.
func Qualities() []Quality {
	out := make([]Quality, len(qualityOrder))
	copy(out, qualityOrder)
	return out
}

// ParseQuality normalises case and surrounding whitespace before validating.
func ParseQuality(s string) (Quality, error) {
	q := Quality(strings.ToLower(strings.TrimSpace(s)))
	if !q.Valid() {
		return "", &InvalidQualityError{Value: s}
	}
	return q, nil
}

// Valid reports whether q is one of the four recognised labels.
func (q Quality) Valid() bool {
	_, ok := qualityWeights[q]
	return ok
}

// WeightOf maps a label to its numeric weight.
func WeightOf(q Quality) (float64, error) {
	w, ok := qualityWeights[q]
	if !ok {
		return 0, &InvalidQualityError{Value: string(q)}
	}
	return w, nil
}

// MeetsThreshold reports whether q is at least as good as threshold.
func MeetsThreshold(q, threshold Quality) (bool, error) {
	w, err := WeightOf(q)
	if err != nil {
		return false, err
	}
	t, err := WeightOf(threshold)
	if err != nil {
		return false, err
	}
	return w >= t, nil
}
