package lbdomain

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	serviceIdRe = regexp.MustCompile(`^[A-Za-z0-9._-]+$`)
	labelRe     = regexp.MustCompile(`^[a-z0-9._-]+$`)
)

func validationErrorf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func DefaultConfig() Config {
	return Config{
		Heartbeat: Heartbeat{
			Warning: Int64(DefaultWarning),
			Error:   Int64(DefaultError),
		},
		Labels: []string{},
	}
}

func ValidateServiceId(id string) error {
	if !serviceIdRe.MatchString(id) {
		return validationErrorf("bad service id: %q", id)
	}

	return nil
}

// label names as used in routing config. unlike NormalizeLabels, "all" is fine here.
func ValidateLabel(label string) error {
	if !labelRe.MatchString(label) {
		return validationErrorf("bad label: %q", label)
	}

	return nil
}

// lower-cases, trims, dedups and sorts. "all" is implicit so it's dropped.
func NormalizeLabels(labels []string) ([]string, error) {
	seen := map[string]bool{}
	normalized := []string{}

	for _, label := range labels {
		label = strings.ToLower(strings.TrimSpace(label))
		if label == "" || label == LabelAll || seen[label] {
			continue
		}

		if !labelRe.MatchString(label) {
			return nil, validationErrorf("bad label: %q", label)
		}

		seen[label] = true
		normalized = append(normalized, label)
	}

	if len(normalized) > MaxLabels {
		return nil, validationErrorf("too many labels: %d (max %d)", len(normalized), MaxLabels)
	}

	sort.Strings(normalized)

	return normalized, nil
}

// error wins: if warning > error, warning is dropped
func NormalizeHeartbeat(warning *int64, errorAfter *int64) (Heartbeat, error) {
	if warning != nil && *warning < 0 {
		return Heartbeat{}, validationErrorf("negative warning threshold: %d", *warning)
	}
	if errorAfter != nil && *errorAfter < 0 {
		return Heartbeat{}, validationErrorf("negative error threshold: %d", *errorAfter)
	}

	if warning != nil && errorAfter != nil && *warning > *errorAfter {
		warning = nil
	}

	hb := Heartbeat{}
	if warning != nil {
		hb.Warning = Int64(*warning)
	}
	if errorAfter != nil {
		hb.Error = Int64(*errorAfter)
	}

	return hb, nil
}

// TriggerInput is a validated trigger request. nil/empty fields keep what's stored.
type TriggerInput struct {
	Labels    []string   // empty = keep labels
	Heartbeat *Heartbeat // nil = keep thresholds
}

func NewTriggerInput(labels []string, warning *int64, errorAfter *int64) (TriggerInput, error) {
	normalizedLabels, err := NormalizeLabels(labels)
	if err != nil {
		return TriggerInput{}, err
	}

	input := TriggerInput{Labels: normalizedLabels}

	// supplying either threshold replaces both
	if warning != nil || errorAfter != nil {
		hb, err := NormalizeHeartbeat(warning, errorAfter)
		if err != nil {
			return TriggerInput{}, err
		}

		input.Heartbeat = &hb
	}

	return input, nil
}

// returns the new config. labels only change if the input names some.
func (c Config) ApplyTrigger(input TriggerInput) Config {
	next := Config{
		Heartbeat: c.Heartbeat,
		Labels:    c.Labels,
	}

	if len(input.Labels) > 0 {
		next.Labels = append([]string{}, input.Labels...)
	}

	if input.Heartbeat != nil {
		next.Heartbeat = *input.Heartbeat
	}

	if next.Labels == nil {
		next.Labels = []string{}
	}

	return next
}

// label index changes going from c to next
func (c Config) LabelDiff(next Config) (added []string, removed []string) {
	old := map[string]bool{}
	for _, label := range c.Labels {
		old[label] = true
	}

	current := map[string]bool{}
	for _, label := range next.Labels {
		current[label] = true

		if !old[label] {
			added = append(added, label)
		}
	}

	for _, label := range c.Labels {
		if !current[label] {
			removed = append(removed, label)
		}
	}

	return added, removed
}

func (c Config) Equal(other Config) bool {
	if !int64PtrEqual(c.Heartbeat.Warning, other.Heartbeat.Warning) ||
		!int64PtrEqual(c.Heartbeat.Error, other.Heartbeat.Error) {
		return false
	}

	if len(c.Labels) != len(other.Labels) {
		return false
	}

	for i := range c.Labels {
		if c.Labels[i] != other.Labels[i] {
			return false
		}
	}

	return true
}

func int64PtrEqual(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	return *a == *b
}
