package marketing

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidTransition is returned for a status change the lifecycle does
	// not allow.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrInvalidDependency is returned when a step depends on a step that
	// does not precede it.
	ErrInvalidDependency = errors.New("invalid step dependency")
	// ErrInvalidMetric is returned for a metric snapshot with a negative
	// count or confidence.
	ErrInvalidMetric = errors.New("invalid metric")
)

// Validate rejects negative counts and confidence.
func (m Metric) Validate() error {
	for _, c := range []struct {
		name string
		v    float64
	}{
		{"impressions", m.Impressions},
		{"engagements", m.Engagements},
		{"conversions", m.Conversions},
		{"confidence", m.Confidence},
	} {
		if c.v < 0 {
			return fmt.Errorf("%w: %s is %g", ErrInvalidMetric, c.name, c.v)
		}
	}
	return nil
}

var transitions = map[Status][]Status{
	StatusDraft:  {StatusActive},
	StatusActive: {StatusPaused},
	StatusPaused: {StatusActive},
}

// SetStatus moves f to status. Setting the current status is a no-op.
func (f *Flow) SetStatus(status Status, now time.Time) error {
	if !status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, status)
	}
	if f.Status == status {
		return nil
	}
	for _, next := range transitions[f.Status] {
		if next == status {
			f.Status = status
			f.UpdatedAt = now.UTC()
			return nil
		}
	}
	return fmt.Errorf("%w: %s to %s", ErrInvalidTransition, f.Status, status)
}

// AttachABTest adds or replaces the named test.
func (f *Flow) AttachABTest(name string, test ABTest, now time.Time) error {
	if name == "" {
		return errors.New("a/b test name is required")
	}
	var total float64
	for _, v := range test.Variants {
		if v.Distribution < 0 {
			return fmt.Errorf("a/b test %q: variant %q has negative distribution %.1f%%", name, v.ID, v.Distribution)
		}
		total += v.Distribution
	}
	if total > 100 {
		return fmt.Errorf("a/b test %q: variant distributions sum to %.1f%%", name, total)
	}
	for i, m := range test.Metrics {
		if err := m.Validate(); err != nil {
			return fmt.Errorf("a/b test %q: metric %d: %w", name, i, err)
		}
	}
	if test.ID == "" {
		test.ID = name
	}
	if f.ABTests == nil {
		f.ABTests = make(map[string]ABTest)
	}
	f.ABTests[name] = test
	f.UpdatedAt = now.UTC()
	return nil
}

// ValidateDependencies checks that step IDs are unique and that every
// dependency names an earlier step.
func (f *Flow) ValidateDependencies() error {
	seen := make(map[string]bool, len(f.Steps))
	for i, s := range f.Steps {
		for _, dep := range s.DependsOn {
			if !seen[dep] {
				return fmt.Errorf("%w: step %d (%s) depends on %q which does not precede it", ErrInvalidDependency, i, s.ID, dep)
			}
		}
		if seen[s.ID] {
			return fmt.Errorf("%w: duplicate step id %q", ErrInvalidDependency, s.ID)
		}
		seen[s.ID] = true
	}
	return nil
}
