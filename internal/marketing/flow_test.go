package marketing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetStatus(t *testing.T) {
	later := fixedNow.Add(time.Hour)
	f := &Flow{Status: StatusDraft, UpdatedAt: fixedNow}

	require.ErrorIs(t, f.SetStatus(StatusPaused, later), ErrInvalidTransition)
	assert.Equal(t, fixedNow, f.UpdatedAt)

	require.NoError(t, f.SetStatus(StatusActive, later))
	assert.Equal(t, StatusActive, f.Status)
	assert.Equal(t, later, f.UpdatedAt)

	require.NoError(t, f.SetStatus(StatusActive, later.Add(time.Hour)))
	assert.Equal(t, later, f.UpdatedAt, "same status is a no-op")

	require.NoError(t, f.SetStatus(StatusPaused, later))
	require.NoError(t, f.SetStatus(StatusActive, later))
	assert.ErrorIs(t, f.SetStatus(StatusDraft, later), ErrInvalidTransition)
	assert.ErrorIs(t, f.SetStatus("archived", later), ErrInvalidTransition)
}

func TestAttachABTest(t *testing.T) {
	f := &Flow{}
	err := f.AttachABTest("headline", ABTest{Variants: []Variant{{ID: "a", Distribution: 50}, {ID: "b", Distribution: 50}}}, fixedNow)
	require.NoError(t, err)
	assert.Equal(t, "headline", f.ABTests["headline"].ID)
	assert.Equal(t, fixedNow, f.UpdatedAt)

	err = f.AttachABTest("over", ABTest{Variants: []Variant{{Distribution: 80}, {Distribution: 30}}}, fixedNow)
	assert.Error(t, err)
	assert.Error(t, f.AttachABTest("", ABTest{}, fixedNow))
}

func TestAttachABTest_RejectsNegativeValues(t *testing.T) {
	f := &Flow{}

	err := f.AttachABTest("skewed", ABTest{Variants: []Variant{{ID: "a", Distribution: -100}, {ID: "b", Distribution: 150}}}, fixedNow)
	assert.Error(t, err)

	err = f.AttachABTest("metrics", ABTest{
		Variants: []Variant{{ID: "a", Distribution: 100}},
		Metrics:  []Metric{{Impressions: 10}, {Impressions: 10, Engagements: -1}},
	}, fixedNow)
	assert.ErrorIs(t, err, ErrInvalidMetric)
	assert.Empty(t, f.ABTests)
	assert.True(t, f.UpdatedAt.IsZero())
}

func TestMetricValidate(t *testing.T) {
	assert.NoError(t, Metric{}.Validate())
	assert.NoError(t, Metric{Impressions: 100, Engagements: 10, Conversions: 1, Confidence: 0.95}.Validate())
	for _, m := range []Metric{
		{Impressions: -1},
		{Engagements: -1},
		{Conversions: -1},
		{Confidence: -0.1},
	} {
		assert.ErrorIs(t, m.Validate(), ErrInvalidMetric, "%+v", m)
	}
}

func TestValidateDependencies(t *testing.T) {
	ok := &Flow{Steps: []Step{{ID: "step-1"}, {ID: "step-1-analyze", DependsOn: []string{"step-1"}}}}
	assert.NoError(t, ok.ValidateDependencies())

	forward := &Flow{Steps: []Step{{ID: "step-1-analyze", DependsOn: []string{"step-1"}}, {ID: "step-1"}}}
	assert.ErrorIs(t, forward.ValidateDependencies(), ErrInvalidDependency)

	self := &Flow{Steps: []Step{{ID: "step-1", DependsOn: []string{"step-1"}}}}
	assert.ErrorIs(t, self.ValidateDependencies(), ErrInvalidDependency)

	dup := &Flow{Steps: []Step{{ID: "step-1"}, {ID: "step-1"}}}
	assert.ErrorIs(t, dup.ValidateDependencies(), ErrInvalidDependency)
}
