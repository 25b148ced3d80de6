package marketing

const (
	conversionValue = 100.0
	costPerRequest  = 0.01
)

// UpdateAnalytics recomputes f.Analytics from the metrics of its A/B tests.
// A flow without steps has no cost and gets an ROI of zero.
func UpdateAnalytics(f *Flow) {
	var a Analytics
	for _, test := range f.ABTests {
		for _, m := range test.Metrics {
			a.Impressions += m.Impressions
			a.Engagements += m.Engagements
			a.Conversions += m.Conversions
		}
	}
	a.ROI = roi(a.Conversions, len(f.Steps))
	f.Analytics = a
}

func roi(conversions float64, steps int) float64 {
	cost := costPerRequest * float64(steps)
	if cost == 0 {
		return 0
	}
	return (conversions*conversionValue - cost) / cost * 100
}
