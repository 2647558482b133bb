package harvest

import "github.com/theirongolddev/plotlog/internal/model"

// SlowLookupSeconds is the lookup time above which the harvester warns that
// proofs may arrive too late.
const SlowLookupSeconds = 5.0

// Summarize aggregates collected payloads.
func Summarize(res Result) model.HarvestStats {
	var st model.HarvestStats
	var total float64
	for _, sp := range res[model.KindSignagePoint] {
		st.SignagePoints++
		st.EligibleTotal += sp.Int(FieldEligible)
		st.ProofsFound += sp.Int(FieldProofs)
		st.Plots = sp.Int(FieldPlots)

		d := sp.Float(FieldDuration)
		total += d
		st.MaxLookupSecs = max(st.MaxLookupSecs, d)
		if d > SlowLookupSeconds {
			st.SlowLookups++
		}
	}
	if st.SignagePoints > 0 {
		st.AvgLookupSecs = total / float64(st.SignagePoints)
	}
	st.Warnings = len(res[model.KindWarning])

	if loads := res[model.KindLoad]; len(loads) > 0 && st.Plots == 0 {
		st.Plots = loads[len(loads)-1].Int(FieldPlots)
	}
	return st
}
