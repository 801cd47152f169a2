package reconcile

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/finfacts-cli/internal/model"
)

func fact(id int64, lineItem, period string, value, confidence float64) model.CanonicalFact {
	return model.CanonicalFact{
		ID:          id,
		CompanyID:   1,
		PeriodLabel: period,
		PeriodType:  model.PeriodMonthly,
		LineItem:    lineItem,
		ValueType:   model.ValueActual,
		Scope:       model.ScopePeriod,
		Value:       value,
		Confidence:  confidence,
		SourceFile:  "stmt.csv",
	}
}

func TestResolve_ScaleOutlierBanding(t *testing.T) {
	// Revenue values around 100 with one candidate at 5: the 5 falls below
	// 0.1x the median and is excluded.
	facts := []model.CanonicalFact{
		fact(1, "Revenue", "2025-01", 100, 0.9),
		fact(2, "Revenue", "2025-02", 102, 0.9),
		fact(3, "Revenue", "2025-03", 98, 0.9),
		fact(4, "Revenue", "2025-04", 101, 0.9),
		fact(5, "Revenue", "2025-05", 5, 0.9),
	}

	res := Resolve(facts, DefaultOptions())

	require.Len(t, res.Excluded, 1)
	assert.Equal(t, int64(5), res.Excluded[0].Fact.ID)
	assert.Equal(t, model.ReasonScaleOutlier, res.Excluded[0].Reason)

	require.Len(t, res.Findings, 1)
	assert.Equal(t, model.FindingScaleOutlier, res.Findings[0].Kind)
	assert.Equal(t, 5.0, res.Findings[0].ObservedValue)

	assert.Len(t, res.Best, 4)
	for _, b := range res.Best {
		assert.NotEqual(t, int64(5), b.ID)
	}
}

func TestResolve_BandUsesAbsoluteValues(t *testing.T) {
	// A refund month of -100 sits inside the band by magnitude.
	facts := []model.CanonicalFact{
		fact(1, "Revenue", "2025-01", 100, 0.9),
		fact(2, "Revenue", "2025-02", -100, 0.9),
		fact(3, "Revenue", "2025-03", 110, 0.9),
	}

	res := Resolve(facts, DefaultOptions())
	assert.Empty(t, res.Excluded)
	assert.Len(t, res.Best, 3)
}

func TestResolve_YearlyNotBanded(t *testing.T) {
	// A yearly aggregate is ~12x a typical month; it must not contaminate
	// the monthly median nor be excluded itself.
	facts := []model.CanonicalFact{
		fact(1, "Revenue", "2025-01", 100000, 0.9),
		fact(2, "Revenue", "2025-02", 105000, 0.9),
		fact(3, "Revenue", "2025-03", 95000, 0.9),
	}
	yearly := fact(4, "Revenue", "2024", 1200000, 0.9)
	yearly.PeriodType = model.PeriodYearly
	facts = append(facts, yearly)

	res := Resolve(facts, DefaultOptions())
	assert.Empty(t, res.Excluded)
	assert.Len(t, res.Best, 4)
}

func TestResolve_SingleCandidateSurvives(t *testing.T) {
	facts := []model.CanonicalFact{fact(1, "Revenue", "2025-01", 100, 0.9)}

	res := Resolve(facts, DefaultOptions())
	assert.Empty(t, res.Excluded)
	require.Len(t, res.Best, 1)
	assert.Equal(t, int64(1), res.Best[0].ID)
}

func ytdFact(id int64, period string, value float64) model.CanonicalFact {
	f := fact(id, "Revenue", period, value, 0.9)
	f.Scope = model.ScopeYTD
	return f
}

func TestResolve_YTDMismatch(t *testing.T) {
	// Monthly revenue 100k/120k/130k gives a derived March cumulative of
	// 350k. A YTD candidate of 100k is excluded (diff 250k, 250%); a
	// candidate of 349.5k stays (diff 500 under the absolute floor).
	monthly := []model.CanonicalFact{
		fact(1, "Revenue", "2025-01", 100000, 0.9),
		fact(2, "Revenue", "2025-02", 120000, 0.9),
		fact(3, "Revenue", "2025-03", 130000, 0.9),
	}

	t.Run("inconsistent candidate excluded", func(t *testing.T) {
		facts := append([]model.CanonicalFact{}, monthly...)
		facts = append(facts, ytdFact(10, "2025-03", 100000))

		res := Resolve(facts, DefaultOptions())
		require.Len(t, res.Excluded, 1)
		assert.Equal(t, int64(10), res.Excluded[0].Fact.ID)
		assert.Equal(t, model.ReasonYTDMismatch, res.Excluded[0].Reason)

		require.Len(t, res.Findings, 1)
		assert.Equal(t, model.FindingYTDMismatch, res.Findings[0].Kind)
		assert.Equal(t, 350000.0, res.Findings[0].ExpectedValue)
	})

	t.Run("near miss under absolute floor kept", func(t *testing.T) {
		facts := append([]model.CanonicalFact{}, monthly...)
		facts = append(facts, ytdFact(11, "2025-03", 349500))

		res := Resolve(facts, DefaultOptions())
		assert.Empty(t, res.Excluded)
		assert.Len(t, res.Best, 4)
	})

	t.Run("small relative difference kept", func(t *testing.T) {
		// diff 5000 > abs floor but 1.4% < the 2% relative threshold.
		facts := append([]model.CanonicalFact{}, monthly...)
		facts = append(facts, ytdFact(12, "2025-03", 355000))

		res := Resolve(facts, DefaultOptions())
		assert.Empty(t, res.Excluded)
	})

	t.Run("no monthly series leaves ytd alone", func(t *testing.T) {
		facts := []model.CanonicalFact{ytdFact(13, "2025-03", 42000000)}

		res := Resolve(facts, DefaultOptions())
		assert.Empty(t, res.Excluded)
		assert.Len(t, res.Best, 1)
	})
}

func TestResolve_WinnerByConfidenceThenID(t *testing.T) {
	// Same partition, different source files (distinct hashes upstream).
	a := fact(1, "Revenue", "2025-02", 100000, 0.8)
	b := fact(2, "Revenue", "2025-02", 101000, 0.95)
	b.SourceFile = "other.csv"
	c := fact(3, "Revenue", "2025-02", 102000, 0.95)
	c.SourceFile = "third.csv"

	res := Resolve([]model.CanonicalFact{a, b, c}, DefaultOptions())
	require.Len(t, res.Best, 1)
	assert.Equal(t, int64(3), res.Best[0].ID, "confidence ties break toward the higher id")

	res = Resolve([]model.CanonicalFact{a, b}, DefaultOptions())
	require.Len(t, res.Best, 1)
	assert.Equal(t, int64(2), res.Best[0].ID, "higher confidence wins")
}

func TestResolve_DeterministicUnderShuffle(t *testing.T) {
	facts := []model.CanonicalFact{
		fact(1, "Revenue", "2025-01", 100000, 0.9),
		fact(2, "Revenue", "2025-02", 120000, 0.9),
		fact(3, "Revenue", "2025-03", 130000, 0.9),
		fact(4, "EBITDA", "2025-01", 20000, 0.7),
		fact(5, "EBITDA", "2025-01", 21000, 0.7),
		ytdFact(6, "2025-03", 100000),
	}
	want := Resolve(facts, DefaultOptions())

	for range 10 {
		shuffled := make([]model.CanonicalFact, len(facts))
		copy(shuffled, facts)
		rand.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		got := Resolve(shuffled, DefaultOptions())
		assert.Equal(t, want.Best, got.Best)
		assert.Equal(t, want.Excluded, got.Excluded)
	}
}

func TestResolve_PartitionsAreIndependent(t *testing.T) {
	// Budget and Actual for the same period are different partitions.
	a := fact(1, "Revenue", "2025-02", 100000, 0.9)
	b := fact(2, "Revenue", "2025-02", 110000, 0.9)
	b.ValueType = model.ValueBudget

	res := Resolve([]model.CanonicalFact{a, b}, DefaultOptions())
	assert.Len(t, res.Best, 2)
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 0.0, median(nil))
	assert.Equal(t, 7.0, median([]float64{7}))
	assert.Equal(t, 100.0, median([]float64{100, 102, 98, 101, 5}))
	assert.Equal(t, 101.0, median([]float64{100, 102}))
}
