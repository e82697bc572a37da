package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func intPtr(v int) *int { return &v }

func TestPhaseOf(t *testing.T) {
	r := Round{StartDate: t0, EndDate: t0.Add(24 * time.Hour)}

	tests := []struct {
		name string
		now  time.Time
		want Phase
	}{
		{"before start", t0.Add(-time.Second), PhaseUpcoming},
		{"at start", t0, PhaseActive},
		{"inside", t0.Add(12 * time.Hour), PhaseActive},
		{"just before end", t0.Add(24*time.Hour - time.Nanosecond), PhaseActive},
		{"at end", t0.Add(24 * time.Hour), PhaseEnded},
		{"after end", t0.Add(48 * time.Hour), PhaseEnded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PhaseOf(r, tt.now))
		})
	}
}

func TestRoundValidate(t *testing.T) {
	valid := Round{Name: "Heats", StartDate: t0, EndDate: t0.Add(time.Hour)}
	require.NoError(t, valid.Validate())

	tests := []struct {
		name  string
		edit  func(r *Round)
		field string
	}{
		{"blank name", func(r *Round) { r.Name = "  " }, "name"},
		{"missing start", func(r *Round) { r.StartDate = time.Time{} }, "start_date"},
		{"end equals start", func(r *Round) { r.EndDate = r.StartDate }, "end_date"},
		{"end before start", func(r *Round) { r.EndDate = r.StartDate.Add(-time.Hour) }, "end_date"},
		{"negative threshold", func(r *Round) { r.LikesToPass = intPtr(-1) }, "likes_to_pass"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := valid
			tt.edit(&r)
			err := r.Validate()
			require.Error(t, err)
			assert.True(t, IsValidationError(err))

			var de *DomainError
			require.ErrorAs(t, err, &de)
			assert.Equal(t, tt.field, de.Field)
		})
	}
}

func TestQualifies(t *testing.T) {
	assert.True(t, Qualifies(0, nil), "nil threshold passes everyone")
	assert.True(t, Qualifies(0, intPtr(0)))
	assert.True(t, Qualifies(5, intPtr(5)), "threshold is inclusive")
	assert.False(t, Qualifies(4, intPtr(5)))
}

func TestResolveRoundsKeepsNewestRowPerName(t *testing.T) {
	old := Round{ID: 1, Name: "Final", StartDate: t0, EndDate: t0.Add(time.Hour), CreatedAt: t0}
	heats := Round{ID: 2, Name: "Heats", StartDate: t0.Add(-48 * time.Hour), EndDate: t0.Add(-24 * time.Hour), CreatedAt: t0}
	replacement := Round{ID: 3, Name: "Final ", StartDate: t0.Add(2 * time.Hour), EndDate: t0.Add(3 * time.Hour), CreatedAt: t0.Add(time.Minute)}

	set := ResolveRounds([]Round{old, heats, replacement})

	require.Len(t, set.Current, 2)
	assert.Equal(t, int64(2), set.Current[0].ID, "ordered by start date")
	assert.Equal(t, int64(3), set.Current[1].ID)
	assert.True(t, set.IsCurrent(3))
	assert.False(t, set.IsCurrent(1))
	assert.Equal(t, int64(3), set.Superseded[1].ID)
	assert.NotContains(t, set.Superseded, int64(3))
}

func TestResolveRoundsTieGoesToHigherID(t *testing.T) {
	a := Round{ID: 7, Name: "Semi", StartDate: t0, EndDate: t0.Add(time.Hour), CreatedAt: t0}
	b := Round{ID: 9, Name: "Semi", StartDate: t0, EndDate: t0.Add(time.Hour), CreatedAt: t0}

	set := ResolveRounds([]Round{b, a})

	require.Len(t, set.Current, 1)
	assert.Equal(t, int64(9), set.Current[0].ID)
	assert.Equal(t, int64(9), set.Superseded[7].ID)
}

func TestRoundSetNavigation(t *testing.T) {
	r1 := Round{ID: 1, Name: "One", StartDate: t0, EndDate: t0.Add(time.Hour)}
	r2 := Round{ID: 2, Name: "Two", StartDate: t0.Add(2 * time.Hour), EndDate: t0.Add(3 * time.Hour)}
	set := ResolveRounds([]Round{r2, r1})

	got, ok := set.RoundFor(t0.Add(150 * time.Minute))
	require.True(t, ok)
	assert.Equal(t, int64(2), got.ID)

	got, ok = set.RoundFor(t0.Add(90 * time.Minute))
	require.True(t, ok)
	assert.Equal(t, int64(1), got.ID, "falls back to the earliest round")

	_, ok = set.Previous(1)
	assert.False(t, ok)
	prev, ok := set.Previous(2)
	require.True(t, ok)
	assert.Equal(t, int64(1), prev.ID)

	found, ok := set.Find(2)
	require.True(t, ok)
	assert.Equal(t, "Two", found.Name)

	_, ok = RoundSet{}.RoundFor(t0)
	assert.False(t, ok)
}

func TestRoundSetConcluded(t *testing.T) {
	r1 := Round{ID: 1, Name: "One", StartDate: t0, EndDate: t0.Add(time.Hour)}
	r2 := Round{ID: 2, Name: "Two", StartDate: t0.Add(2 * time.Hour), EndDate: t0.Add(3 * time.Hour)}
	set := ResolveRounds([]Round{r1, r2})

	assert.False(t, set.Concluded(t0.Add(2*time.Hour)))
	assert.True(t, set.Concluded(t0.Add(3*time.Hour)))
	assert.False(t, RoundSet{}.Concluded(t0), "no rounds means nothing concluded")
}
