package domain

import (
	"sort"
	"strings"
	"time"
)

// PhaseOf maps now onto the round window [StartDate, EndDate).
func PhaseOf(r Round, now time.Time) Phase {
	switch {
	case now.Before(r.StartDate):
		return PhaseUpcoming
	case now.Before(r.EndDate):
		return PhaseActive
	default:
		return PhaseEnded
	}
}

// Contains reports whether t falls inside the round window.
func (r Round) Contains(t time.Time) bool {
	return PhaseOf(r, t) == PhaseActive
}

// Validate checks the invariants enforced at round creation and edit time.
func (r Round) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return NewValidationError("name", "round name is required")
	}
	if r.StartDate.IsZero() {
		return NewValidationError("start_date", "start date is required")
	}
	if r.EndDate.IsZero() {
		return NewValidationError("end_date", "end date is required")
	}
	if !r.EndDate.After(r.StartDate) {
		return NewValidationError("end_date", "end date must be after start date")
	}
	if r.LikesToPass != nil && *r.LikesToPass < 0 {
		return NewValidationError("likes_to_pass", "likes to pass cannot be negative")
	}
	return nil
}

// Qualifies applies a round threshold to an entry's competition likes.
// A nil threshold passes every entry; otherwise the comparison is inclusive.
func Qualifies(competitionLikes int, likesToPass *int) bool {
	if likesToPass == nil {
		return true
	}
	return competitionLikes >= *likesToPass
}

// RoundSet is a competition's rounds split into the current rows and the rows
// superseded by a later row with the same name.
type RoundSet struct {
	// Current holds one round per name, ordered by StartDate then ID.
	Current []Round
	// Superseded maps a superseded round ID to the current round with its name.
	Superseded map[int64]Round
}

// ResolveRounds keeps the most recently created round for every name.
// Ties on CreatedAt go to the higher ID.
func ResolveRounds(rounds []Round) RoundSet {
	latest := make(map[string]Round, len(rounds))
	for _, r := range rounds {
		key := strings.TrimSpace(r.Name)
		cur, ok := latest[key]
		if !ok || newerRound(r, cur) {
			latest[key] = r
		}
	}

	set := RoundSet{Superseded: make(map[int64]Round)}
	for _, r := range latest {
		set.Current = append(set.Current, r)
	}
	sort.Slice(set.Current, func(i, j int) bool {
		a, b := set.Current[i], set.Current[j]
		if !a.StartDate.Equal(b.StartDate) {
			return a.StartDate.Before(b.StartDate)
		}
		return a.ID < b.ID
	})
	for _, r := range rounds {
		winner := latest[strings.TrimSpace(r.Name)]
		if winner.ID != r.ID {
			set.Superseded[r.ID] = winner
		}
	}
	return set
}

func newerRound(a, b Round) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID > b.ID
}

// IsCurrent reports whether roundID is one of the current rounds.
func (s RoundSet) IsCurrent(roundID int64) bool {
	for _, r := range s.Current {
		if r.ID == roundID {
			return true
		}
	}
	return false
}

// Find returns the current round with the given ID.
func (s RoundSet) Find(roundID int64) (Round, bool) {
	for _, r := range s.Current {
		if r.ID == roundID {
			return r, true
		}
	}
	return Round{}, false
}

// RoundFor picks the current round whose window contains t, falling back to
// the earliest round. ok is false when there are no current rounds.
func (s RoundSet) RoundFor(t time.Time) (Round, bool) {
	if len(s.Current) == 0 {
		return Round{}, false
	}
	for _, r := range s.Current {
		if r.Contains(t) {
			return r, true
		}
	}
	return s.Current[0], true
}

// Previous returns the current round immediately before roundID.
func (s RoundSet) Previous(roundID int64) (Round, bool) {
	for i, r := range s.Current {
		if r.ID == roundID {
			if i == 0 {
				return Round{}, false
			}
			return s.Current[i-1], true
		}
	}
	return Round{}, false
}

// Concluded reports whether every current round has ended at now.
func (s RoundSet) Concluded(now time.Time) bool {
	if len(s.Current) == 0 {
		return false
	}
	for _, r := range s.Current {
		if PhaseOf(r, now) != PhaseEnded {
			return false
		}
	}
	return true
}
