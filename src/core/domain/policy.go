package domain

// ResubmitPolicy decides what happens when a participant submits to a round
// they already have an entry in.
type ResubmitPolicy string

const (
	// ResubmitUpdate replaces the existing entry's post in place.
	ResubmitUpdate ResubmitPolicy = "update"
	// ResubmitReject fails the submission with ErrEntryConflict.
	ResubmitReject ResubmitPolicy = "reject"
)

// EntryPolicy is the configuration snapshot the entry store runs with.
type EntryPolicy struct {
	Resubmit ResubmitPolicy

	// RequirePriorQualification gates entering a round on a qualified entry
	// in the previous round.
	RequirePriorQualification bool
}

// DefaultEntryPolicy updates in place and does not gate on qualification.
func DefaultEntryPolicy() EntryPolicy {
	return EntryPolicy{Resubmit: ResubmitUpdate}
}

// ParseResubmitPolicy validates a configured policy name.
func ParseResubmitPolicy(v string) (ResubmitPolicy, error) {
	switch ResubmitPolicy(v) {
	case ResubmitUpdate, ResubmitReject:
		return ResubmitPolicy(v), nil
	}
	return "", NewValidationError("resubmit_policy", "must be \"update\" or \"reject\"")
}
