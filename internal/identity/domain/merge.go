package domain

// MergeStrategy records how the survivor of a duplicate-identity merge was
// chosen. The legacy behavior collapsed these cases into an implicit
// fallback; keeping the decision as a tagged value makes it auditable and
// lets the policy change without touching the merge mechanics.
type MergeStrategy string

const (
	// MergeByInvitationRole selects the user whose role matches the
	// invitation being redeemed.
	MergeByInvitationRole MergeStrategy = "invitation-role"
	// MergeByMostRecent selects the most recently created user when no
	// invitation can break the tie.
	MergeByMostRecent MergeStrategy = "most-recent"
	// MergeManualReview means no deterministic winner exists; the merge is
	// refused and left for an operator.
	MergeManualReview MergeStrategy = "manual-review"
)

func (s MergeStrategy) String() string { return string(s) }
