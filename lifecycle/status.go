package lifecycle

// Status is the lifecycle state shared by session requests and
// confirmed sessions. A request only ever holds pending, approved or
// rejected; a confirmed session starts at approved.
type Status string

const (
	StatusPending    Status = "pending"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusCancelled  Status = "cancelled"
	StatusNoShow     Status = "no-show"
)

type Role string

const (
	RoleStudent Role = "student"
	RoleTutor   Role = "tutor"
	RoleAdmin   Role = "admin"
)

type Outcome int

const (
	// OutcomeApplied means the transition is valid and should be persisted.
	OutcomeApplied Outcome = iota
	// OutcomeNoOp absorbs duplicate or stale deliveries: the requested
	// state is already in effect, or the record is terminal. Not an error.
	OutcomeNoOp
	// OutcomeRejected is a policy rejection; Reason carries a stable code.
	OutcomeRejected
)

// Stable reason codes surfaced on policy rejections.
const (
	ReasonInvalidTransition = "invalid_transition"
	ReasonRoleNotAllowed    = "role_not_allowed"
	ReasonRequired          = "reason_required"
	ReasonNotCompleted      = "not_completed"
	ReasonAlreadyRated      = "already_rated"
)

type Decision struct {
	Outcome Outcome
	Reason  string
}

// transitions maps current -> requested -> roles allowed to perform it.
var transitions = map[Status]map[Status][]Role{
	StatusPending: {
		StatusApproved:  {RoleTutor},
		StatusRejected:  {RoleTutor},
		StatusCancelled: {RoleStudent, RoleTutor},
	},
	StatusApproved: {
		StatusInProgress: {RoleTutor},
		StatusCancelled:  {RoleStudent, RoleTutor},
		StatusNoShow:     {RoleAdmin},
	},
	StatusInProgress: {
		StatusCompleted: {RoleTutor},
		StatusNoShow:    {RoleAdmin},
	},
}

// terminal states accept no further transitions.
var terminal = map[Status]bool{
	StatusRejected:  true,
	StatusCompleted: true,
	StatusCancelled: true,
	StatusNoShow:    true,
}

func Terminal(s Status) bool { return terminal[s] }

// Rank orders statuses by lifecycle progress. When the two persistence
// paths disagree about a record, the more advanced state wins: a state
// can only ever move forward.
func Rank(s Status) int {
	switch s {
	case StatusPending:
		return 0
	case StatusApproved:
		return 1
	case StatusInProgress:
		return 2
	default:
		return 3
	}
}

// RequiresReason reports whether a transition into s must carry a
// non-empty reason string.
func RequiresReason(s Status) bool {
	return s == StatusRejected || s == StatusCancelled
}

// Decide is the pure transition function: given the current state, the
// requested state, the acting role and the supplied reason, it returns
// exactly one of applied, no-op or rejected. Re-applying a transition
// that already took effect is a no-op so duplicate delivery from the
// dual persistence paths is harmless.
func Decide(current, requested Status, actor Role, reason string) Decision {
	if requested == current {
		return Decision{Outcome: OutcomeNoOp}
	}
	if terminal[current] {
		return Decision{Outcome: OutcomeNoOp}
	}
	allowed, ok := transitions[current][requested]
	if !ok {
		return Decision{Outcome: OutcomeRejected, Reason: ReasonInvalidTransition}
	}
	roleOK := false
	for _, r := range allowed {
		if r == actor {
			roleOK = true
			break
		}
	}
	if !roleOK {
		return Decision{Outcome: OutcomeRejected, Reason: ReasonRoleNotAllowed}
	}
	if RequiresReason(requested) && reason == "" {
		return Decision{Outcome: OutcomeRejected, Reason: ReasonRequired}
	}
	return Decision{Outcome: OutcomeApplied}
}

// DecideRating gates rating attachment: student only, completed only,
// at most once.
func DecideRating(current Status, actor Role, alreadyRated bool) Decision {
	if actor != RoleStudent {
		return Decision{Outcome: OutcomeRejected, Reason: ReasonRoleNotAllowed}
	}
	if current != StatusCompleted {
		return Decision{Outcome: OutcomeRejected, Reason: ReasonNotCompleted}
	}
	if alreadyRated {
		return Decision{Outcome: OutcomeRejected, Reason: ReasonAlreadyRated}
	}
	return Decision{Outcome: OutcomeApplied}
}
