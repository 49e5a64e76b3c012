package lifecycle

import (
	"errors"
	"testing"
)

func TestDecideTransitionTable(t *testing.T) {
	tests := []struct {
		name      string
		current   Status
		requested Status
		actor     Role
		reason    string
		outcome   Outcome
		code      string
	}{
		{"tutor approves pending", StatusPending, StatusApproved, RoleTutor, "", OutcomeApplied, ""},
		{"tutor rejects pending with reason", StatusPending, StatusRejected, RoleTutor, "schedule conflict", OutcomeApplied, ""},
		{"student cancels pending", StatusPending, StatusCancelled, RoleStudent, "changed my mind", OutcomeApplied, ""},
		{"tutor cancels pending", StatusPending, StatusCancelled, RoleTutor, "unavailable", OutcomeApplied, ""},
		{"tutor starts approved", StatusApproved, StatusInProgress, RoleTutor, "", OutcomeApplied, ""},
		{"student cancels approved", StatusApproved, StatusCancelled, RoleStudent, "sick", OutcomeApplied, ""},
		{"admin marks approved no-show", StatusApproved, StatusNoShow, RoleAdmin, "", OutcomeApplied, ""},
		{"tutor completes in-progress", StatusInProgress, StatusCompleted, RoleTutor, "", OutcomeApplied, ""},
		{"admin marks in-progress no-show", StatusInProgress, StatusNoShow, RoleAdmin, "", OutcomeApplied, ""},

		{"student cannot approve", StatusPending, StatusApproved, RoleStudent, "", OutcomeRejected, ReasonRoleNotAllowed},
		{"student cannot reject", StatusPending, StatusRejected, RoleStudent, "nope", OutcomeRejected, ReasonRoleNotAllowed},
		{"student cannot start", StatusApproved, StatusInProgress, RoleStudent, "", OutcomeRejected, ReasonRoleNotAllowed},
		{"student cannot complete", StatusInProgress, StatusCompleted, RoleStudent, "", OutcomeRejected, ReasonRoleNotAllowed},
		{"tutor cannot mark no-show", StatusApproved, StatusNoShow, RoleTutor, "", OutcomeRejected, ReasonRoleNotAllowed},

		{"reject needs a reason", StatusPending, StatusRejected, RoleTutor, "", OutcomeRejected, ReasonRequired},
		{"cancel needs a reason", StatusApproved, StatusCancelled, RoleTutor, "", OutcomeRejected, ReasonRequired},

		{"pending cannot start", StatusPending, StatusInProgress, RoleTutor, "", OutcomeRejected, ReasonInvalidTransition},
		{"pending cannot complete", StatusPending, StatusCompleted, RoleTutor, "", OutcomeRejected, ReasonInvalidTransition},
		{"approved cannot be approved again via reject path", StatusApproved, StatusRejected, RoleTutor, "late", OutcomeRejected, ReasonInvalidTransition},
		{"in-progress cannot be cancelled", StatusInProgress, StatusCancelled, RoleStudent, "leaving", OutcomeRejected, ReasonInvalidTransition},

		{"same state is a no-op", StatusApproved, StatusApproved, RoleTutor, "", OutcomeNoOp, ""},
		{"terminal completed absorbs cancel", StatusCompleted, StatusCancelled, RoleStudent, "late", OutcomeNoOp, ""},
		{"terminal rejected absorbs approve", StatusRejected, StatusApproved, RoleTutor, "", OutcomeNoOp, ""},
		{"terminal cancelled absorbs start", StatusCancelled, StatusInProgress, RoleTutor, "", OutcomeNoOp, ""},
		{"terminal no-show absorbs complete", StatusNoShow, StatusCompleted, RoleTutor, "", OutcomeNoOp, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Decide(tt.current, tt.requested, tt.actor, tt.reason)
			if d.Outcome != tt.outcome {
				t.Fatalf("Decide(%s -> %s, %s) outcome = %v, want %v", tt.current, tt.requested, tt.actor, d.Outcome, tt.outcome)
			}
			if d.Reason != tt.code {
				t.Fatalf("Decide(%s -> %s, %s) reason = %q, want %q", tt.current, tt.requested, tt.actor, d.Reason, tt.code)
			}
		})
	}
}

func TestDecideRating(t *testing.T) {
	tests := []struct {
		name         string
		current      Status
		actor        Role
		alreadyRated bool
		outcome      Outcome
		code         string
	}{
		{"student rates completed", StatusCompleted, RoleStudent, false, OutcomeApplied, ""},
		{"tutor cannot rate", StatusCompleted, RoleTutor, false, OutcomeRejected, ReasonRoleNotAllowed},
		{"cannot rate before completion", StatusInProgress, RoleStudent, false, OutcomeRejected, ReasonNotCompleted},
		{"cannot rate cancelled", StatusCancelled, RoleStudent, false, OutcomeRejected, ReasonNotCompleted},
		{"cannot rate twice", StatusCompleted, RoleStudent, true, OutcomeRejected, ReasonAlreadyRated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := DecideRating(tt.current, tt.actor, tt.alreadyRated)
			if d.Outcome != tt.outcome || d.Reason != tt.code {
				t.Fatalf("DecideRating(%s, %s, rated=%v) = %+v, want outcome %v reason %q",
					tt.current, tt.actor, tt.alreadyRated, d, tt.outcome, tt.code)
			}
		})
	}
}

func TestTerminal(t *testing.T) {
	for _, s := range []Status{StatusRejected, StatusCompleted, StatusCancelled, StatusNoShow} {
		if !Terminal(s) {
			t.Errorf("Terminal(%s) = false, want true", s)
		}
	}
	for _, s := range []Status{StatusPending, StatusApproved, StatusInProgress} {
		if Terminal(s) {
			t.Errorf("Terminal(%s) = true, want false", s)
		}
	}
}

func TestRankOrdersProgress(t *testing.T) {
	order := []Status{StatusPending, StatusApproved, StatusInProgress, StatusCompleted}
	for i := 1; i < len(order); i++ {
		if Rank(order[i-1]) >= Rank(order[i]) {
			t.Errorf("Rank(%s) = %d should be below Rank(%s) = %d",
				order[i-1], Rank(order[i-1]), order[i], Rank(order[i]))
		}
	}
	if Rank(StatusCancelled) != Rank(StatusCompleted) {
		t.Errorf("terminal states should share the top rank")
	}
}

func TestPolicyErrors(t *testing.T) {
	err := Reject(ReasonRoleNotAllowed)
	if !IsPolicy(err) {
		t.Fatalf("Reject should produce a policy error")
	}
	var pe *PolicyError
	if !errors.As(err, &pe) {
		t.Fatalf("expected a *PolicyError, got %T", err)
	}
	if pe.Code != ReasonRoleNotAllowed {
		t.Errorf("code = %q, want %q", pe.Code, ReasonRoleNotAllowed)
	}
	if pe.Error() != Describe(ReasonRoleNotAllowed) {
		t.Errorf("message = %q, want %q", pe.Error(), Describe(ReasonRoleNotAllowed))
	}
	if IsPolicy(nil) {
		t.Errorf("nil is not a policy error")
	}
}
