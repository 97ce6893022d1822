// Package committee implements collective decision-making on large corporate
// loans. A review is circulated to a panel, members cast exactly one final
// vote each, and a decision may be recorded only once quorum is reached.
package committee

import (
	"time"

	"github.com/google/uuid"

	id "loanflow/pkg/domain"
	dErrors "loanflow/pkg/domain-errors"
	"loanflow/pkg/platform/audit"
)

// ReviewStatus is the committee review lifecycle state.
type ReviewStatus string

const (
	// StatusCirculated means the review was sent to members but no vote has
	// been cast yet.
	StatusCirculated ReviewStatus = "circulated"
	// StatusVoting means at least one member has voted.
	StatusVoting ReviewStatus = "voting"
	// StatusDecided is terminal: a final decision was recorded.
	StatusDecided ReviewStatus = "decided"
	// StatusExpired is terminal: the deadline passed without a decision.
	StatusExpired ReviewStatus = "expired"
)

// CommitteeType distinguishes panels with different mandates.
type CommitteeType string

const (
	TypeCredit        CommitteeType = "credit"
	TypeExecutive     CommitteeType = "executive"
	TypeRestructuring CommitteeType = "restructuring"
)

// Vote is a member's position. Pending means not yet voted; votes are final.
type Vote string

const (
	VotePending Vote = "pending"
	VoteApprove Vote = "approve"
	VoteReject  Vote = "reject"
	VoteAbstain Vote = "abstain"
)

func (v Vote) cast() bool {
	return v == VoteApprove || v == VoteReject || v == VoteAbstain
}

// Decision is the recorded committee outcome.
type Decision string

const (
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
	DecisionDeferred Decision = "deferred"
)

// Member is one assigned reviewer. Membership is fixed once voting starts
// except through ReplaceMember.
type Member struct {
	UserID        id.UserID
	Role          id.Role
	IsChairperson bool
	Vote          Vote
	VotedAt       *time.Time
	VoteComment   string
}

// CommentVisibility scopes who may read a committee comment.
type CommentVisibility string

const (
	// VisibilityCommittee restricts the comment to panel members.
	VisibilityCommittee CommentVisibility = "committee"
	// VisibilityInternal exposes the comment to all internal staff.
	VisibilityInternal CommentVisibility = "internal"
)

// Comment is one threaded free-text remark on a review.
type Comment struct {
	ID         uuid.UUID
	ParentID   *uuid.UUID
	AuthorID   id.UserID
	Visibility CommentVisibility
	Text       string
	CreatedAt  time.Time
}

// DecisionTerms are the optional commercial terms attached to an approval.
type DecisionTerms struct {
	ApprovedAmount *float64
	ApprovedTenor  *int
	ApprovedRate   *float64
	Conditions     []string
}

// Review is the committee voting aggregate, one per circulated application.
//
// Like workflow instances, reviews are single-writer aggregates: mutation is
// in-process and the store's optimistic version check serializes concurrent
// voters.
type Review struct {
	ID            id.ReviewID
	ApplicationID id.ApplicationID
	CommitteeType CommitteeType
	Status        ReviewStatus

	// RequiredVotes and MinimumApprovalVotes are configured thresholds, not
	// necessarily equal to the member count.
	RequiredVotes        int
	MinimumApprovalVotes int
	DeadlineAt           time.Time

	FinalDecision     Decision
	DecisionRationale string
	DecisionAt        *time.Time
	DecidedBy         id.UserID
	Terms             DecisionTerms

	Members  []Member
	Comments []Comment

	CreatedAt time.Time

	// Version backs the store's optimistic concurrency check.
	Version int64

	pending []audit.Event
}

// NewReview circulates a review with the given voting thresholds. The
// deadline is anchored at circulation time.
func NewReview(applicationID id.ApplicationID, committeeType CommitteeType, requiredVotes, minimumApprovalVotes, deadlineHours int, now time.Time) (*Review, error) {
	if applicationID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "application_id is required")
	}
	if committeeType == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "committee_type is required")
	}
	if requiredVotes <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "required_votes must be positive")
	}
	if minimumApprovalVotes <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "minimum_approval_votes must be positive")
	}
	if deadlineHours <= 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "deadline_hours must be positive")
	}

	r := &Review{
		ID:                   id.NewReviewID(),
		ApplicationID:        applicationID,
		CommitteeType:        committeeType,
		Status:               StatusCirculated,
		RequiredVotes:        requiredVotes,
		MinimumApprovalVotes: minimumApprovalVotes,
		DeadlineAt:           now.Add(time.Duration(deadlineHours) * time.Hour),
		CreatedAt:            now,
	}
	r.record(audit.Event{
		Action:        audit.EventCommitteeCirculated,
		Timestamp:     now,
		ApplicationID: applicationID,
		Detail:        string(committeeType),
	})
	return r, nil
}

// IsClosed reports whether the review reached a terminal state.
func (r *Review) IsClosed() bool {
	return r.Status == StatusDecided || r.Status == StatusExpired
}

// AddMember appends a reviewer with a pending vote.
func (r *Review) AddMember(userID id.UserID, role id.Role, isChairperson bool, now time.Time) error {
	if userID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "user_id is required")
	}
	if r.IsClosed() {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "review is %s", r.Status)
	}
	if r.member(userID) != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "user is already a committee member")
	}

	r.Members = append(r.Members, Member{
		UserID:        userID,
		Role:          role,
		IsChairperson: isChairperson,
		Vote:          VotePending,
	})
	r.record(audit.Event{
		Action:        audit.EventCommitteeMemberAdded,
		Timestamp:     now,
		ApplicationID: r.ApplicationID,
		Subject:       userID.String(),
	})
	return nil
}

// ReplaceMember swaps a reviewer who has not yet voted for a new one. The
// replacement inherits role and chair, and starts with a pending vote.
func (r *Review) ReplaceMember(oldUserID, newUserID id.UserID, now time.Time) error {
	if newUserID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "replacement user_id is required")
	}
	if r.IsClosed() {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "review is %s", r.Status)
	}
	old := r.member(oldUserID)
	if old == nil {
		return dErrors.New(dErrors.CodeNotFound, "member not found")
	}
	if old.Vote.cast() {
		return dErrors.New(dErrors.CodeInvalidTransition, "cannot replace a member who has voted")
	}
	if r.member(newUserID) != nil {
		return dErrors.New(dErrors.CodeInvalidInput, "replacement is already a committee member")
	}

	old.UserID = newUserID
	old.VotedAt = nil
	old.VoteComment = ""
	r.record(audit.Event{
		Action:        audit.EventCommitteeMemberReplaced,
		Timestamp:     now,
		ApplicationID: r.ApplicationID,
		Subject:       newUserID.String(),
		Detail:        "replaced " + oldUserID.String(),
	})
	return nil
}

// CastVote records a member's final vote. Validation runs before any
// mutation; a failed call leaves counts unchanged.
func (r *Review) CastVote(userID id.UserID, vote Vote, comment string, now time.Time) error {
	if !vote.cast() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "invalid vote %q", vote)
	}
	if r.IsClosed() {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "review is %s", r.Status)
	}
	m := r.member(userID)
	if m == nil {
		return dErrors.New(dErrors.CodeNotFound, "user is not a committee member")
	}
	if m.Vote != VotePending {
		return dErrors.New(dErrors.CodeAlreadyVoted, "member has already voted")
	}

	m.Vote = vote
	m.VotedAt = &now
	m.VoteComment = comment
	if r.Status == StatusCirculated {
		r.Status = StatusVoting
	}

	r.record(audit.Event{
		Action:        audit.EventCommitteeVoteCast,
		Timestamp:     now,
		ApplicationID: r.ApplicationID,
		ActorID:       userID,
		Detail:        string(vote),
	})
	return nil
}

// ApprovalVotes counts members who voted approve.
func (r *Review) ApprovalVotes() int { return r.countVotes(VoteApprove) }

// RejectionVotes counts members who voted reject.
func (r *Review) RejectionVotes() int { return r.countVotes(VoteReject) }

// AbstainVotes counts members who abstained.
func (r *Review) AbstainVotes() int { return r.countVotes(VoteAbstain) }

// PendingVotes counts members who have not voted.
func (r *Review) PendingVotes() int { return r.countVotes(VotePending) }

// HasQuorum reports whether enough votes were cast to allow a decision.
// Pending votes never count toward quorum.
func (r *Review) HasQuorum() bool {
	return r.ApprovalVotes()+r.RejectionVotes()+r.AbstainVotes() >= r.RequiredVotes
}

// HasMajorityApproval reports whether approvals meet the configured minimum.
func (r *Review) HasMajorityApproval() bool {
	return r.ApprovalVotes() >= r.MinimumApprovalVotes
}

// IsOverdue reports whether the deadline passed without a decision.
func (r *Review) IsOverdue(now time.Time) bool {
	return r.Status != StatusDecided && now.After(r.DeadlineAt)
}

// RecordDecision finalizes the review. It never auto-fires from a vote: a
// human with decision authority calls it, and only once quorum is reached.
func (r *Review) RecordDecision(decision Decision, rationale string, terms DecisionTerms, decidedBy id.UserID, now time.Time) error {
	switch decision {
	case DecisionApproved, DecisionRejected, DecisionDeferred:
	default:
		return dErrors.Newf(dErrors.CodeInvalidInput, "invalid decision %q", decision)
	}
	if rationale == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "decision rationale is required")
	}
	if r.IsClosed() {
		return dErrors.Newf(dErrors.CodeInvalidTransition, "review is %s", r.Status)
	}
	if !r.HasQuorum() {
		return dErrors.Newf(dErrors.CodeInvalidTransition,
			"quorum not met: %d of %d required votes cast",
			r.RequiredVotes-r.PendingVotesShort(), r.RequiredVotes)
	}

	r.FinalDecision = decision
	r.DecisionRationale = rationale
	r.Terms = terms
	r.DecidedBy = decidedBy
	r.DecisionAt = &now
	r.Status = StatusDecided

	r.record(audit.Event{
		Action:        audit.EventCommitteeDecisionRecorded,
		Timestamp:     now,
		ApplicationID: r.ApplicationID,
		ActorID:       decidedBy,
		Detail:        string(decision),
	})
	return nil
}

// PendingVotesShort is how many more cast votes quorum still needs.
func (r *Review) PendingVotesShort() int {
	short := r.RequiredVotes - (r.ApprovalVotes() + r.RejectionVotes() + r.AbstainVotes())
	if short < 0 {
		return 0
	}
	return short
}

// Expire closes an undecided review whose deadline has passed. Idempotent on
// already expired reviews.
func (r *Review) Expire(now time.Time) error {
	if r.Status == StatusExpired {
		return nil
	}
	if r.Status == StatusDecided {
		return dErrors.New(dErrors.CodeInvalidTransition, "review already decided")
	}
	if !r.IsOverdue(now) {
		return dErrors.New(dErrors.CodeInvalidTransition, "review deadline has not passed")
	}

	r.Status = StatusExpired
	r.record(audit.Event{
		Action:        audit.EventCommitteeExpired,
		Timestamp:     now,
		ApplicationID: r.ApplicationID,
	})
	return nil
}

// AddComment appends a threaded comment. Allowed on closed reviews so the
// panel can document post-decision context.
func (r *Review) AddComment(authorID id.UserID, parentID *uuid.UUID, visibility CommentVisibility, text string, now time.Time) (*Comment, error) {
	if authorID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "author_id is required")
	}
	if text == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "comment text is required")
	}
	if visibility != VisibilityCommittee && visibility != VisibilityInternal {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid visibility %q", visibility)
	}
	if parentID != nil && r.comment(*parentID) == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "parent comment not found")
	}

	c := Comment{
		ID:         uuid.New(),
		ParentID:   parentID,
		AuthorID:   authorID,
		Visibility: visibility,
		Text:       text,
		CreatedAt:  now,
	}
	r.Comments = append(r.Comments, c)
	return &r.Comments[len(r.Comments)-1], nil
}

// Events drains the pending domain events accumulated since the last drain.
// Callers publish them after a successful save.
func (r *Review) Events() []audit.Event {
	events := r.pending
	r.pending = nil
	return events
}

func (r *Review) record(event audit.Event) {
	r.pending = append(r.pending, event)
}

func (r *Review) member(userID id.UserID) *Member {
	for i := range r.Members {
		if r.Members[i].UserID == userID {
			return &r.Members[i]
		}
	}
	return nil
}

func (r *Review) comment(commentID uuid.UUID) *Comment {
	for i := range r.Comments {
		if r.Comments[i].ID == commentID {
			return &r.Comments[i]
		}
	}
	return nil
}

func (r *Review) countVotes(v Vote) int {
	n := 0
	for i := range r.Members {
		if r.Members[i].Vote == v {
			n++
		}
	}
	return n
}
