package bulletin

import (
	"strings"
	"time"

	"github.com/simonmuehling/educafric-platform-sub005/core"
)

// Action is a command of the approval workflow.
type Action string

const (
	ActionSubmit  Action = "submit"
	ActionApprove Action = "approve"
	ActionReject  Action = "reject"
	ActionSend    Action = "send"
)

var maxCommentLen = 500

// Command asks the workflow to apply Action to a bulletin on behalf of ActorID.
type Command struct {
	Action  Action `json:"action"`
	ActorID string `json:"-"`
	Comment string `json:"comment"`
}

func Submit(actorID, comment string) Command {
	return Command{Action: ActionSubmit, ActorID: actorID, Comment: comment}
}

func Approve(actorID, comment string) Command {
	return Command{Action: ActionApprove, ActorID: actorID, Comment: comment}
}

func Reject(actorID, comment string) Command {
	return Command{Action: ActionReject, ActorID: actorID, Comment: comment}
}

func Send(actorID, comment string) Command {
	return Command{Action: ActionSend, ActorID: actorID, Comment: comment}
}

type transition struct {
	from            []Status
	to              Status
	commentRequired bool
	audit           string // Approval.Action
	record          func(b *Bulletin, actor, comment string, now time.Time)
}

func (tr transition) allowedFrom(s Status) bool {
	for _, from := range tr.from {
		if s == from {
			return true
		}
	}
	return false
}

// transitions is the only place where the workflow's state machine is defined.
// sent is terminal: no transition leaves it.
var transitions = map[Action]transition{
	ActionSubmit: {
		from:            []Status{StatusDraft, StatusRejected},
		to:              StatusPending,
		commentRequired: true,
		audit:           "submitted",
		record: func(b *Bulletin, actor, comment string, now time.Time) {
			b.SubmittedBy = actor
			b.SubmittedAt = now
			b.SubmissionComment = comment
		},
	},
	ActionApprove: {
		from:  []Status{StatusPending},
		to:    StatusApproved,
		audit: "approved",
		record: func(b *Bulletin, actor, comment string, now time.Time) {
			b.ApprovedBy = actor
			b.ApprovedAt = now
			b.ApprovalComment = comment
		},
	},
	ActionReject: {
		from:            []Status{StatusPending},
		to:              StatusRejected,
		commentRequired: true,
		audit:           "rejected",
		record: func(b *Bulletin, actor, comment string, now time.Time) {
			b.RejectedBy = actor
			b.RejectedAt = now
			b.RejectionComment = comment
		},
	},
	ActionSend: {
		from:  []Status{StatusApproved},
		to:    StatusSent,
		audit: "sent",
		record: func(b *Bulletin, actor, comment string, now time.Time) {
			b.SentBy = actor
			b.SentAt = now
			if comment != "" {
				b.DirectorComments = comment
			}
		},
	},
}

// canApply reports whether the action is allowed from status s.
func canApply(s Status, action Action) bool {
	tr, ok := transitions[action]
	return ok && tr.allowedFrom(s)
}

// Apply validates cmd against the bulletin's current status and returns the bulletin in its new state
// along with the audit row to persist with it. It does not touch storage.
func Apply(b Bulletin, cmd Command, now time.Time) (Bulletin, Approval, error) {
	tr, ok := transitions[cmd.Action]
	if !ok {
		return Bulletin{}, Approval{}, core.NewFieldError("action", "unknown action")
	}
	if !canApply(b.Status, cmd.Action) {
		return Bulletin{}, Approval{}, &TransitionError{Status: b.Status, Action: cmd.Action}
	}

	comment := core.CleanString(cmd.Comment)
	if tr.commentRequired && comment == "" {
		return Bulletin{}, Approval{}, core.NewFieldError("comment", "a comment is required to "+string(cmd.Action)+" a bulletin")
	}
	if len([]rune(comment)) > maxCommentLen {
		return Bulletin{}, Approval{}, core.NewFieldError("comment", "comment must be at most 500 characters")
	}
	if strings.TrimSpace(cmd.ActorID) == "" {
		return Bulletin{}, Approval{}, core.NewFieldError("actor", "an authenticated actor is required")
	}

	prev := b.Status
	b.Status = tr.to
	b.UpdatedAt = now
	tr.record(&b, cmd.ActorID, comment, now)

	approval := Approval{
		BulletinID:     b.ID,
		UserID:         cmd.ActorID,
		Action:         tr.audit,
		PreviousStatus: prev,
		NewStatus:      b.Status,
		Comment:        comment,
		Timestamp:      now,
	}
	return b, approval, nil
}
