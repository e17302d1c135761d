package bulletin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonmuehling/educafric-platform-sub005/core"
)

func TestApply(t *testing.T) {
	now := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name           string
		status         Status
		cmd            Command
		wantStatus     Status
		wantTransition bool // InvalidTransition expected
		wantValidation string
	}{
		{name: "submit draft", status: StatusDraft, cmd: Submit("7", "ready"), wantStatus: StatusPending},
		{name: "resubmit rejected", status: StatusRejected, cmd: Submit("7", "fixed"), wantStatus: StatusPending},
		{name: "submit without comment", status: StatusDraft, cmd: Submit("7", "  "), wantValidation: "comment"},
		{name: "submit pending", status: StatusPending, cmd: Submit("7", "again"), wantTransition: true},
		{name: "approve pending", status: StatusPending, cmd: Approve("3", ""), wantStatus: StatusApproved},
		{name: "approve draft", status: StatusDraft, cmd: Approve("3", ""), wantTransition: true},
		{name: "reject pending", status: StatusPending, cmd: Reject("3", "math grade missing"), wantStatus: StatusRejected},
		{name: "reject without comment", status: StatusPending, cmd: Reject("3", ""), wantValidation: "comment"},
		{name: "reject approved", status: StatusApproved, cmd: Reject("3", "late"), wantTransition: true},
		{name: "send approved", status: StatusApproved, cmd: Send("3", ""), wantStatus: StatusSent},
		{name: "send pending", status: StatusPending, cmd: Send("3", ""), wantTransition: true},
		{name: "send draft", status: StatusDraft, cmd: Send("3", ""), wantTransition: true},
		{name: "send sent", status: StatusSent, cmd: Send("3", ""), wantTransition: true},
		{name: "submit sent", status: StatusSent, cmd: Submit("3", "reopen"), wantTransition: true},
		{name: "unknown action", status: StatusDraft, cmd: Command{Action: "publish", ActorID: "3"}, wantValidation: "action"},
		{name: "no actor", status: StatusDraft, cmd: Submit("", "ready"), wantValidation: "actor"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := Bulletin{ID: "b1", Status: tt.status, Version: 4}
			got, approval, err := Apply(b, tt.cmd, now)

			switch {
			case tt.wantTransition:
				require.True(t, IsInvalidTransition(err), "got err %v", err)
				terr := err.(*TransitionError)
				assert.Equal(t, tt.status, terr.Status)
				assert.Equal(t, tt.cmd.Action, terr.Action)
				assert.ErrorIs(t, err, ErrInvalidTransition)
			case tt.wantValidation != "":
				require.Error(t, err)
				vErr, ok := err.(*core.ValidationError)
				require.True(t, ok, "got err %v", err)
				require.Len(t, vErr.Fields, 1)
				assert.Equal(t, tt.wantValidation, vErr.Fields[0].Field)
			default:
				require.NoError(t, err)
				assert.Equal(t, tt.wantStatus, got.Status)
				assert.Equal(t, 4, got.Version, "Apply does not bump versions")
				assert.Equal(t, tt.status, approval.PreviousStatus)
				assert.Equal(t, tt.wantStatus, approval.NewStatus)
				assert.Equal(t, tt.cmd.ActorID, approval.UserID)
				assert.Equal(t, now, approval.Timestamp)
			}
		})
	}
}

func TestApplyRecordsActor(t *testing.T) {
	now := time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
	b := Bulletin{ID: "b1", Status: StatusDraft}

	b, a, err := Apply(b, Submit("7", " all grades in "), now)
	require.NoError(t, err)
	assert.Equal(t, "7", b.SubmittedBy)
	assert.Equal(t, now, b.SubmittedAt)
	assert.Equal(t, "all grades in", b.SubmissionComment)
	assert.Equal(t, "submitted", a.Action)

	later := now.Add(time.Hour)
	b, a, err = Apply(b, Reject("3", "missing history"), later)
	require.NoError(t, err)
	assert.Equal(t, "3", b.RejectedBy)
	assert.Equal(t, later, b.RejectedAt)
	assert.Equal(t, "missing history", b.RejectionComment)
	assert.Equal(t, "rejected", a.Action)

	b, _, err = Apply(b, Submit("7", "history added"), later)
	require.NoError(t, err)
	b, a, err = Apply(b, Approve("3", ""), later)
	require.NoError(t, err)
	assert.Equal(t, "3", b.ApprovedBy)
	assert.Equal(t, "approved", a.Action)
	assert.Empty(t, a.Comment)

	b, a, err = Apply(b, Send("3", ""), later)
	require.NoError(t, err)
	assert.Equal(t, StatusSent, b.Status)
	assert.Equal(t, "3", b.SentBy)
	assert.Equal(t, "sent", a.Action)
}

func Test_canApply(t *testing.T) {
	assert.True(t, canApply(StatusDraft, ActionSubmit))
	assert.False(t, canApply(StatusDraft, ActionSend))
	for _, action := range []Action{ActionSubmit, ActionApprove, ActionReject, ActionSend} {
		assert.False(t, canApply(StatusSent, action), "sent is terminal: %s", action)
	}
}
