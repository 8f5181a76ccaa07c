package usecase

import (
	"context"
	"testing"

	ruledomain "labeler-backend/internal/rule/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyRuleLabelOnly(t *testing.T) {
	mailbox := &fakeMailbox{}
	rule := ruledomain.Rule{ID: 1, Name: "Newsletters", LabelName: "Newsletter"}

	actions, err := applyRule(context.Background(), mailbox, "m1", rule, "L1")

	require.NoError(t, err)
	assert.Equal(t, []string{"labeled → Newsletter"}, actions)
	assert.Equal(t, []string{"label:m1:L1"}, mailbox.callList())
}

func TestApplyRuleDestructivePriority(t *testing.T) {
	tests := []struct {
		name     string
		rule     ruledomain.Rule
		wantCall string
		wantDesc string
	}{
		{
			name:     "spam beats trash and archive",
			rule:     ruledomain.Rule{LabelName: "X", ActionSpam: true, ActionTrash: true, ActionArchive: true},
			wantCall: "spam:m1",
			wantDesc: "sent to spam",
		},
		{
			name:     "trash beats archive",
			rule:     ruledomain.Rule{LabelName: "X", ActionTrash: true, ActionArchive: true},
			wantCall: "trash:m1",
			wantDesc: "trashed",
		},
		{
			name:     "archive alone",
			rule:     ruledomain.Rule{LabelName: "X", ActionArchive: true},
			wantCall: "archive:m1",
			wantDesc: "archived",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mailbox := &fakeMailbox{}
			actions, err := applyRule(context.Background(), mailbox, "m1", tt.rule, "L1")

			require.NoError(t, err)
			assert.Equal(t, []string{"label:m1:L1", tt.wantCall}, mailbox.callList())
			assert.Equal(t, []string{"labeled → X", tt.wantDesc}, actions)
		})
	}
}

func TestApplyRuleLabelFailureSkipsActions(t *testing.T) {
	mailbox := &fakeMailbox{applyErrFor: "m1"}
	rule := ruledomain.Rule{LabelName: "X", ActionTrash: true}

	actions, err := applyRule(context.Background(), mailbox, "m1", rule, "L1")

	require.Error(t, err)
	assert.Empty(t, actions)
	assert.Empty(t, mailbox.callList())
}
