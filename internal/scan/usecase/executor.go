package usecase

import (
	"context"
	"fmt"

	ruledomain "labeler-backend/internal/rule/domain"
)

// applyRule performs the side effects for one matched rule: the label first,
// then at most one destructive action in fixed priority spam > trash >
// archive. Returns human-readable descriptions of what was done, for the log
// feed. A partial failure returns the actions that did complete alongside
// the error.
func applyRule(ctx context.Context, mailbox Mailbox, messageID string, rule ruledomain.Rule, labelID string) ([]string, error) {
	if err := mailbox.ApplyLabel(ctx, messageID, labelID); err != nil {
		return nil, fmt.Errorf("apply label %q: %w", rule.LabelName, err)
	}
	actions := []string{fmt.Sprintf("labeled → %s", rule.LabelName)}

	switch {
	case rule.ActionSpam:
		if err := mailbox.MarkSpam(ctx, messageID); err != nil {
			return actions, fmt.Errorf("mark spam: %w", err)
		}
		actions = append(actions, "sent to spam")
	case rule.ActionTrash:
		if err := mailbox.Trash(ctx, messageID); err != nil {
			return actions, fmt.Errorf("trash: %w", err)
		}
		actions = append(actions, "trashed")
	case rule.ActionArchive:
		if err := mailbox.Archive(ctx, messageID); err != nil {
			return actions, fmt.Errorf("archive: %w", err)
		}
		actions = append(actions, "archived")
	}

	return actions, nil
}
