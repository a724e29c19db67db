package moderation

import (
	"context"
	"errors"
	"fmt"

	"github.com/snap-point/moderation-api/models"
	"github.com/snap-point/moderation-api/notify"
	"github.com/snap-point/moderation-api/types"
	"go.uber.org/zap"
)

// ExecuteAutoActions applies each action to the content or its author. A
// failing action is logged and does not stop the others. It returns the
// actions that failed.
func (o *Orchestrator) ExecuteAutoActions(ctx context.Context, c types.ContentToModerate, actions []string) []string {
	var failed []string
	for _, action := range actions {
		if action == types.ActionRequireReview {
			continue
		}
		activity, err := o.executeAction(ctx, c, action)
		if err != nil {
			autoActionsExecuted.WithLabelValues(action, "error").Inc()
			failed = append(failed, action)
			level := o.log.Error
			if errors.Is(err, types.ErrNotFound) {
				level = o.log.Warn
			}
			level("auto-action failed",
				zap.String("action", action),
				zap.String("content_id", c.ID),
				zap.String("content_type", string(c.Type)),
				zap.String("user_id", c.UserID),
				zap.Error(err))
			continue
		}
		autoActionsExecuted.WithLabelValues(action, "ok").Inc()

		err = o.store.LogActivity(ctx, &models.ActivityLog{
			UserID:      c.UserID,
			ContentID:   c.ID,
			ContentType: string(c.Type),
			Activity:    activity,
			Details:     "auto-action " + action,
		})
		if err != nil {
			o.log.Warn("recording auto-action", zap.String("action", action), zap.Error(err))
		}
	}
	return failed
}

func (o *Orchestrator) executeAction(ctx context.Context, c types.ContentToModerate, action string) (string, error) {
	switch action {
	case types.ActionHideContent:
		if err := o.store.HideContent(ctx, c.ID, c.Type); err != nil {
			return "", err
		}
		o.notify.Send(notify.Notification{
			UserID:   c.UserID,
			Type:     notify.TypeContentAction,
			Title:    "Your content was hidden",
			Message:  fmt.Sprintf("Your %s was hidden by automatic moderation and will be reviewed.", c.Type),
			Priority: types.PriorityMedium,
			Data:     map[string]any{"contentId": c.ID, "contentType": string(c.Type)},
		})
		return "content_hidden", nil

	case types.ActionFlagUser:
		return "user_flagged", o.store.FlagUser(ctx, c.UserID)

	case types.ActionSendWarning:
		if err := o.store.WarnUser(ctx, c.UserID); err != nil {
			return "", err
		}
		o.notify.Send(notify.Notification{
			UserID:   c.UserID,
			Type:     notify.TypeAccountAction,
			Title:    "Community guidelines warning",
			Message:  "Some of your recent content goes against our community guidelines.",
			Priority: types.PriorityHigh,
			Data:     map[string]any{"contentId": c.ID, "contentType": string(c.Type)},
		})
		return "user_warned", nil

	case types.ActionTemporaryBan:
		until := o.now().Add(o.opts.SuspensionDuration)
		if err := o.store.SuspendUser(ctx, c.UserID, until); err != nil {
			return "", err
		}
		o.notify.Send(notify.Notification{
			UserID:   c.UserID,
			Type:     notify.TypeAccountAction,
			Title:    "Your account has been suspended",
			Message:  fmt.Sprintf("Your account is suspended until %s.", until.UTC().Format("2006-01-02 15:04 MST")),
			Priority: types.PriorityUrgent,
		})
		return "user_suspended", nil
	}
	return "", fmt.Errorf("unknown auto-action %q", action)
}
