package webhook

import (
	"context"
	"strings"

	"github.com/goliatone/go-whatsapp/core"
	"github.com/goliatone/go-whatsapp/updates"
)

// interactiveKinds routes interactive reply sub-types. Sub-types not in
// this table fall back to KindMessage; they never hard-fail.
var interactiveKinds = map[string]updates.Kind{
	core.InteractiveTypeButtonReply: updates.KindCallbackButton,
	core.InteractiveTypeListReply:   updates.KindCallbackSelection,
	core.InteractiveTypeNFMReply:    updates.KindFlowCompletion,
}

// messageTypeKinds routes the non-interactive message types that have a
// dedicated category. Everything else is a plain message.
var messageTypeKinds = map[string]updates.Kind{
	core.MessageTypeButton:         updates.KindCallbackButton,
	core.MessageTypeRequestWelcome: updates.KindChatOpened,
}

// fieldKinds routes webhook fields other than "messages". Unknown fields
// classify as KindNone: the platform adds fields over time and forward
// compatibility is a hard requirement.
var fieldKinds = map[string]updates.Kind{
	core.FieldTemplateStatusUpdate:   updates.KindTemplateStatus,
	core.FieldAccountAlerts:          updates.KindAccountAlert,
	core.FieldAccountUpdate:          updates.KindAccountAlert,
	core.FieldPhoneNumberNameUpdate:  updates.KindAccountAlert,
	core.FieldPhoneNumberQualityDrop: updates.KindAccountAlert,
}

// Classifier decides which handler category a notification belongs to,
// without constructing the typed update. Classification is cheap and has
// no side effects beyond logging.
type Classifier struct {
	// PhoneNumberID and FilterUpdates enable the own-number filter: when
	// on, notifications targeting another number classify as KindNone.
	PhoneNumberID string
	FilterUpdates bool
	Logger        core.Logger
}

// Classify returns the category for a notification, KindNone when no
// category applies, or an error when the minimal entry/change shape is
// missing.
func (c Classifier) Classify(ctx context.Context, notification *core.Notification) (updates.Kind, error) {
	change, err := notification.FirstChange()
	if err != nil {
		return updates.KindNone, err
	}
	field := strings.TrimSpace(change.Field)
	if field != core.FieldMessages {
		return fieldKinds[field], nil
	}

	value := change.Value
	if c.FilterUpdates && strings.TrimSpace(c.PhoneNumberID) != "" &&
		value.Metadata.PhoneNumberID != c.PhoneNumberID {
		core.LogWith(ctx, c.Logger, "debug", "notification targets another number, ignoring", map[string]any{
			"phone_number_id": value.Metadata.PhoneNumberID,
		})
		return updates.KindNone, nil
	}

	if len(value.Messages) > 0 {
		return c.classifyMessage(ctx, value.Messages[0]), nil
	}
	if len(value.Statuses) > 0 {
		return updates.KindMessageStatus, nil
	}
	core.LogWith(ctx, c.Logger, "warn", "unknown messages-field value shape", map[string]any{
		"field": field,
	})
	return updates.KindNone, nil
}

func (c Classifier) classifyMessage(ctx context.Context, message core.Message) updates.Kind {
	if message.Type == core.MessageTypeInteractive {
		// The platform resends an interactive message without its
		// sub-type when the original delivery errored; treat that as a
		// plain message rather than failing.
		if message.Interactive == nil || message.Interactive.Type == "" {
			return updates.KindMessage
		}
		if kind, ok := interactiveKinds[message.Interactive.Type]; ok {
			return kind
		}
		core.LogWith(ctx, c.Logger, "warn", "unknown interactive sub-type, falling back to message", map[string]any{
			"interactive_type": message.Interactive.Type,
			"message_id":       message.ID,
		})
		return updates.KindMessage
	}
	if kind, ok := messageTypeKinds[message.Type]; ok {
		return kind
	}
	return updates.KindMessage
}
