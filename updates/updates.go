// Package updates defines the typed views of webhook notifications that
// category handlers receive, and the constructors that build them.
package updates

import (
	"encoding/json"
	"strings"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-whatsapp/core"
)

// Kind is the classification bucket a notification is routed to. The set
// is closed; unknown shapes classify as KindNone and reach only raw
// handlers.
type Kind string

const (
	KindNone              Kind = ""
	KindMessage           Kind = "message"
	KindCallbackButton    Kind = "callback_button"
	KindCallbackSelection Kind = "callback_selection"
	KindFlowCompletion    Kind = "flow_completion"
	KindMessageStatus     Kind = "message_status"
	KindChatOpened        Kind = "chat_opened"
	KindTemplateStatus    Kind = "template_status"
	KindAccountAlert      Kind = "account_alert"
)

// Kinds returns every real category, in a stable order. Used as the
// default webhook field subscription list.
func Kinds() []Kind {
	return []Kind{
		KindMessage,
		KindCallbackButton,
		KindCallbackSelection,
		KindFlowCompletion,
		KindMessageStatus,
		KindChatOpened,
		KindTemplateStatus,
		KindAccountAlert,
	}
}

type Update interface {
	UpdateKind() Kind
}

// Constructor builds a typed update from a parsed notification. It may
// fail; dispatch then skips that category's handlers but still runs raw
// handlers.
type Constructor func(notification *core.Notification) (Update, error)

// Message is a regular incoming message (also the fallback for unknown
// message and interactive sub-types).
type Message struct {
	ID         string
	Sender     string
	SenderName string
	Timestamp  string
	Type       string
	Body       string
	Metadata   core.Metadata
	Raw        *core.Message
}

func (Message) UpdateKind() Kind { return KindMessage }

// CallbackButton is a press on a reply button, either the interactive
// button_reply shape or the legacy template "button" message type.
type CallbackButton struct {
	MessageID string
	Sender    string
	Timestamp string
	Data      string
	Title     string
	Metadata  core.Metadata
}

func (CallbackButton) UpdateKind() Kind { return KindCallbackButton }

// CallbackSelection is a pick from an interactive list message.
type CallbackSelection struct {
	MessageID   string
	Sender      string
	Timestamp   string
	OptionID    string
	Title       string
	Description string
	Metadata    core.Metadata
}

func (CallbackSelection) UpdateKind() Kind { return KindCallbackSelection }

// FlowCompletion is a submitted interactive form (nfm_reply).
type FlowCompletion struct {
	MessageID    string
	Sender       string
	Timestamp    string
	Name         string
	Body         string
	ResponseJSON string
	Metadata     core.Metadata
}

func (FlowCompletion) UpdateKind() Kind { return KindFlowCompletion }

// MessageStatus reports delivery state for a previously sent message.
type MessageStatus struct {
	MessageID   string
	Status      string
	Timestamp   string
	RecipientID string
	Errors      []core.ErrorDetail
	Metadata    core.Metadata
}

func (MessageStatus) UpdateKind() Kind { return KindMessageStatus }

// ChatOpened fires when a user opens a conversation for the first time
// (the request_welcome message type).
type ChatOpened struct {
	MessageID string
	Sender    string
	Timestamp string
	Metadata  core.Metadata
}

func (ChatOpened) UpdateKind() Kind { return KindChatOpened }

// TemplateStatus carries a template review decision. The platform payload
// is kept raw; it has no messages-style envelope.
type TemplateStatus struct {
	Event      string
	TemplateID string
	Reason     string
	Raw        json.RawMessage
}

func (TemplateStatus) UpdateKind() Kind { return KindTemplateStatus }

// AccountAlert carries account-level notices (alerts and updates).
type AccountAlert struct {
	Field string
	Raw   json.RawMessage
}

func (AccountAlert) UpdateKind() Kind { return KindAccountAlert }

// ConstructorFor returns the default constructor for a category.
func ConstructorFor(kind Kind) (Constructor, bool) {
	constructor, ok := defaultConstructors[kind]
	return constructor, ok
}

var defaultConstructors = map[Kind]Constructor{
	KindMessage:           NewMessage,
	KindCallbackButton:    NewCallbackButton,
	KindCallbackSelection: NewCallbackSelection,
	KindFlowCompletion:    NewFlowCompletion,
	KindMessageStatus:     NewMessageStatus,
	KindChatOpened:        NewChatOpened,
	KindTemplateStatus:    NewTemplateStatus,
	KindAccountAlert:      NewAccountAlert,
}

func NewMessage(notification *core.Notification) (Update, error) {
	change, message, err := firstMessage(notification)
	if err != nil {
		return nil, err
	}
	update := Message{
		ID:        message.ID,
		Sender:    message.From,
		Timestamp: message.Timestamp,
		Type:      message.Type,
		Metadata:  change.Value.Metadata,
		Raw:       message,
	}
	if message.Text != nil {
		update.Body = message.Text.Body
	}
	if len(change.Value.Contacts) > 0 {
		update.SenderName = change.Value.Contacts[0].Profile.Name
	}
	return update, nil
}

func NewCallbackButton(notification *core.Notification) (Update, error) {
	change, message, err := firstMessage(notification)
	if err != nil {
		return nil, err
	}
	update := CallbackButton{
		MessageID: message.ID,
		Sender:    message.From,
		Timestamp: message.Timestamp,
		Metadata:  change.Value.Metadata,
	}
	switch {
	case message.Interactive != nil && message.Interactive.ButtonReply != nil:
		update.Data = message.Interactive.ButtonReply.ID
		update.Title = message.Interactive.ButtonReply.Title
	case message.Button != nil:
		update.Data = message.Button.Payload
		update.Title = message.Button.Text
	default:
		return nil, constructionError("updates: message carries no button reply", map[string]any{
			"message_id": message.ID,
		})
	}
	return update, nil
}

func NewCallbackSelection(notification *core.Notification) (Update, error) {
	change, message, err := firstMessage(notification)
	if err != nil {
		return nil, err
	}
	if message.Interactive == nil || message.Interactive.ListReply == nil {
		return nil, constructionError("updates: message carries no list reply", map[string]any{
			"message_id": message.ID,
		})
	}
	reply := message.Interactive.ListReply
	return CallbackSelection{
		MessageID:   message.ID,
		Sender:      message.From,
		Timestamp:   message.Timestamp,
		OptionID:    reply.ID,
		Title:       reply.Title,
		Description: reply.Description,
		Metadata:    change.Value.Metadata,
	}, nil
}

func NewFlowCompletion(notification *core.Notification) (Update, error) {
	change, message, err := firstMessage(notification)
	if err != nil {
		return nil, err
	}
	if message.Interactive == nil || message.Interactive.NFMReply == nil {
		return nil, constructionError("updates: message carries no form reply", map[string]any{
			"message_id": message.ID,
		})
	}
	reply := message.Interactive.NFMReply
	return FlowCompletion{
		MessageID:    message.ID,
		Sender:       message.From,
		Timestamp:    message.Timestamp,
		Name:         reply.Name,
		Body:         reply.Body,
		ResponseJSON: reply.ResponseJSON,
		Metadata:     change.Value.Metadata,
	}, nil
}

func NewMessageStatus(notification *core.Notification) (Update, error) {
	change, err := notification.FirstChange()
	if err != nil {
		return nil, err
	}
	if len(change.Value.Statuses) == 0 {
		return nil, constructionError("updates: notification carries no statuses", nil)
	}
	status := change.Value.Statuses[0]
	return MessageStatus{
		MessageID:   status.ID,
		Status:      status.Status,
		Timestamp:   status.Timestamp,
		RecipientID: status.RecipientID,
		Errors:      append([]core.ErrorDetail(nil), status.Errors...),
		Metadata:    change.Value.Metadata,
	}, nil
}

func NewChatOpened(notification *core.Notification) (Update, error) {
	change, message, err := firstMessage(notification)
	if err != nil {
		return nil, err
	}
	return ChatOpened{
		MessageID: message.ID,
		Sender:    message.From,
		Timestamp: message.Timestamp,
		Metadata:  change.Value.Metadata,
	}, nil
}

func NewTemplateStatus(notification *core.Notification) (Update, error) {
	change, err := notification.FirstChange()
	if err != nil {
		return nil, err
	}
	payload := struct {
		Event      string `json:"event"`
		TemplateID string `json:"message_template_id"`
		Reason     string `json:"reason"`
	}{}
	if len(change.Value.Raw) > 0 {
		if err := json.Unmarshal(change.Value.Raw, &payload); err != nil {
			return nil, constructionError("updates: parse template status payload", map[string]any{
				"field": change.Field,
			})
		}
	}
	return TemplateStatus{
		Event:      payload.Event,
		TemplateID: payload.TemplateID,
		Reason:     payload.Reason,
		Raw:        append(json.RawMessage(nil), change.Value.Raw...),
	}, nil
}

func NewAccountAlert(notification *core.Notification) (Update, error) {
	change, err := notification.FirstChange()
	if err != nil {
		return nil, err
	}
	return AccountAlert{
		Field: change.Field,
		Raw:   append(json.RawMessage(nil), change.Value.Raw...),
	}, nil
}

func firstMessage(notification *core.Notification) (core.Change, *core.Message, error) {
	change, err := notification.FirstChange()
	if err != nil {
		return core.Change{}, nil, err
	}
	if len(change.Value.Messages) == 0 {
		return core.Change{}, nil, constructionError("updates: notification carries no messages", map[string]any{
			"field": change.Field,
		})
	}
	message := change.Value.Messages[0]
	if strings.TrimSpace(message.ID) == "" {
		return core.Change{}, nil, constructionError("updates: message id is required", nil)
	}
	return change, &message, nil
}

func constructionError(message string, metadata map[string]any) error {
	err := goerrors.New(message, goerrors.CategoryBadInput).
		WithTextCode(core.ErrorUpdateConstruction)
	if len(metadata) > 0 {
		err.WithMetadata(metadata)
	}
	return err
}
