package core

import (
	"encoding/json"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Webhook change fields the platform currently delivers. Unknown fields
// must classify as "none", never error: the platform adds fields over time.
const (
	FieldMessages               = "messages"
	FieldTemplateStatusUpdate   = "message_template_status_update"
	FieldAccountAlerts          = "account_alerts"
	FieldAccountUpdate          = "account_update"
	FieldPhoneNumberNameUpdate  = "phone_number_name_update"
	FieldPhoneNumberQualityDrop = "phone_number_quality_update"
)

// Message types carried under the "messages" field.
const (
	MessageTypeText           = "text"
	MessageTypeInteractive    = "interactive"
	MessageTypeButton         = "button"
	MessageTypeRequestWelcome = "request_welcome"
)

// Interactive reply sub-types.
const (
	InteractiveTypeButtonReply = "button_reply"
	InteractiveTypeListReply   = "list_reply"
	InteractiveTypeNFMReply    = "nfm_reply"
)

// Notification is one asynchronous event delivered by the platform over
// the webhook channel: a list of entries, each carrying a list of changes.
type Notification struct {
	Object string  `json:"object"`
	Entry  []Entry `json:"entry"`

	raw []byte
}

type Entry struct {
	ID      string   `json:"id"`
	Time    int64    `json:"time,omitempty"`
	Changes []Change `json:"changes"`
}

type Change struct {
	Field string `json:"field"`
	Value Value  `json:"value"`
}

// Value is the change payload. Exactly one of Messages / Statuses is
// populated for the "messages" field; other fields deliver their data
// through Raw.
type Value struct {
	MessagingProduct string          `json:"messaging_product,omitempty"`
	Metadata         Metadata        `json:"metadata,omitempty"`
	Contacts         []Contact       `json:"contacts,omitempty"`
	Messages         []Message       `json:"messages,omitempty"`
	Statuses         []Status        `json:"statuses,omitempty"`
	Errors           []ErrorDetail   `json:"errors,omitempty"`
	Raw              json.RawMessage `json:"-"`
}

// UnmarshalJSON keeps the undecoded change payload available for fields
// whose value shape this module does not model.
func (v *Value) UnmarshalJSON(data []byte) error {
	type plain Value
	decoded := plain{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*v = Value(decoded)
	v.Raw = append(json.RawMessage(nil), data...)
	return nil
}

type Metadata struct {
	DisplayPhoneNumber string `json:"display_phone_number,omitempty"`
	PhoneNumberID      string `json:"phone_number_id,omitempty"`
}

type Contact struct {
	WaID    string         `json:"wa_id"`
	Profile ContactProfile `json:"profile"`
}

type ContactProfile struct {
	Name string `json:"name"`
}

type Message struct {
	From        string        `json:"from"`
	ID          string        `json:"id"`
	Timestamp   string        `json:"timestamp"`
	Type        string        `json:"type"`
	Text        *Text         `json:"text,omitempty"`
	Button      *ButtonClick  `json:"button,omitempty"`
	Interactive *Interactive  `json:"interactive,omitempty"`
	Context     *MessageRef   `json:"context,omitempty"`
	Errors      []ErrorDetail `json:"errors,omitempty"`
}

type Text struct {
	Body string `json:"body"`
}

// ButtonClick is the legacy template quick-reply button payload.
type ButtonClick struct {
	Payload string `json:"payload"`
	Text    string `json:"text"`
}

// Interactive holds a reply to an interactive message. Type may be empty:
// the platform resends interactive messages without the sub-type on
// delivery errors, and classification must tolerate that.
type Interactive struct {
	Type        string       `json:"type"`
	ButtonReply *ReplyOption `json:"button_reply,omitempty"`
	ListReply   *ReplyOption `json:"list_reply,omitempty"`
	NFMReply    *NFMReply    `json:"nfm_reply,omitempty"`
}

type ReplyOption struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
}

// NFMReply carries an interactive-form completion.
type NFMReply struct {
	Name         string `json:"name"`
	Body         string `json:"body"`
	ResponseJSON string `json:"response_json"`
}

type MessageRef struct {
	From string `json:"from"`
	ID   string `json:"id"`
}

type Status struct {
	ID          string        `json:"id"`
	Status      string        `json:"status"`
	Timestamp   string        `json:"timestamp"`
	RecipientID string        `json:"recipient_id"`
	Errors      []ErrorDetail `json:"errors,omitempty"`
}

type ErrorDetail struct {
	Code    int    `json:"code"`
	Title   string `json:"title"`
	Message string `json:"message,omitempty"`
	Details string `json:"error_data,omitempty"`
}

// ParseNotification decodes a raw webhook delivery, preserving the exact
// bytes for raw handlers and journaling.
func ParseNotification(body []byte) (*Notification, error) {
	if len(body) == 0 {
		return nil, MalformedNotificationError("core: notification body is empty", nil)
	}
	notification := &Notification{}
	if err := json.Unmarshal(body, notification); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "core: parse notification").
			WithTextCode(ErrorMalformedNotification)
	}
	notification.raw = append([]byte(nil), body...)
	return notification, nil
}

// Raw returns the delivery bytes exactly as received.
func (n *Notification) Raw() []byte {
	if n == nil {
		return nil
	}
	return n.raw
}

// FirstChange returns the first entry's first change, the anchor of the
// classification decision tree. Absence is a malformed-input condition.
func (n *Notification) FirstChange() (Change, error) {
	if n == nil || len(n.Entry) == 0 {
		return Change{}, MalformedNotificationError("core: notification has no entries", nil)
	}
	entry := n.Entry[0]
	if len(entry.Changes) == 0 {
		return Change{}, MalformedNotificationError("core: notification entry has no changes", map[string]any{
			"entry_id": entry.ID,
		})
	}
	return entry.Changes[0], nil
}

// DeliveryID derives a stable identity for journaling: the first message
// or status id, falling back to the entry id.
func (n *Notification) DeliveryID() string {
	change, err := n.FirstChange()
	if err != nil {
		return ""
	}
	if len(change.Value.Messages) > 0 {
		if id := strings.TrimSpace(change.Value.Messages[0].ID); id != "" {
			return id
		}
	}
	if len(change.Value.Statuses) > 0 {
		if id := strings.TrimSpace(change.Value.Statuses[0].ID); id != "" {
			return id
		}
	}
	if len(n.Entry) > 0 {
		return strings.TrimSpace(n.Entry[0].ID)
	}
	return ""
}
