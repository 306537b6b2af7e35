package updates

import (
	"testing"

	"github.com/goliatone/go-whatsapp/core"
)

func parseTestNotification(t *testing.T, body string) *core.Notification {
	t.Helper()
	notification, err := core.ParseNotification([]byte(body))
	if err != nil {
		t.Fatalf("parse notification: %v", err)
	}
	return notification
}

func TestNewMessage(t *testing.T) {
	notification := parseTestNotification(t, `{"entry":[{"id":"e1","changes":[{"field":"messages","value":{"metadata":{"phone_number_id":"111"},"contacts":[{"wa_id":"15550001111","profile":{"name":"Ada"}}],"messages":[{"id":"wamid.1","from":"15550001111","timestamp":"1700000000","type":"text","text":{"body":"hello"}}]}}]}]}`)
	update, err := NewMessage(notification)
	if err != nil {
		t.Fatalf("construct message: %v", err)
	}
	message, ok := update.(Message)
	if !ok {
		t.Fatalf("expected Message, got %T", update)
	}
	if message.ID != "wamid.1" || message.Sender != "15550001111" || message.Body != "hello" {
		t.Fatalf("unexpected message fields: %+v", message)
	}
	if message.SenderName != "Ada" {
		t.Fatalf("expected sender name from contacts, got %q", message.SenderName)
	}
	if message.Metadata.PhoneNumberID != "111" {
		t.Fatalf("expected metadata carried through, got %+v", message.Metadata)
	}
}

func TestNewCallbackButton_InteractiveAndLegacy(t *testing.T) {
	interactive := parseTestNotification(t, `{"entry":[{"id":"e1","changes":[{"field":"messages","value":{"messages":[{"id":"wamid.1","from":"1555","type":"interactive","interactive":{"type":"button_reply","button_reply":{"id":"confirm","title":"Confirm"}}}]}}]}]}`)
	update, err := NewCallbackButton(interactive)
	if err != nil {
		t.Fatalf("construct interactive button: %v", err)
	}
	button := update.(CallbackButton)
	if button.Data != "confirm" || button.Title != "Confirm" {
		t.Fatalf("unexpected button fields: %+v", button)
	}

	legacy := parseTestNotification(t, `{"entry":[{"id":"e1","changes":[{"field":"messages","value":{"messages":[{"id":"wamid.2","from":"1555","type":"button","button":{"payload":"order-1","text":"Track order"}}]}}]}]}`)
	update, err = NewCallbackButton(legacy)
	if err != nil {
		t.Fatalf("construct legacy button: %v", err)
	}
	button = update.(CallbackButton)
	if button.Data != "order-1" || button.Title != "Track order" {
		t.Fatalf("unexpected legacy button fields: %+v", button)
	}

	bare := parseTestNotification(t, `{"entry":[{"id":"e1","changes":[{"field":"messages","value":{"messages":[{"id":"wamid.3","from":"1555","type":"text"}]}}]}]}`)
	if _, err := NewCallbackButton(bare); err == nil {
		t.Fatalf("expected error when no button payload present")
	}
}

func TestNewCallbackSelection(t *testing.T) {
	notification := parseTestNotification(t, `{"entry":[{"id":"e1","changes":[{"field":"messages","value":{"messages":[{"id":"wamid.1","from":"1555","type":"interactive","interactive":{"type":"list_reply","list_reply":{"id":"opt-2","title":"Large","description":"Family size"}}}]}}]}]}`)
	update, err := NewCallbackSelection(notification)
	if err != nil {
		t.Fatalf("construct selection: %v", err)
	}
	selection := update.(CallbackSelection)
	if selection.OptionID != "opt-2" || selection.Title != "Large" || selection.Description != "Family size" {
		t.Fatalf("unexpected selection fields: %+v", selection)
	}
}

func TestNewFlowCompletion(t *testing.T) {
	notification := parseTestNotification(t, `{"entry":[{"id":"e1","changes":[{"field":"messages","value":{"messages":[{"id":"wamid.1","from":"1555","type":"interactive","interactive":{"type":"nfm_reply","nfm_reply":{"name":"signup","body":"Sent","response_json":"{\"flow_token\":\"tok-1\"}"}}}]}}]}]}`)
	update, err := NewFlowCompletion(notification)
	if err != nil {
		t.Fatalf("construct flow completion: %v", err)
	}
	completion := update.(FlowCompletion)
	if completion.Name != "signup" || completion.ResponseJSON != `{"flow_token":"tok-1"}` {
		t.Fatalf("unexpected completion fields: %+v", completion)
	}
}

func TestNewMessageStatus(t *testing.T) {
	notification := parseTestNotification(t, `{"entry":[{"id":"e1","changes":[{"field":"messages","value":{"statuses":[{"id":"wamid.1","status":"failed","recipient_id":"1555","errors":[{"code":131047,"title":"Re-engagement message"}]}]}}]}]}`)
	update, err := NewMessageStatus(notification)
	if err != nil {
		t.Fatalf("construct status: %v", err)
	}
	status := update.(MessageStatus)
	if status.Status != "failed" || status.RecipientID != "1555" {
		t.Fatalf("unexpected status fields: %+v", status)
	}
	if len(status.Errors) != 1 || status.Errors[0].Code != 131047 {
		t.Fatalf("expected status errors carried through, got %+v", status.Errors)
	}

	noStatuses := parseTestNotification(t, `{"entry":[{"id":"e1","changes":[{"field":"messages","value":{}}]}]}`)
	if _, err := NewMessageStatus(noStatuses); err == nil {
		t.Fatalf("expected error when statuses are missing")
	}
}

func TestNewTemplateStatus(t *testing.T) {
	notification := parseTestNotification(t, `{"entry":[{"id":"e1","changes":[{"field":"message_template_status_update","value":{"event":"REJECTED","message_template_id":"tpl-9","reason":"INVALID_FORMAT"}}]}]}`)
	update, err := NewTemplateStatus(notification)
	if err != nil {
		t.Fatalf("construct template status: %v", err)
	}
	status := update.(TemplateStatus)
	if status.Event != "REJECTED" || status.TemplateID != "tpl-9" || status.Reason != "INVALID_FORMAT" {
		t.Fatalf("unexpected template status fields: %+v", status)
	}
	if len(status.Raw) == 0 {
		t.Fatalf("expected raw payload preserved")
	}
}

func TestNewAccountAlert(t *testing.T) {
	notification := parseTestNotification(t, `{"entry":[{"id":"e1","changes":[{"field":"account_alerts","value":{"alert_severity":"WARNING"}}]}]}`)
	update, err := NewAccountAlert(notification)
	if err != nil {
		t.Fatalf("construct account alert: %v", err)
	}
	alert := update.(AccountAlert)
	if alert.Field != "account_alerts" {
		t.Fatalf("unexpected alert field: %q", alert.Field)
	}
	if len(alert.Raw) == 0 {
		t.Fatalf("expected raw payload preserved")
	}
}

func TestConstructorFor_CoversEveryKind(t *testing.T) {
	for _, kind := range Kinds() {
		if _, ok := ConstructorFor(kind); !ok {
			t.Fatalf("expected constructor for %q", kind)
		}
	}
	if _, ok := ConstructorFor(KindNone); ok {
		t.Fatalf("expected no constructor for the none category")
	}
}
