package webhook

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/goliatone/go-whatsapp/core"
	"github.com/goliatone/go-whatsapp/updates"
)

type syncRunner struct {
	submissions []string
}

func (r *syncRunner) Submit(ctx context.Context, name string, task func(context.Context)) error {
	r.submissions = append(r.submissions, name)
	task(ctx)
	return nil
}

type stubJournal struct {
	mu        sync.Mutex
	seen      map[string][]byte
	processed []string
	failWith  error
}

func newStubJournal() *stubJournal {
	return &stubJournal{seen: map[string][]byte{}}
}

func (j *stubJournal) Reserve(_ context.Context, deliveryID string, payload []byte) (core.JournalRecord, bool, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.failWith != nil {
		return core.JournalRecord{}, false, j.failWith
	}
	if _, ok := j.seen[deliveryID]; ok {
		return core.JournalRecord{DeliveryID: deliveryID, Status: core.JournalStatusPending}, true, nil
	}
	j.seen[deliveryID] = append([]byte(nil), payload...)
	return core.JournalRecord{DeliveryID: deliveryID, Status: core.JournalStatusPending}, false, nil
}

func (j *stubJournal) MarkProcessed(_ context.Context, deliveryID string) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.processed = append(j.processed, deliveryID)
	return nil
}

func (j *stubJournal) Get(_ context.Context, deliveryID string) (core.JournalRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	payload, ok := j.seen[deliveryID]
	if !ok {
		return core.JournalRecord{}, errors.New("not found")
	}
	return core.JournalRecord{DeliveryID: deliveryID, Payload: payload}, nil
}

type stubCommandBus struct {
	messages []any
	failWith error
}

func (b *stubCommandBus) Dispatch(_ context.Context, msg any) error {
	if b.failWith != nil {
		return b.failWith
	}
	b.messages = append(b.messages, msg)
	return nil
}

const textMessageBody = `{"entry":[{"id":"e1","changes":[{"field":"messages","value":{"metadata":{"phone_number_id":"111"},"messages":[{"id":"wamid.1","from":"15550001111","type":"text","text":{"body":"hello"}}]}}]}]}`

func newTestDispatcher() (*Dispatcher, *syncRunner) {
	runner := &syncRunner{}
	dispatcher := NewDispatcher(NewRegistry(), Classifier{})
	dispatcher.Runner = runner
	return dispatcher, runner
}

func TestAccept_AlwaysAcknowledges(t *testing.T) {
	dispatcher, runner := newTestDispatcher()

	var handled int
	if err := dispatcher.Registry.Register(updates.KindMessage, func(context.Context, updates.Update) error {
		handled++
		return nil
	}); err != nil {
		t.Fatalf("register handler: %v", err)
	}

	body, status := dispatcher.Accept(context.Background(), []byte(textMessageBody))
	if body != "ok" || status != http.StatusOK {
		t.Fatalf("expected ok/200, got %q/%d", body, status)
	}
	if handled != 1 {
		t.Fatalf("expected handler invoked once, got %d", handled)
	}
	if len(runner.submissions) != 1 || runner.submissions[0] != "webhook.dispatch" {
		t.Fatalf("expected dispatch submitted to runner, got %v", runner.submissions)
	}

	body, status = dispatcher.Accept(context.Background(), []byte("{broken"))
	if body != "ok" || status != http.StatusOK {
		t.Fatalf("expected malformed delivery still acknowledged, got %q/%d", body, status)
	}
}

func TestDispatch_RunsHandlersInRegistrationOrder(t *testing.T) {
	dispatcher, _ := newTestDispatcher()

	var order []string
	for _, name := range []string{"first", "second", "third"} {
		name := name
		err := dispatcher.Registry.Register(updates.KindMessage, func(context.Context, updates.Update) error {
			order = append(order, name)
			return nil
		}, WithName(name))
		if err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
	}

	dispatcher.Dispatch(context.Background(), []byte(textMessageBody))
	if strings.Join(order, ",") != "first,second,third" {
		t.Fatalf("expected registration order, got %v", order)
	}
}

func TestDispatch_HandlerErrorDoesNotStopSiblings(t *testing.T) {
	dispatcher, _ := newTestDispatcher()

	var order []string
	if err := dispatcher.Registry.Register(updates.KindMessage, func(context.Context, updates.Update) error {
		order = append(order, "failing")
		return errors.New("boom")
	}); err != nil {
		t.Fatalf("register failing handler: %v", err)
	}
	if err := dispatcher.Registry.Register(updates.KindMessage, func(context.Context, updates.Update) error {
		order = append(order, "panicking")
		panic("kaboom")
	}); err != nil {
		t.Fatalf("register panicking handler: %v", err)
	}
	if err := dispatcher.Registry.Register(updates.KindMessage, func(context.Context, updates.Update) error {
		order = append(order, "surviving")
		return nil
	}); err != nil {
		t.Fatalf("register surviving handler: %v", err)
	}

	dispatcher.Dispatch(context.Background(), []byte(textMessageBody))
	if strings.Join(order, ",") != "failing,panicking,surviving" {
		t.Fatalf("expected all handlers to run, got %v", order)
	}
}

func TestDispatch_StopDispatchScopedToCurrentLoop(t *testing.T) {
	dispatcher, _ := newTestDispatcher()

	var order []string
	if err := dispatcher.Registry.Register(updates.KindMessage, func(context.Context, updates.Update) error {
		order = append(order, "stopper")
		return ErrStopDispatch
	}); err != nil {
		t.Fatalf("register stopper: %v", err)
	}
	if err := dispatcher.Registry.Register(updates.KindMessage, func(context.Context, updates.Update) error {
		order = append(order, "skipped")
		return nil
	}); err != nil {
		t.Fatalf("register skipped handler: %v", err)
	}
	if err := dispatcher.Registry.RegisterRaw(func(context.Context, *core.Notification) error {
		order = append(order, "raw")
		return nil
	}); err != nil {
		t.Fatalf("register raw handler: %v", err)
	}

	dispatcher.Dispatch(context.Background(), []byte(textMessageBody))
	if strings.Join(order, ",") != "stopper,raw" {
		t.Fatalf("expected stop to end only the category loop, got %v", order)
	}
}

func TestDispatch_FilterSkipsHandler(t *testing.T) {
	dispatcher, _ := newTestDispatcher()

	var calls []string
	err := dispatcher.Registry.Register(updates.KindMessage, func(context.Context, updates.Update) error {
		calls = append(calls, "filtered")
		return nil
	}, WithFilter(func(update updates.Update) bool {
		message, ok := update.(updates.Message)
		return ok && message.Body == "goodbye"
	}))
	if err != nil {
		t.Fatalf("register filtered handler: %v", err)
	}
	err = dispatcher.Registry.Register(updates.KindMessage, func(context.Context, updates.Update) error {
		calls = append(calls, "open")
		return nil
	})
	if err != nil {
		t.Fatalf("register open handler: %v", err)
	}

	dispatcher.Dispatch(context.Background(), []byte(textMessageBody))
	if strings.Join(calls, ",") != "open" {
		t.Fatalf("expected only the unfiltered handler to run, got %v", calls)
	}
}

func TestDispatch_RawHandlersSeeMalformedDeliveries(t *testing.T) {
	dispatcher, _ := newTestDispatcher()

	var rawCalls int
	var categoryCalls int
	if err := dispatcher.Registry.Register(updates.KindMessage, func(context.Context, updates.Update) error {
		categoryCalls++
		return nil
	}); err != nil {
		t.Fatalf("register handler: %v", err)
	}
	if err := dispatcher.Registry.RegisterRaw(func(context.Context, *core.Notification) error {
		rawCalls++
		return nil
	}); err != nil {
		t.Fatalf("register raw handler: %v", err)
	}

	dispatcher.Dispatch(context.Background(), []byte(`{"entry":[]}`))
	if categoryCalls != 0 {
		t.Fatalf("expected no category handlers for malformed delivery")
	}
	if rawCalls != 1 {
		t.Fatalf("expected raw handler to see malformed delivery, got %d calls", rawCalls)
	}
}

func TestDispatch_JournalSuppressesDuplicates(t *testing.T) {
	dispatcher, _ := newTestDispatcher()
	journal := newStubJournal()
	dispatcher.Journal = journal

	var handled int
	if err := dispatcher.Registry.Register(updates.KindMessage, func(context.Context, updates.Update) error {
		handled++
		return nil
	}); err != nil {
		t.Fatalf("register handler: %v", err)
	}

	dispatcher.Dispatch(context.Background(), []byte(textMessageBody))
	dispatcher.Dispatch(context.Background(), []byte(textMessageBody))
	if handled != 1 {
		t.Fatalf("expected duplicate delivery suppressed, got %d handler calls", handled)
	}
	if len(journal.processed) != 1 || journal.processed[0] != "wamid.1" {
		t.Fatalf("expected one completion for wamid.1, got %v", journal.processed)
	}
}

func TestDispatch_JournalFailureDoesNotBlockDispatch(t *testing.T) {
	dispatcher, _ := newTestDispatcher()
	journal := newStubJournal()
	journal.failWith = errors.New("journal down")
	dispatcher.Journal = journal

	var handled int
	if err := dispatcher.Registry.Register(updates.KindMessage, func(context.Context, updates.Update) error {
		handled++
		return nil
	}); err != nil {
		t.Fatalf("register handler: %v", err)
	}

	dispatcher.Dispatch(context.Background(), []byte(textMessageBody))
	if handled != 1 {
		t.Fatalf("expected dispatch to continue past journal failure, got %d", handled)
	}
}

func TestDispatch_ForwardsUpdateToCommandBus(t *testing.T) {
	dispatcher, _ := newTestDispatcher()
	bus := &stubCommandBus{}
	dispatcher.CommandBus = bus

	if err := dispatcher.Registry.Register(updates.KindMessage, func(context.Context, updates.Update) error {
		return nil
	}); err != nil {
		t.Fatalf("register handler: %v", err)
	}

	dispatcher.Dispatch(context.Background(), []byte(textMessageBody))
	if len(bus.messages) != 1 {
		t.Fatalf("expected one forwarded message, got %d", len(bus.messages))
	}
	message, ok := bus.messages[0].(UpdateMessage)
	if !ok {
		t.Fatalf("expected UpdateMessage, got %T", bus.messages[0])
	}
	if message.Type() != "whatsapp.update.message" {
		t.Fatalf("unexpected message type %q", message.Type())
	}
	if message.DispatchID == "" {
		t.Fatalf("expected dispatch id assigned")
	}
}

func TestDispatch_ConstructionFailureSkipsCategoryHandlers(t *testing.T) {
	dispatcher, _ := newTestDispatcher()
	dispatcher.Constructors = map[updates.Kind]updates.Constructor{
		updates.KindMessage: func(*core.Notification) (updates.Update, error) {
			return nil, errors.New("construction broke")
		},
	}

	var categoryCalls, rawCalls int
	if err := dispatcher.Registry.Register(updates.KindMessage, func(context.Context, updates.Update) error {
		categoryCalls++
		return nil
	}); err != nil {
		t.Fatalf("register handler: %v", err)
	}
	if err := dispatcher.Registry.RegisterRaw(func(context.Context, *core.Notification) error {
		rawCalls++
		return nil
	}); err != nil {
		t.Fatalf("register raw handler: %v", err)
	}

	dispatcher.Dispatch(context.Background(), []byte(textMessageBody))
	if categoryCalls != 0 {
		t.Fatalf("expected category handlers skipped on construction failure")
	}
	if rawCalls != 1 {
		t.Fatalf("expected raw handlers to still run, got %d", rawCalls)
	}
}
