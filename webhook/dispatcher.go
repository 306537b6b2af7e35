package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"

	"github.com/goliatone/go-whatsapp/core"
	"github.com/goliatone/go-whatsapp/updates"
)

// ErrStopDispatch is the intentional signal a handler returns to abort the
// handlers registered after it in the current loop. It is not an error
// condition and never reaches the raw-handler loop from a category loop.
var ErrStopDispatch = errors.New("webhook: stop dispatch")

const acceptedBody = "ok"

// UpdateMessage wraps a constructed update for forwarding onto a command
// bus. Type satisfies the go-command message contract.
type UpdateMessage struct {
	DispatchID string
	Update     updates.Update
}

func (m UpdateMessage) Type() string {
	kind := updates.KindNone
	if m.Update != nil {
		kind = m.Update.UpdateKind()
	}
	return "whatsapp.update." + string(kind)
}

// Dispatcher runs the classify -> construct -> handle pipeline for each
// inbound delivery. Accept acknowledges the HTTP caller immediately and
// detaches the pipeline onto the Runner; handler outcomes are never
// surfaced to the platform.
type Dispatcher struct {
	Registry   *Registry
	Classifier Classifier
	// Constructors overrides the per-category update constructors.
	// Categories absent from the map use the updates package defaults.
	Constructors map[updates.Kind]updates.Constructor
	Runner       core.TaskRunner
	Journal      core.NotificationJournal
	CommandBus   core.CommandDispatcher
	Logger       core.Logger
	Endpoint     string
}

func NewDispatcher(registry *Registry, classifier Classifier) *Dispatcher {
	return &Dispatcher{
		Registry:   registry,
		Classifier: classifier,
		Runner:     core.GoRunner{},
	}
}

// Accept acknowledges a webhook delivery and schedules its dispatch. The
// response never depends on classification or handler outcome.
func (d *Dispatcher) Accept(ctx context.Context, body []byte) (string, int) {
	if d == nil {
		return acceptedBody, http.StatusOK
	}
	payload := append([]byte(nil), body...)
	runner := d.Runner
	if runner == nil {
		runner = core.GoRunner{Logger: d.Logger}
	}
	if err := runner.Submit(ctx, "webhook.dispatch", func(taskCtx context.Context) {
		d.Dispatch(taskCtx, payload)
	}); err != nil {
		core.LogWith(ctx, d.Logger, "error", "dispatch task rejected", map[string]any{
			"endpoint": d.Endpoint,
			"error":    err.Error(),
		})
	}
	return acceptedBody, http.StatusOK
}

// Dispatch runs the pipeline synchronously. Errors are logged, never
// returned: this path must not raise into the HTTP layer.
func (d *Dispatcher) Dispatch(ctx context.Context, body []byte) {
	if d == nil || d.Registry == nil {
		return
	}
	dispatchID := uuid.NewString()
	fields := map[string]any{
		"dispatch_id": dispatchID,
		"endpoint":    d.Endpoint,
	}

	notification, err := core.ParseNotification(body)
	if err != nil {
		fields["error"] = err.Error()
		core.LogWith(ctx, d.Logger, "error", "received an invalid notification", fields)
		return
	}

	if d.Journal != nil {
		if done := d.reserveDelivery(ctx, notification, fields); done {
			return
		}
	}

	kind, err := d.Classifier.Classify(ctx, notification)
	if err != nil {
		fields["error"] = err.Error()
		core.LogWith(ctx, d.Logger, "error", "received a malformed notification", fields)
		// Raw handlers still see malformed deliveries.
		d.runRawHandlers(ctx, notification, fields)
		return
	}

	if kind != updates.KindNone {
		d.runCategoryHandlers(ctx, kind, notification, dispatchID, fields)
	} else {
		core.LogWith(ctx, d.Logger, "debug", "no handler category for notification", fields)
	}

	d.runRawHandlers(ctx, notification, fields)
	d.completeDelivery(ctx, notification, fields)
}

func (d *Dispatcher) runCategoryHandlers(
	ctx context.Context,
	kind updates.Kind,
	notification *core.Notification,
	dispatchID string,
	fields map[string]any,
) {
	constructor := d.constructorFor(kind)
	if constructor == nil {
		core.LogWith(ctx, d.Logger, "error", "no constructor for category", map[string]any{
			"dispatch_id": dispatchID,
			"kind":        string(kind),
		})
		return
	}
	update, err := constructor(notification)
	if err != nil {
		failure := core.WrapError(
			err,
			goerrors.CategoryBadInput,
			fmt.Sprintf("webhook: construct %s update", kind),
			core.ErrorUpdateConstruction,
			map[string]any{"kind": string(kind)},
		)
		core.LogWith(ctx, d.Logger, "error", "failed to construct update", map[string]any{
			"dispatch_id": dispatchID,
			"kind":        string(kind),
			"error":       failure.Error(),
		})
		return
	}

	for _, registration := range d.Registry.Lookup(kind) {
		if registration.Filter != nil && !registration.Filter(update) {
			continue
		}
		err := d.invoke(ctx, registration.Name, func(ctx context.Context) error {
			return registration.Handler(ctx, update)
		})
		if errors.Is(err, ErrStopDispatch) {
			break
		}
		if err != nil {
			mapped := core.ErrorMapper(err)
			core.LogWith(ctx, d.Logger, "error", "handler failed while handling an update", map[string]any{
				"dispatch_id": dispatchID,
				"kind":        string(kind),
				"handler":     registration.Name,
				"error":       mapped.Error(),
				"error_code":  mapped.TextCode,
			})
		}
	}

	if d.CommandBus != nil {
		message := UpdateMessage{DispatchID: dispatchID, Update: update}
		if err := d.CommandBus.Dispatch(ctx, message); err != nil {
			core.LogWith(ctx, d.Logger, "error", "command bus rejected update", map[string]any{
				"dispatch_id": dispatchID,
				"kind":        string(kind),
				"error":       err.Error(),
			})
		}
	}
}

func (d *Dispatcher) runRawHandlers(ctx context.Context, notification *core.Notification, fields map[string]any) {
	for _, registration := range d.Registry.RawHandlers() {
		err := d.invoke(ctx, registration.Name, func(ctx context.Context) error {
			return registration.Handler(ctx, notification)
		})
		if errors.Is(err, ErrStopDispatch) {
			break
		}
		if err != nil {
			mapped := core.ErrorMapper(err)
			logFields := core.CloneFields(fields)
			logFields["handler"] = registration.Name
			logFields["error"] = mapped.Error()
			logFields["error_code"] = mapped.TextCode
			core.LogWith(ctx, d.Logger, "error", "raw handler failed while handling a notification", logFields)
		}
	}
}

// invoke isolates a single handler: a panic is converted into an error so
// one broken handler cannot prevent its siblings from running.
func (d *Dispatcher) invoke(ctx context.Context, name string, fn func(context.Context) error) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = webhookError(
				fmt.Sprintf("webhook: handler %s panicked: %v", name, recovered),
				goerrors.CategoryOperation,
				http.StatusInternalServerError,
				core.ErrorHandlerFailed,
				map[string]any{"handler": name},
			)
		}
	}()
	return fn(ctx)
}

func (d *Dispatcher) constructorFor(kind updates.Kind) updates.Constructor {
	if d.Constructors != nil {
		if constructor, ok := d.Constructors[kind]; ok {
			return constructor
		}
	}
	constructor, _ := updates.ConstructorFor(kind)
	return constructor
}

func (d *Dispatcher) reserveDelivery(ctx context.Context, notification *core.Notification, fields map[string]any) bool {
	deliveryID := notification.DeliveryID()
	if strings.TrimSpace(deliveryID) == "" {
		return false
	}
	_, duplicate, err := d.Journal.Reserve(ctx, deliveryID, notification.Raw())
	if err != nil {
		logFields := core.CloneFields(fields)
		logFields["delivery_id"] = deliveryID
		logFields["error"] = err.Error()
		core.LogWith(ctx, d.Logger, "error", "journal reserve failed, dispatching anyway", logFields)
		return false
	}
	if duplicate {
		logFields := core.CloneFields(fields)
		logFields["delivery_id"] = deliveryID
		logFields["deduped"] = true
		core.LogWith(ctx, d.Logger, "info", "duplicate delivery suppressed", logFields)
		return true
	}
	return false
}

func (d *Dispatcher) completeDelivery(ctx context.Context, notification *core.Notification, fields map[string]any) {
	if d.Journal == nil {
		return
	}
	deliveryID := notification.DeliveryID()
	if strings.TrimSpace(deliveryID) == "" {
		return
	}
	if err := d.Journal.MarkProcessed(ctx, deliveryID); err != nil {
		logFields := core.CloneFields(fields)
		logFields["delivery_id"] = deliveryID
		logFields["error"] = err.Error()
		core.LogWith(ctx, d.Logger, "error", "journal completion failed", logFields)
	}
}
