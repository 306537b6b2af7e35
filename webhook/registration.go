package webhook

import (
	"context"
	"net/http"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-whatsapp/core"
)

// registrationGrace is subtracted from the verify timeout so the callback
// registration call lands after the platform finished probing the endpoint
// but before the verify window closes.
const registrationGrace = 6 * time.Second

// RegistrationJobID identifies the callback registration when it is
// enqueued onto a job queue instead of the in-process runner.
const RegistrationJobID = "whatsapp.callback.register"

// DefaultSubscriptionFields are the webhook fields subscribed to when the
// configuration does not name its own set: every field the classifier can
// route. Keep in sync with the classifier's field table.
var DefaultSubscriptionFields = []string{
	core.FieldMessages,
	core.FieldTemplateStatusUpdate,
	core.FieldAccountAlerts,
	core.FieldAccountUpdate,
	core.FieldPhoneNumberNameUpdate,
	core.FieldPhoneNumberQualityDrop,
}

// CallbackRegistrar points the application's webhook subscription at this
// deployment. It runs once, off the setup path, after waiting out the
// platform's endpoint verification probe.
type CallbackRegistrar struct {
	Client        core.APIClient
	AppID         string
	AppSecret     string
	VerifyToken   string
	CallbackURL   string
	Endpoint      string
	Fields        []string
	VerifyTimeout time.Duration
	Logger        core.Logger
}

// Start schedules the registration onto the runner. Setup continues
// immediately; registration failures are logged, never fatal.
func (r CallbackRegistrar) Start(ctx context.Context, runner core.TaskRunner) error {
	if runner == nil {
		runner = core.GoRunner{Logger: r.Logger}
	}
	return runner.Submit(ctx, RegistrationJobID, func(taskCtx context.Context) {
		r.Run(taskCtx)
	})
}

// Run waits out the verification window, then exchanges the app credentials
// for an app access token and registers the callback URL.
func (r CallbackRegistrar) Run(ctx context.Context) {
	if !r.wait(ctx) {
		return
	}
	if err := r.register(ctx); err != nil {
		core.LogWith(ctx, r.Logger, "error", "callback registration failed", map[string]any{
			"callback_url": r.callbackURL(),
			"error":        err.Error(),
		})
		return
	}
	core.LogWith(ctx, r.Logger, "info", "callback URL registered", map[string]any{
		"callback_url": r.callbackURL(),
	})
}

func (r CallbackRegistrar) wait(ctx context.Context) bool {
	delay := r.VerifyTimeout - registrationGrace
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

func (r CallbackRegistrar) register(ctx context.Context) error {
	if r.Client == nil {
		return webhookError(
			"webhook: callback registration requires an API client",
			goerrors.CategoryValidation,
			http.StatusInternalServerError,
			core.ErrorCallbackRegistration,
			nil,
		)
	}
	token, err := r.Client.GetAppAccessToken(ctx, r.AppID, r.AppSecret)
	if err != nil {
		return core.WrapError(
			err,
			goerrors.CategoryExternal,
			"webhook: get app access token",
			core.ErrorCallbackRegistration,
			map[string]any{"app_id": r.AppID},
		)
	}

	registration := core.CallbackRegistration{
		AppID:       r.AppID,
		AccessToken: token,
		CallbackURL: r.callbackURL(),
		VerifyToken: r.VerifyToken,
		Fields:      r.fields(),
	}
	success, err := r.Client.SetCallbackURL(ctx, registration)
	if err != nil {
		return core.WrapError(
			err,
			goerrors.CategoryExternal,
			"webhook: set callback URL",
			core.ErrorCallbackRegistration,
			map[string]any{"callback_url": registration.CallbackURL},
		)
	}
	if !success {
		return webhookError(
			"webhook: platform rejected the callback URL",
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			core.ErrorCallbackRegistration,
			map[string]any{"callback_url": registration.CallbackURL},
		)
	}
	return nil
}

// Enqueue submits the registration as a job execution message instead of
// running it in process. The job worker is expected to call Run.
func (r CallbackRegistrar) Enqueue(ctx context.Context, enqueuer core.JobEnqueuer) error {
	if enqueuer == nil {
		return webhookBadInput("webhook: job enqueuer is nil", nil)
	}
	return enqueuer.Enqueue(ctx, &core.JobExecutionMessage{
		JobID:          RegistrationJobID,
		IdempotencyKey: RegistrationJobID + ":" + r.callbackURL(),
		Parameters: map[string]any{
			"app_id":       r.AppID,
			"callback_url": r.callbackURL(),
			"fields":       r.fields(),
		},
	})
}

// callbackURL joins the public base URL with the bound endpoint path,
// normalizing the slash between them.
func (r CallbackRegistrar) callbackURL() string {
	base := strings.TrimRight(strings.TrimSpace(r.CallbackURL), "/")
	endpoint := strings.TrimLeft(strings.TrimSpace(r.Endpoint), "/")
	if endpoint == "" {
		return base
	}
	return base + "/" + endpoint
}

func (r CallbackRegistrar) fields() []string {
	if len(r.Fields) > 0 {
		return append([]string(nil), r.Fields...)
	}
	return append([]string(nil), DefaultSubscriptionFields...)
}
