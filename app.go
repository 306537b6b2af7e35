package whatsapp

import (
	"context"
	"strings"

	"github.com/goliatone/go-whatsapp/adapters/gologger"
	"github.com/goliatone/go-whatsapp/core"
	"github.com/goliatone/go-whatsapp/flows"
	"github.com/goliatone/go-whatsapp/updates"
	"github.com/goliatone/go-whatsapp/webhook"
)

// App wires the webhook pipeline and the flow endpoint onto a host mux.
// Build is the only constructor; configuration problems there are fatal,
// runtime problems are logged and absorbed.
type App struct {
	config         core.Config
	logger         core.Logger
	loggerProvider core.LoggerProvider

	registry   *webhook.Registry
	dispatcher *webhook.Dispatcher
	handshake  webhook.Handshake
	signature  *webhook.SignatureVerifier
	flow       *flows.Endpoint
	registrar  *webhook.CallbackRegistrar

	runner         core.TaskRunner
	apiClient      core.APIClient
	journal        core.NotificationJournal
	commandBus     core.CommandDispatcher
	jobEnqueuer    core.JobEnqueuer
	configProvider core.ConfigProvider
	flowHandler    flows.Handler
	flowDecryptor  flows.RequestDecryptor
	flowEncryptor  flows.ResponseEncryptor
}

// Build resolves configuration, binds the webhook routes and the flow
// endpoint onto the mux, and kicks off callback registration when a
// callback URL is configured.
func Build(ctx context.Context, mux core.ServerMux, cfg Config, opts ...Option) (*App, error) {
	app := &App{config: cfg}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(app)
	}
	_, app.logger = gologger.Resolve("whatsapp", app.loggerProvider, app.logger)

	if mux == nil {
		return nil, core.ConfigurationError("whatsapp: server mux is required", nil)
	}
	resolved, err := app.resolveConfig(ctx)
	if err != nil {
		return nil, err
	}
	app.config = resolved

	if strings.TrimSpace(resolved.VerifyToken) == "" {
		return nil, core.ConfigurationError("whatsapp: verify_token is required", nil)
	}
	if resolved.VerifySignature && strings.TrimSpace(resolved.AppSecret) == "" {
		return nil, core.ConfigurationError("whatsapp: verifying signatures requires app_secret", nil)
	}

	if app.runner == nil {
		app.runner = core.GoRunner{Logger: app.logger}
	}

	app.registry = webhook.NewRegistry()
	app.handshake = webhook.Handshake{
		VerifyToken: resolved.VerifyToken,
		Logger:      app.logger,
		Endpoint:    resolved.WebhookEndpoint,
	}
	app.dispatcher = &webhook.Dispatcher{
		Registry: app.registry,
		Classifier: webhook.Classifier{
			PhoneNumberID: resolved.PhoneNumberID,
			FilterUpdates: resolved.FilterUpdates,
			Logger:        app.logger,
		},
		Runner:     app.runner,
		Journal:    app.journal,
		CommandBus: app.commandBus,
		Logger:     app.logger,
		Endpoint:   resolved.WebhookEndpoint,
	}
	if resolved.VerifySignature {
		app.signature = &webhook.SignatureVerifier{Secret: resolved.AppSecret}
	}

	if err := webhook.BindRoutes(mux, resolved.WebhookEndpoint, app.handshake, app.dispatcher); err != nil {
		return nil, err
	}
	if err := app.bindFlowEndpoint(mux, resolved); err != nil {
		return nil, err
	}
	if err := app.startRegistration(ctx, resolved); err != nil {
		return nil, err
	}
	return app, nil
}

func (a *App) resolveConfig(ctx context.Context) (core.Config, error) {
	if a.configProvider == nil {
		if err := a.config.Validate(); err != nil {
			return core.Config{}, err
		}
		return a.config, nil
	}
	loaded, err := a.configProvider.Load(ctx, core.DefaultConfig())
	if err != nil {
		return core.Config{}, err
	}
	return core.GoOptionsResolver{}.Resolve(core.DefaultConfig(), loaded, a.config)
}

func (a *App) bindFlowEndpoint(mux core.ServerMux, cfg core.Config) error {
	endpoint := strings.TrimSpace(cfg.Flow.Endpoint)
	if endpoint == "" {
		return nil
	}
	flow := &flows.Endpoint{
		Handler:           a.flowHandler,
		Decryptor:         a.flowDecryptor,
		Encryptor:         a.flowEncryptor,
		HandleHealthCheck: cfg.Flow.HandleHealthCheck,
		AcknowledgeErrors: cfg.Flow.AcknowledgeErrors,
		Logger:            a.logger,
		Endpoint:          endpoint,
	}
	if a.flowDecryptor == nil {
		if strings.TrimSpace(cfg.Flow.PrivateKey) == "" {
			return core.ConfigurationError("whatsapp: flow endpoint requires a private key", map[string]any{
				"endpoint": endpoint,
			})
		}
		key, err := flows.ParsePrivateKey([]byte(cfg.Flow.PrivateKey), cfg.Flow.PrivateKeyPassword)
		if err != nil {
			return core.ConfigurationError("whatsapp: flow private key is invalid", map[string]any{
				"endpoint": endpoint,
				"error":    err.Error(),
			})
		}
		flow.PrivateKey = key
	}
	if err := flow.Bind(mux); err != nil {
		return core.ConfigurationError("whatsapp: bind flow endpoint", map[string]any{
			"endpoint": endpoint,
			"error":    err.Error(),
		})
	}
	a.flow = flow
	return nil
}

func (a *App) startRegistration(ctx context.Context, cfg core.Config) error {
	if strings.TrimSpace(cfg.CallbackURL) == "" {
		return nil
	}
	if a.apiClient == nil && a.jobEnqueuer == nil {
		return core.ConfigurationError(
			"whatsapp: registering a callback URL requires an API client",
			map[string]any{"callback_url": cfg.CallbackURL},
		)
	}
	registrar := &webhook.CallbackRegistrar{
		Client:        a.apiClient,
		AppID:         cfg.AppID,
		AppSecret:     cfg.AppSecret,
		VerifyToken:   cfg.VerifyToken,
		CallbackURL:   cfg.CallbackURL,
		Endpoint:      cfg.WebhookEndpoint,
		Fields:        cfg.Fields,
		VerifyTimeout: cfg.VerifyTimeout,
		Logger:        a.logger,
	}
	a.registrar = registrar
	if a.jobEnqueuer != nil {
		return registrar.Enqueue(ctx, a.jobEnqueuer)
	}
	return registrar.Start(ctx, a.runner)
}

// On registers a handler for a handler category. Handlers run in
// registration order on a detached goroutine.
func (a *App) On(kind updates.Kind, handler webhook.Handler, opts ...webhook.RegisterOption) error {
	return a.registry.Register(kind, handler, opts...)
}

// OnRaw registers a handler that sees every delivery, including those no
// category matched.
func (a *App) OnRaw(handler webhook.RawHandler, opts ...webhook.RegisterOption) error {
	return a.registry.RegisterRaw(handler, opts...)
}

func (a *App) OnMessage(handler func(ctx context.Context, message updates.Message) error, opts ...webhook.RegisterOption) error {
	return a.On(updates.KindMessage, func(ctx context.Context, update updates.Update) error {
		message, ok := update.(updates.Message)
		if !ok {
			return nil
		}
		return handler(ctx, message)
	}, opts...)
}

func (a *App) OnCallbackButton(handler func(ctx context.Context, button updates.CallbackButton) error, opts ...webhook.RegisterOption) error {
	return a.On(updates.KindCallbackButton, func(ctx context.Context, update updates.Update) error {
		button, ok := update.(updates.CallbackButton)
		if !ok {
			return nil
		}
		return handler(ctx, button)
	}, opts...)
}

func (a *App) OnCallbackSelection(handler func(ctx context.Context, selection updates.CallbackSelection) error, opts ...webhook.RegisterOption) error {
	return a.On(updates.KindCallbackSelection, func(ctx context.Context, update updates.Update) error {
		selection, ok := update.(updates.CallbackSelection)
		if !ok {
			return nil
		}
		return handler(ctx, selection)
	}, opts...)
}

func (a *App) OnFlowCompletion(handler func(ctx context.Context, completion updates.FlowCompletion) error, opts ...webhook.RegisterOption) error {
	return a.On(updates.KindFlowCompletion, func(ctx context.Context, update updates.Update) error {
		completion, ok := update.(updates.FlowCompletion)
		if !ok {
			return nil
		}
		return handler(ctx, completion)
	}, opts...)
}

func (a *App) OnMessageStatus(handler func(ctx context.Context, status updates.MessageStatus) error, opts ...webhook.RegisterOption) error {
	return a.On(updates.KindMessageStatus, func(ctx context.Context, update updates.Update) error {
		status, ok := update.(updates.MessageStatus)
		if !ok {
			return nil
		}
		return handler(ctx, status)
	}, opts...)
}

func (a *App) OnChatOpened(handler func(ctx context.Context, opened updates.ChatOpened) error, opts ...webhook.RegisterOption) error {
	return a.On(updates.KindChatOpened, func(ctx context.Context, update updates.Update) error {
		opened, ok := update.(updates.ChatOpened)
		if !ok {
			return nil
		}
		return handler(ctx, opened)
	}, opts...)
}

func (a *App) OnTemplateStatus(handler func(ctx context.Context, status updates.TemplateStatus) error, opts ...webhook.RegisterOption) error {
	return a.On(updates.KindTemplateStatus, func(ctx context.Context, update updates.Update) error {
		status, ok := update.(updates.TemplateStatus)
		if !ok {
			return nil
		}
		return handler(ctx, status)
	}, opts...)
}

func (a *App) OnAccountAlert(handler func(ctx context.Context, alert updates.AccountAlert) error, opts ...webhook.RegisterOption) error {
	return a.On(updates.KindAccountAlert, func(ctx context.Context, update updates.Update) error {
		alert, ok := update.(updates.AccountAlert)
		if !ok {
			return nil
		}
		return handler(ctx, alert)
	}, opts...)
}

// VerifySignature checks the X-Hub-Signature-256 header against the body.
// It returns nil when signature verification is not enabled.
func (a *App) VerifySignature(body []byte, header string) error {
	if a == nil || a.signature == nil {
		return nil
	}
	return a.signature.Verify(body, header)
}

func (a *App) Config() core.Config {
	if a == nil {
		return core.Config{}
	}
	return a.config
}

func (a *App) Registry() *webhook.Registry {
	if a == nil {
		return nil
	}
	return a.registry
}

func (a *App) Dispatcher() *webhook.Dispatcher {
	if a == nil {
		return nil
	}
	return a.dispatcher
}

func (a *App) FlowEndpoint() *flows.Endpoint {
	if a == nil {
		return nil
	}
	return a.flow
}

func (a *App) Logger() core.Logger {
	if a == nil {
		return nil
	}
	return a.logger
}
