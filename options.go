package whatsapp

import (
	"github.com/goliatone/go-whatsapp/core"
	"github.com/goliatone/go-whatsapp/flows"
)

type Option func(*App)

func WithLogger(logger core.Logger) Option {
	return func(app *App) {
		app.logger = logger
	}
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(app *App) {
		app.loggerProvider = provider
	}
}

func WithTaskRunner(runner core.TaskRunner) Option {
	return func(app *App) {
		app.runner = runner
	}
}

// WithAPIClient supplies the Graph API boundary used by the callback
// registration task. Required whenever callback_url is configured.
func WithAPIClient(client core.APIClient) Option {
	return func(app *App) {
		app.apiClient = client
	}
}

// WithJournal enables delivery journaling: duplicate deliveries are
// suppressed and every payload is retained for audit.
func WithJournal(journal core.NotificationJournal) Option {
	return func(app *App) {
		app.journal = journal
	}
}

// WithCommandBus forwards every constructed update onto a command bus after
// the category handlers ran.
func WithCommandBus(bus core.CommandDispatcher) Option {
	return func(app *App) {
		app.commandBus = bus
	}
}

// WithJobEnqueuer routes the callback registration through a job queue
// instead of the in-process runner.
func WithJobEnqueuer(enqueuer core.JobEnqueuer) Option {
	return func(app *App) {
		app.jobEnqueuer = enqueuer
	}
}

// WithConfigProvider loads configuration through the cfgx pipeline; the
// config passed to Build then acts as the runtime overlay.
func WithConfigProvider(provider core.ConfigProvider) Option {
	return func(app *App) {
		app.configProvider = provider
	}
}

// WithFlowHandler registers the data exchange handler for the flow
// endpoint.
func WithFlowHandler(handler flows.Handler) Option {
	return func(app *App) {
		app.flowHandler = handler
	}
}

// WithFlowDecryptor and WithFlowEncryptor override the default flow crypto,
// for deployments keeping key material in an HSM.
func WithFlowDecryptor(decryptor flows.RequestDecryptor) Option {
	return func(app *App) {
		app.flowDecryptor = decryptor
	}
}

func WithFlowEncryptor(encryptor flows.ResponseEncryptor) Option {
	return func(app *App) {
		app.flowEncryptor = encryptor
	}
}
