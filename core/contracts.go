package core

import (
	"context"
	"net/url"
	"time"

	glog "github.com/goliatone/go-logger/glog"
)

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// HTTPHandlerFunc is the shape the hosting HTTP layer invokes for a bound
// route: raw body (empty on GET), raw query parameters, and the response
// body plus status code to write back.
type HTTPHandlerFunc func(body []byte, query url.Values) (string, int)

// ServerMux is the boundary to the hosting HTTP server. The module never
// listens on its own; it only asks the host to bind method+path pairs.
type ServerMux interface {
	HandleFunc(method string, path string, handler HTTPHandlerFunc) error
}

// CallbackRegistration carries the outbound "set callback URL" call made
// once by the registration task.
type CallbackRegistration struct {
	AppID       string
	AccessToken string
	CallbackURL string
	VerifyToken string
	Fields      []string
}

// APIClient is the outbound Graph API boundary. Implementations perform
// authenticated calls and report success or failure; the module never
// constructs HTTP requests itself.
type APIClient interface {
	GetAppAccessToken(ctx context.Context, appID string, appSecret string) (string, error)
	SetCallbackURL(ctx context.Context, registration CallbackRegistration) (bool, error)
}

// TaskRunner runs fire-and-forget units of work. No result is observed by
// the caller; Submit only fails when the task cannot be accepted at all.
type TaskRunner interface {
	Submit(ctx context.Context, name string, task func(context.Context)) error
}

// CommandDispatcher forwards constructed updates onto an application
// command bus. Optional; wired through adapters/gocommand.
type CommandDispatcher interface {
	Dispatch(ctx context.Context, msg any) error
}

type JobExecutionMessage struct {
	JobID          string
	ScriptPath     string
	Parameters     map[string]any
	IdempotencyKey string
	DedupPolicy    string
}

type JobEnqueuer interface {
	Enqueue(ctx context.Context, msg *JobExecutionMessage) error
}

const (
	JournalStatusPending   = "pending"
	JournalStatusProcessed = "processed"
)

type JournalRecord struct {
	ID         string
	DeliveryID string
	Status     string
	Attempts   int
	Payload    []byte
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NotificationJournal records each webhook delivery for dedupe and audit.
// Reserve returns duplicate=true when the delivery id was already seen.
// Optional collaborator; a nil journal disables journaling.
type NotificationJournal interface {
	Reserve(ctx context.Context, deliveryID string, payload []byte) (JournalRecord, bool, error)
	MarkProcessed(ctx context.Context, deliveryID string) error
	Get(ctx context.Context, deliveryID string) (JournalRecord, error)
}
