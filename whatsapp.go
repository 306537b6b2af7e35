package whatsapp

import (
	"github.com/goliatone/go-whatsapp/core"
	"github.com/goliatone/go-whatsapp/flows"
	"github.com/goliatone/go-whatsapp/updates"
	"github.com/goliatone/go-whatsapp/webhook"
)

type Config = core.Config

type FlowConfig = core.FlowConfig

type Logger = core.Logger

type LoggerProvider = core.LoggerProvider

type ServerMux = core.ServerMux

type HTTPHandlerFunc = core.HTTPHandlerFunc

type APIClient = core.APIClient

type TaskRunner = core.TaskRunner

type NotificationJournal = core.NotificationJournal

type Notification = core.Notification

type Kind = updates.Kind

type Update = updates.Update

type Handler = webhook.Handler
type RawHandler = webhook.RawHandler
type RegisterOption = webhook.RegisterOption

type FlowRequest = flows.Request
type FlowResponse = flows.Response
type FlowHandler = flows.Handler

var (
	WithName   = webhook.WithName
	WithFilter = webhook.WithFilter
)

// ErrStopDispatch aborts the handlers registered after the returning one in
// the current dispatch loop.
var ErrStopDispatch = webhook.ErrStopDispatch

func DefaultConfig() Config {
	return core.DefaultConfig()
}
