// Package whatsapp receives WhatsApp Cloud API webhook traffic, classifies
// each notification into a handler category and dispatches it to registered
// handlers, and serves the encrypted flow data-exchange endpoint.
//
// The module never listens on its own: the host binds routes through the
// ServerMux boundary and the module answers with body/status pairs. All
// handler work runs detached from the HTTP acknowledgement.
package whatsapp
