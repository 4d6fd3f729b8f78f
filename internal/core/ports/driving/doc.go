// Package driving provides interfaces for use-case entry points
// (primary/inbound ports) consumed by the HTTP API and CLI adapters.
package driving
