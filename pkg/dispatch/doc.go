// Package dispatch routes closed flow records to declared handlers.
//
// Handlers are grouped in components. A component may be scoped to flow name
// prefixes, and each handler picks a lifecycle point, a flow name (or the
// blank wildcard), an outcome and, for FAILURE handlers, a declared error type.
// NewRegistry rejects ambiguous declarations up front; the Bus applies the
// rules on every closed flow and never lets a handler failure escape.
package dispatch
