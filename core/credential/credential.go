// Copyright 2025 Greenbone AG
// Licensed under the AGPLv3, see LICENCE file for details.

// Package credential carries the identity a request is executed on behalf
// of. The identity travels on the context, so every layer below the
// protocol front end sees the same caller without consulting shared state.
package credential

import (
	"context"

	"github.com/juju/errors"
)

// Caller identifies the user behind a request.
//
// The zero value is the internal caller: work the daemon starts on its own
// behalf, such as bootstrap seeding or feed synchronisation. The internal
// caller bypasses permission checks entirely.
type Caller struct {
	// UUID is the user's unique identifier. Empty for the internal caller.
	UUID string

	// Name is the user's login name. Informational; authorisation is
	// always decided on the UUID.
	Name string
}

// Internal reports whether this is the daemon's own identity.
func (c Caller) Internal() bool {
	return c.UUID == ""
}

// Validate returns an error satisfying errors.NotValid if the caller names
// a user but is missing its UUID.
func (c Caller) Validate() error {
	if c.UUID == "" && c.Name != "" {
		return errors.NotValidf("caller %q without UUID", c.Name)
	}
	return nil
}

type contextKey struct{}

// WithCaller returns a context carrying the given caller identity.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// CallerFromContext returns the caller identity carried by the context.
// A context without one yields the internal caller.
func CallerFromContext(ctx context.Context) Caller {
	if c, ok := ctx.Value(contextKey{}).(Caller); ok {
		return c
	}
	return Caller{}
}
