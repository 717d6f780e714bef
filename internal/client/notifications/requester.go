// Package notifications abstracts the platform push-permission prompt. The
// onboarding flow only decides when to ask; how the question is presented
// belongs to the host environment.
package notifications

import "context"

// Requester asks for push-notification permission. The answer arrives
// asynchronously via done, which may be nil when the caller does not care
// about the outcome. Implementations must call done at most once.
type Requester interface {
	Request(ctx context.Context, done func(granted bool))
}

// RequesterFunc adapts a function to the Requester interface.
type RequesterFunc func(ctx context.Context, done func(granted bool))

func (f RequesterFunc) Request(ctx context.Context, done func(granted bool)) {
	f(ctx, done)
}
