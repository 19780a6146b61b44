package transport

import (
	"context"
	"errors"

	"pushreg-backend/internal/model"
)

// Error kinds surfaced by transport adapters. The reconciler classifies
// on these with errors.Is and converts them to user-facing outcomes.
var (
	// ErrNoSupport means the platform cannot do push at all. Never retried.
	ErrNoSupport = errors.New("push not supported on this platform")
	// ErrPermissionDenied means the user or OS refused permission. Not
	// retried automatically.
	ErrPermissionDenied = errors.New("push permission denied")
	// ErrTransport is any transient lower-level failure: network, service
	// worker not ready, OS registration error. Safe to retry on the next
	// explicit user action or scheduled refresh.
	ErrTransport = errors.New("push transport failure")
	// ErrUndetermined means the platform cannot report its subscription
	// state right now. Distinct from a nil subscription, which means
	// "definitely none".
	ErrUndetermined = errors.New("subscription state undetermined")
)

// Subscription is the serialized web push subscription payload. The
// endpoint is the stable identity of a web registration: it survives
// delivery-token rotations.
type Subscription struct {
	Endpoint string `json:"endpoint"`
	P256DH   string `json:"p256dh"`
	Auth     string `json:"auth"`
}

// Credentials is the result of establishing or refreshing a device-local
// subscription.
type Credentials struct {
	// DeliveryToken routes notifications to this subscription. It may
	// differ from the previous token after a refresh.
	DeliveryToken string
	// Subscription is the underlying web push payload. Nil for the native
	// transport, whose identity is the device id instead.
	Subscription *Subscription
}

// TokenSource obtains and revokes delivery tokens from the push-delivery
// backend. Token is idempotent: calling it again for the same
// subscription returns the same or a rotated token, never an error state.
type TokenSource interface {
	Token(ctx context.Context, sub *Subscription) (string, error)
	Revoke(ctx context.Context, token string) (bool, error)
}

// Transport is a device-local push subscription driver, polymorphic over
// the web and native variants.
type Transport interface {
	Kind() model.TransportKind

	// CreateOrRefresh establishes the local subscription (requesting
	// platform permission if needed) and obtains a delivery token. Fails
	// with ErrNoSupport, ErrPermissionDenied or ErrTransport.
	CreateOrRefresh(ctx context.Context) (Credentials, error)

	// CurrentSubscription reports the local subscription, nil if there
	// definitely is none, or ErrUndetermined if the platform cannot tell.
	CurrentSubscription(ctx context.Context) (*Subscription, error)

	// Teardown is a best-effort local unsubscribe. It reports whether the
	// platform-level state was actually cleared and never errors;
	// internal failures degrade to false.
	Teardown(ctx context.Context) bool
}

// Permission is the platform notification permission state.
type Permission string

const (
	PermissionDefault Permission = "default"
	PermissionGranted Permission = "granted"
	PermissionDenied  Permission = "denied"
)
