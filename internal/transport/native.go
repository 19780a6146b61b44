package transport

import (
	"context"
	"fmt"
	"log"

	"pushreg-backend/internal/model"
)

// OSPush abstracts the OS-level push service of a native install.
// Registration is asynchronous: the OS calls back with either a delivery
// token or an error some time after Register returns.
type OSPush interface {
	Permission(ctx context.Context) (Permission, error)
	RequestPermission(ctx context.Context) (Permission, error)
	// Register starts a registration attempt. Exactly one of the two
	// callbacks fires, possibly before Register returns.
	Register(onToken func(token string), onError func(err error)) error
	Unregister(ctx context.Context) error
}

// NativeTransport drives an OS push registration. Its identity key is
// the stable device id; the OS cannot report a subscription payload, so
// CurrentSubscription is always undetermined.
type NativeTransport struct {
	os       OSPush
	deviceID string
}

// NewNativeTransport creates a native push transport adapter for the
// device with the given stable identifier.
func NewNativeTransport(os OSPush, deviceID string) *NativeTransport {
	return &NativeTransport{os: os, deviceID: deviceID}
}

func (t *NativeTransport) Kind() model.TransportKind { return model.TransportNative }

// DeviceID returns the identity key of this device's registrations.
func (t *NativeTransport) DeviceID() string { return t.deviceID }

// pendingRegistration owns the callbacks of one registration attempt.
// Each attempt gets a fresh value so a late callback from an earlier
// attempt can never resolve a newer one, and the buffered channels drop
// duplicate deliveries.
type pendingRegistration struct {
	tokenCh chan string
	errCh   chan error
}

func newPendingRegistration() *pendingRegistration {
	return &pendingRegistration{
		tokenCh: make(chan string, 1),
		errCh:   make(chan error, 1),
	}
}

func (p *pendingRegistration) resolve(token string) {
	select {
	case p.tokenCh <- token:
	default:
	}
}

func (p *pendingRegistration) reject(err error) {
	select {
	case p.errCh <- err:
	default:
	}
}

func (t *NativeTransport) CreateOrRefresh(ctx context.Context) (Credentials, error) {
	if t.deviceID == "" {
		return Credentials{}, fmt.Errorf("%w: device identity unavailable", ErrTransport)
	}

	perm, err := t.os.Permission(ctx)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: permission query: %v", ErrTransport, err)
	}
	if perm != PermissionGranted && perm != PermissionDenied {
		if perm, err = t.os.RequestPermission(ctx); err != nil {
			return Credentials{}, fmt.Errorf("%w: permission request: %v", ErrTransport, err)
		}
	}
	if perm != PermissionGranted {
		return Credentials{}, ErrPermissionDenied
	}

	pending := newPendingRegistration()
	if err := t.os.Register(pending.resolve, pending.reject); err != nil {
		return Credentials{}, fmt.Errorf("%w: register: %v", ErrTransport, err)
	}

	select {
	case token := <-pending.tokenCh:
		return Credentials{DeliveryToken: token}, nil
	case err := <-pending.errCh:
		return Credentials{}, fmt.Errorf("%w: registration callback: %v", ErrTransport, err)
	case <-ctx.Done():
		return Credentials{}, fmt.Errorf("%w: registration: %v", ErrTransport, ctx.Err())
	}
}

func (t *NativeTransport) CurrentSubscription(ctx context.Context) (*Subscription, error) {
	// The OS push API has no side-effect-free way to probe registration
	// state; presence of the device id is the only signal.
	return nil, ErrUndetermined
}

func (t *NativeTransport) Teardown(ctx context.Context) bool {
	if err := t.os.Unregister(ctx); err != nil {
		log.Printf("Teardown: native unregister failed: %v", err)
		return false
	}
	return true
}
