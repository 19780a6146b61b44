package transport

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"pushreg-backend/internal/capability"
	"pushreg-backend/internal/localcache"
	"pushreg-backend/internal/model"
)

// DefaultReadyTimeout bounds the wait for the service worker to become
// ready. Some browser/dev-server combinations never resolve it.
const DefaultReadyTimeout = 15 * time.Second

// Browser abstracts the browser push primitives the web adapter drives:
// the service worker registration and the notification permission.
type Browser interface {
	// Ready blocks until the service worker registration is ready. May
	// never return in broken environments; the adapter applies a timeout.
	Ready(ctx context.Context) error
	// Subscription returns the current push subscription, or nil if none.
	Subscription(ctx context.Context) (*Subscription, error)
	// Subscribe creates a new push subscription.
	Subscribe(ctx context.Context) (*Subscription, error)
	// Unsubscribe removes the current subscription, reporting whether one
	// was actually removed.
	Unsubscribe(ctx context.Context) (bool, error)
	Permission(ctx context.Context) (Permission, error)
	RequestPermission(ctx context.Context) (Permission, error)
}

// WebTransport drives a browser push subscription. Its identity key is
// the subscription endpoint URL.
type WebTransport struct {
	browser      Browser
	tokens       TokenSource
	cache        *localcache.Cache
	profile      capability.Profile
	readyTimeout time.Duration
}

// NewWebTransport creates a web push transport adapter. The cache is
// updated with every successfully established subscription so that later
// sessions can detect out-of-band revocation.
func NewWebTransport(browser Browser, tokens TokenSource, cache *localcache.Cache, profile capability.Profile, readyTimeout time.Duration) *WebTransport {
	if readyTimeout <= 0 {
		readyTimeout = DefaultReadyTimeout
	}
	return &WebTransport{
		browser:      browser,
		tokens:       tokens,
		cache:        cache,
		profile:      profile,
		readyTimeout: readyTimeout,
	}
}

func (t *WebTransport) Kind() model.TransportKind { return model.TransportWeb }

// ready waits for the service worker with the configured timeout. A
// timeout is reported as a transport failure, not a hang.
func (t *WebTransport) ready(ctx context.Context) error {
	readyCtx, cancel := context.WithTimeout(ctx, t.readyTimeout)
	defer cancel()
	if err := t.browser.Ready(readyCtx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%w: service worker not ready after %s", ErrTransport, t.readyTimeout)
		}
		return fmt.Errorf("%w: service worker: %v", ErrTransport, err)
	}
	return nil
}

func (t *WebTransport) CreateOrRefresh(ctx context.Context) (Credentials, error) {
	if !capability.HasPushSupportNow(t.profile) {
		return Credentials{}, ErrNoSupport
	}

	perm, err := t.browser.Permission(ctx)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: permission query: %v", ErrTransport, err)
	}
	if perm == PermissionDefault {
		if perm, err = t.browser.RequestPermission(ctx); err != nil {
			return Credentials{}, fmt.Errorf("%w: permission request: %v", ErrTransport, err)
		}
	}
	if perm != PermissionGranted {
		return Credentials{}, ErrPermissionDenied
	}

	if err := t.ready(ctx); err != nil {
		return Credentials{}, err
	}

	sub, err := t.browser.Subscription(ctx)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: get subscription: %v", ErrTransport, err)
	}
	if normalize(sub) == nil {
		if sub, err = t.browser.Subscribe(ctx); err != nil {
			return Credentials{}, fmt.Errorf("%w: subscribe: %v", ErrTransport, err)
		}
	}
	if sub = normalize(sub); sub == nil {
		return Credentials{}, fmt.Errorf("%w: browser returned an empty subscription", ErrTransport)
	}

	token, err := t.tokens.Token(ctx, sub)
	if err != nil {
		return Credentials{}, fmt.Errorf("%w: delivery token: %v", ErrTransport, err)
	}

	err = t.cache.StoreSnapshot(localcache.Snapshot{
		Endpoint:      sub.Endpoint,
		P256DH:        sub.P256DH,
		Auth:          sub.Auth,
		DeliveryToken: token,
	})
	if err != nil {
		log.Printf("Warning: could not cache the current subscription: %v", err)
	}

	return Credentials{DeliveryToken: token, Subscription: sub}, nil
}

func (t *WebTransport) CurrentSubscription(ctx context.Context) (*Subscription, error) {
	if !capability.HasPushSupportNow(t.profile) {
		return nil, ErrUndetermined
	}
	if err := t.ready(ctx); err != nil {
		return nil, err
	}
	sub, err := t.browser.Subscription(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: get subscription: %v", ErrTransport, err)
	}
	return normalize(sub), nil
}

func (t *WebTransport) Teardown(ctx context.Context) bool {
	if !capability.HasPushSupportNow(t.profile) {
		return false
	}
	if err := t.ready(ctx); err != nil {
		log.Printf("Teardown: %v", err)
		return false
	}
	sub, err := t.browser.Subscription(ctx)
	if err != nil || normalize(sub) == nil {
		log.Printf("Teardown: no local subscription to remove (err: %v)", err)
		return false
	}
	ok, err := t.browser.Unsubscribe(ctx)
	if err != nil {
		log.Printf("Teardown: unsubscribe failed: %v", err)
		return false
	}
	return ok
}

// normalize maps empty subscriptions to nil. Some platforms report an
// empty object instead of no subscription.
func normalize(sub *Subscription) *Subscription {
	if sub == nil || sub.Endpoint == "" {
		return nil
	}
	return sub
}
