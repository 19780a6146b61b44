package transport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pushreg-backend/internal/capability"
	"pushreg-backend/internal/localcache"
)

// fakeBrowser is a scriptable Browser.
type fakeBrowser struct {
	readyErr   error
	readyHangs bool

	sub    *Subscription
	subErr error

	subscribeSub *Subscription
	subscribeErr error

	unsubscribeOK  bool
	unsubscribeErr error

	permission        Permission
	requestPermission Permission

	subscribeCalls         int
	requestPermissionCalls int
}

func (b *fakeBrowser) Ready(ctx context.Context) error {
	if b.readyHangs {
		<-ctx.Done()
		return ctx.Err()
	}
	return b.readyErr
}

func (b *fakeBrowser) Subscription(ctx context.Context) (*Subscription, error) {
	return b.sub, b.subErr
}

func (b *fakeBrowser) Subscribe(ctx context.Context) (*Subscription, error) {
	b.subscribeCalls++
	if b.subscribeErr != nil {
		return nil, b.subscribeErr
	}
	b.sub = b.subscribeSub
	return b.subscribeSub, nil
}

func (b *fakeBrowser) Unsubscribe(ctx context.Context) (bool, error) {
	if b.unsubscribeErr != nil {
		return false, b.unsubscribeErr
	}
	if b.unsubscribeOK {
		b.sub = nil
	}
	return b.unsubscribeOK, nil
}

func (b *fakeBrowser) Permission(ctx context.Context) (Permission, error) {
	return b.permission, nil
}

func (b *fakeBrowser) RequestPermission(ctx context.Context) (Permission, error) {
	b.requestPermissionCalls++
	return b.requestPermission, nil
}

type staticTokens struct {
	token string
	err   error
}

func (s staticTokens) Token(ctx context.Context, sub *Subscription) (string, error) {
	return s.token, s.err
}

func (s staticTokens) Revoke(ctx context.Context, token string) (bool, error) {
	return true, nil
}

var supported = capability.Profile{HasNotificationAPI: true, HasServiceWorker: true}

func TestWebCreateOrRefreshWithoutSupport(t *testing.T) {
	tr := NewWebTransport(&fakeBrowser{}, staticTokens{}, localcache.New(""), capability.Profile{}, 0)

	_, err := tr.CreateOrRefresh(context.Background())
	assert.ErrorIs(t, err, ErrNoSupport)
}

func TestWebCreateOrRefreshPermissionDenied(t *testing.T) {
	browser := &fakeBrowser{permission: PermissionDefault, requestPermission: PermissionDenied}
	tr := NewWebTransport(browser, staticTokens{}, localcache.New(""), supported, 0)

	_, err := tr.CreateOrRefresh(context.Background())
	assert.ErrorIs(t, err, ErrPermissionDenied)
	assert.Equal(t, 1, browser.requestPermissionCalls, "the default state triggers one prompt")
}

func TestWebCreateOrRefreshReusesExistingSubscription(t *testing.T) {
	browser := &fakeBrowser{
		permission: PermissionGranted,
		sub:        &Subscription{Endpoint: "https://push.example/e1", P256DH: "p", Auth: "a"},
	}
	cache := localcache.New("")
	tr := NewWebTransport(browser, staticTokens{token: "tok-1"}, cache, supported, 0)

	creds, err := tr.CreateOrRefresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "tok-1", creds.DeliveryToken)
	assert.Equal(t, "https://push.example/e1", creds.Subscription.Endpoint)
	assert.Equal(t, 0, browser.subscribeCalls, "an existing subscription must be reused")
	assert.Equal(t, 0, browser.requestPermissionCalls, "a granted permission must not prompt again")

	cached, ok := cache.Load()
	require.True(t, ok)
	assert.Equal(t, "https://push.example/e1", cached.Endpoint)
	assert.Equal(t, "tok-1", cached.DeliveryToken)
}

func TestWebCreateOrRefreshSubscribesWhenEmpty(t *testing.T) {
	// Some platforms report an empty object instead of no subscription.
	browser := &fakeBrowser{
		permission:   PermissionGranted,
		sub:          &Subscription{},
		subscribeSub: &Subscription{Endpoint: "https://push.example/new", P256DH: "p", Auth: "a"},
	}
	tr := NewWebTransport(browser, staticTokens{token: "tok-1"}, localcache.New(""), supported, 0)

	creds, err := tr.CreateOrRefresh(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, browser.subscribeCalls)
	assert.Equal(t, "https://push.example/new", creds.Subscription.Endpoint)
}

func TestWebCreateOrRefreshServiceWorkerTimeout(t *testing.T) {
	browser := &fakeBrowser{permission: PermissionGranted, readyHangs: true}
	tr := NewWebTransport(browser, staticTokens{}, localcache.New(""), supported, 20*time.Millisecond)

	_, err := tr.CreateOrRefresh(context.Background())
	assert.ErrorIs(t, err, ErrTransport)
}

func TestWebCreateOrRefreshTokenFailure(t *testing.T) {
	browser := &fakeBrowser{
		permission: PermissionGranted,
		sub:        &Subscription{Endpoint: "https://push.example/e1"},
	}
	tr := NewWebTransport(browser, staticTokens{err: errors.New("backend down")}, localcache.New(""), supported, 0)

	_, err := tr.CreateOrRefresh(context.Background())
	assert.ErrorIs(t, err, ErrTransport)
}

func TestWebCurrentSubscription(t *testing.T) {
	t.Run("without support the state is undetermined", func(t *testing.T) {
		tr := NewWebTransport(&fakeBrowser{}, staticTokens{}, localcache.New(""), capability.Profile{}, 0)
		_, err := tr.CurrentSubscription(context.Background())
		assert.ErrorIs(t, err, ErrUndetermined)
	})

	t.Run("empty subscriptions normalize to nil", func(t *testing.T) {
		browser := &fakeBrowser{sub: &Subscription{}}
		tr := NewWebTransport(browser, staticTokens{}, localcache.New(""), supported, 0)
		sub, err := tr.CurrentSubscription(context.Background())
		require.NoError(t, err)
		assert.Nil(t, sub)
	})

	t.Run("live subscription is returned", func(t *testing.T) {
		browser := &fakeBrowser{sub: &Subscription{Endpoint: "https://push.example/e1"}}
		tr := NewWebTransport(browser, staticTokens{}, localcache.New(""), supported, 0)
		sub, err := tr.CurrentSubscription(context.Background())
		require.NoError(t, err)
		require.NotNil(t, sub)
		assert.Equal(t, "https://push.example/e1", sub.Endpoint)
	})
}

func TestWebTeardown(t *testing.T) {
	t.Run("nothing to remove", func(t *testing.T) {
		tr := NewWebTransport(&fakeBrowser{}, staticTokens{}, localcache.New(""), supported, 0)
		assert.False(t, tr.Teardown(context.Background()))
	})

	t.Run("unsubscribes a live subscription", func(t *testing.T) {
		browser := &fakeBrowser{
			sub:           &Subscription{Endpoint: "https://push.example/e1"},
			unsubscribeOK: true,
		}
		tr := NewWebTransport(browser, staticTokens{}, localcache.New(""), supported, 0)
		assert.True(t, tr.Teardown(context.Background()))
		assert.Nil(t, browser.sub)
	})

	t.Run("unsubscribe failure is reported as false", func(t *testing.T) {
		browser := &fakeBrowser{
			sub:            &Subscription{Endpoint: "https://push.example/e1"},
			unsubscribeErr: errors.New("boom"),
		}
		tr := NewWebTransport(browser, staticTokens{}, localcache.New(""), supported, 0)
		assert.False(t, tr.Teardown(context.Background()))
	})
}
