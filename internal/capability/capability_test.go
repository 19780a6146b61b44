package capability

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDecideRoute(t *testing.T) {
	testCases := []struct {
		name    string
		profile Profile
		want    Route
	}{
		{
			name:    "native install goes direct",
			profile: Profile{Native: true},
			want:    RouteDirect,
		},
		{
			name:    "capable browser goes direct",
			profile: Profile{HasNotificationAPI: true, HasServiceWorker: true},
			want:    RouteDirect,
		},
		{
			name:    "firefox on android is guided to another browser",
			profile: Profile{HasNotificationAPI: true, HasServiceWorker: true, AndroidFirefox: true},
			want:    RouteGuided,
		},
		{
			name:    "recent iphone safari is guided to install",
			profile: Profile{AppleMobile: true, AppleMobileVersion: 17.2},
			want:    RouteGuided,
		},
		{
			name:    "old but upgradable iphone is guided",
			profile: Profile{AppleMobile: true, AppleMobileVersion: 15.0, AppleMobileCanUpgrade: true},
			want:    RouteGuided,
		},
		{
			name:    "old iphone without upgrade path is unsupported",
			profile: Profile{AppleMobile: true, AppleMobileVersion: 15.0},
			want:    RouteUnsupported,
		},
		{
			name:    "browser without primitives is unsupported",
			profile: Profile{},
			want:    RouteUnsupported,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DecideRoute(tc.profile))
		})
	}
}

func TestHasPushSupportNow(t *testing.T) {
	assert.True(t, HasPushSupportNow(Profile{HasNotificationAPI: true, HasServiceWorker: true}))
	assert.False(t, HasPushSupportNow(Profile{HasNotificationAPI: true}))
	assert.False(t, HasPushSupportNow(Profile{HasServiceWorker: true}))
}

func TestCanGainPushSupport(t *testing.T) {
	// A device that already has support cannot "gain" it.
	assert.False(t, CanGainPushSupport(Profile{
		HasNotificationAPI: true,
		HasServiceWorker:   true,
		AppleMobile:        true,
		AppleMobileVersion: 17.0,
	}))

	// 16.4 is the first release with web push from installed apps.
	assert.True(t, CanGainPushSupport(Profile{AppleMobile: true, AppleMobileVersion: 16.4}))
	assert.False(t, CanGainPushSupport(Profile{AppleMobile: true, AppleMobileVersion: 16.3}))
	assert.True(t, CanGainPushSupport(Profile{AppleMobile: true, AppleMobileVersion: 16.3, AppleMobileCanUpgrade: true}))
	assert.False(t, CanGainPushSupport(Profile{}))
}
