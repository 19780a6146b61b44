package capability

// Profile describes the push-relevant traits of the current device. It is
// built once at startup from the embedding platform and never mutated.
type Profile struct {
	// Native is true for installs running inside the native app shell.
	Native bool
	// HasNotificationAPI and HasServiceWorker reflect whether the browser
	// exposes the required primitives right now.
	HasNotificationAPI bool
	HasServiceWorker   bool
	// AppleMobile marks iPhone/iPad class devices, where push only works
	// from an installed home-screen app on a recent enough OS.
	AppleMobile           bool
	AppleMobileVersion    float64
	AppleMobileCanUpgrade bool
	// AndroidFirefox marks a browser class that is technically capable but
	// excluded: unsubscribe and notification-tap behavior are unreliable.
	AndroidFirefox bool
}

// HasPushSupportNow reports whether the platform exposes the required
// push APIs right now.
func HasPushSupportNow(p Profile) bool {
	return p.HasNotificationAPI && p.HasServiceWorker
}

// CanGainPushSupport reports whether the platform could support push
// after a guided action (installing the site to the home screen, or an OS
// upgrade), but does not yet.
func CanGainPushSupport(p Profile) bool {
	if HasPushSupportNow(p) {
		return false
	}
	return p.AppleMobile && (p.AppleMobileVersion >= 16.4 || p.AppleMobileCanUpgrade)
}

// IsExcludedClass reports whether the platform is push-capable but
// excluded for product-quality reasons.
func IsExcludedClass(p Profile) bool {
	return p.AndroidFirefox
}

// Route is the enable-flow routing decision for a device profile.
type Route int

const (
	// RouteDirect means registration can be attempted immediately.
	RouteDirect Route = iota
	// RouteGuided means the user needs a guided setup flow first.
	RouteGuided
	// RouteUnsupported means the device cannot do push at all.
	RouteUnsupported
)

// DecideRoute applies the enable-flow routing rule: native installs
// proceed directly, supported non-excluded browsers proceed directly,
// devices that could gain support (or are excluded) get guidance, and
// everything else is unsupported.
func DecideRoute(p Profile) Route {
	switch {
	case p.Native:
		return RouteDirect
	case HasPushSupportNow(p) && !IsExcludedClass(p):
		return RouteDirect
	case CanGainPushSupport(p) || IsExcludedClass(p):
		return RouteGuided
	default:
		return RouteUnsupported
	}
}
