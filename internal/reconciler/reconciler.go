// Package reconciler keeps the set of a user's registration records in
// agreement with the device-local push state, across any number of
// devices, without locks or cross-device calls. Convergence works purely
// through shared registry state: every device runs its own reconciliation
// loop over the registry's live snapshot feed, and every repair action is
// a no-op when reapplied to its own result.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"pushreg-backend/internal/capability"
	"pushreg-backend/internal/localcache"
	"pushreg-backend/internal/model"
	"pushreg-backend/internal/registry"
	"pushreg-backend/internal/transport"
	"pushreg-backend/internal/ua"
)

// DefaultRefreshThreshold is how stale a record's refreshed_at may get
// before the owning device re-confirms it.
const DefaultRefreshThreshold = 24 * time.Hour

// ErrAlreadyRegistered reports that a registration for this device's
// identity already exists. It signals a lost race between two
// near-simultaneous enable attempts; the caller should treat it as
// benign, not as a user-facing failure.
var ErrAlreadyRegistered = errors.New("push registration already exists")

// Outcome is the user-visible result of an enable attempt.
type Outcome int

const (
	// OutcomeEnabled means the registration is live.
	OutcomeEnabled Outcome = iota
	// OutcomeGuidance means the device needs a guided setup flow (install
	// to home screen, switch browser) before push can work.
	OutcomeGuidance
	// OutcomeUnsupported means this device cannot do push at all.
	OutcomeUnsupported
)

// Config wires a Session to its collaborators and device context.
type Config struct {
	UserID string
	// DeviceID is the native identity key. Empty for web sessions.
	DeviceID string
	// Host is the origin web subscriptions are created under.
	Host    string
	Summary ua.Summary
	Profile capability.Profile

	Registry  registry.Registry
	Transport transport.Transport
	Tokens    transport.TokenSource
	Cache     *localcache.Cache

	// RefreshThreshold defaults to DefaultRefreshThreshold.
	RefreshThreshold time.Duration
	// Now defaults to time.Now. Injectable for tests.
	Now func() time.Time
}

// Session is one device's reconciliation loop for one authenticated
// user. Snapshot passes are serialized; Enable and Disable may be called
// concurrently with a pass, which is safe because every registry write is
// idempotent keyed by identity.
type Session struct {
	cfg       Config
	threshold time.Duration
	now       func() time.Time

	mu       sync.Mutex
	loaded   bool
	visible  []model.Registration
	enabled  bool
	watchers []func(bool)

	// actionMu serializes explicit user actions so that the
	// double-submission race guard in Enable observes fresh state.
	actionMu sync.Mutex

	cancel func()
}

// NewSession validates the configuration and builds a session. Call Start
// to begin processing the registry feed.
func NewSession(cfg Config) (*Session, error) {
	if cfg.UserID == "" {
		return nil, fmt.Errorf("reconciler: user id is required")
	}
	if cfg.Registry == nil || cfg.Transport == nil || cfg.Tokens == nil || cfg.Cache == nil {
		return nil, fmt.Errorf("reconciler: registry, transport, tokens and cache are required")
	}
	if cfg.Transport.Kind() == model.TransportNative && cfg.DeviceID == "" {
		return nil, fmt.Errorf("reconciler: native sessions need a device id")
	}

	s := &Session{
		cfg:       cfg,
		threshold: cfg.RefreshThreshold,
		now:       cfg.Now,
	}
	if s.threshold <= 0 {
		s.threshold = DefaultRefreshThreshold
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s, nil
}

// Start subscribes the session to the registry's live feed. Passes run
// until Close.
func (s *Session) Start() {
	s.cancel = s.cfg.Registry.SubscribeToUserRecords(s.cfg.UserID, func(snap []model.Registration) {
		s.reconcile(context.Background(), snap)
	})
}

// Close detaches the session from the registry feed.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// Registrations returns the user-facing registration list: every record
// except those marked for deletion, which are an implementation detail of
// the deferred-teardown protocol.
func (s *Session) Registrations() []model.Registration {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Registration, len(s.visible))
	copy(out, s.visible)
	return out
}

// Loaded reports whether at least one snapshot has been processed.
func (s *Session) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

// Enabled reports whether this device currently has a working push
// subscription.
func (s *Session) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// WatchEnabled registers fn to be called whenever the enabled state
// changes. The call happens on the reconciliation goroutine.
func (s *Session) WatchEnabled(fn func(bool)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchers = append(s.watchers, fn)
}

// reconcile is one pass of the state machine over a registry snapshot
// plus current local transport state. Transport and registry failures are
// logged and never abort the loop.
func (s *Session) reconcile(ctx context.Context, snap []model.Registration) {
	cur, curErr := s.cfg.Transport.CurrentSubscription(ctx)
	if curErr != nil && !errors.Is(curErr, transport.ErrUndetermined) {
		log.Printf("Reconcile: could not read local subscription state: %v", curErr)
	}

	identity := s.localIdentity(cur)
	linked := findByIdentity(snap, s.cfg.Transport.Kind(), identity)

	if s.cfg.Transport.Kind() == model.TransportWeb && cur != nil && linked == nil {
		// The registry record for this live local subscription was deleted
		// behind our back. The subscription is unusable; tear it down and
		// do not create a replacement.
		log.Printf("Reconcile: local subscription %s has no registry record, tearing it down", cur.Endpoint)
		if s.cfg.Transport.Teardown(ctx) {
			cur = nil
		}
	}

	if linked != nil && linked.Status == model.StatusMarkedForDeletion {
		// Another device asked for this registration to go away; we are
		// the one that can perform the local teardown.
		if err := s.Disable(ctx, linked.ID); err != nil {
			log.Printf("Reconcile: deferred deletion of registration %d failed: %v", linked.ID, err)
		}
		// The deletion re-fires the feed; the follow-up pass publishes.
		return
	}

	if linked != nil && s.now().Sub(linked.RefreshedAt) > s.threshold {
		if err := s.refresh(ctx, linked); err != nil {
			log.Printf("Reconcile: refresh of registration %d failed: %v", linked.ID, err)
		} else {
			// The update re-fires the feed with the refreshed state.
			return
		}
	}

	if s.cfg.Transport.Kind() == model.TransportWeb && curErr == nil {
		if s.repairExternalRevocation(ctx, snap, cur) {
			return
		}
	}

	s.publish(snap, cur, linked)
}

// repairExternalRevocation detects an unsubscribe that happened entirely
// outside the app (browser settings, cleared site data): the cached last
// known subscription differs from what the browser now reports, yet a
// registry record for the cached identity still exists. That record is
// unusable regardless of its status and is deleted. Reports whether a
// repair write was made.
func (s *Session) repairExternalRevocation(ctx context.Context, snap []model.Registration, cur *transport.Subscription) bool {
	cached, ok := s.cfg.Cache.Load()
	if !ok {
		return false
	}
	if cur != nil && cur.Endpoint == cached.Endpoint {
		return false
	}
	doomed := findByIdentity(snap, model.TransportWeb, cached.Endpoint)
	if doomed == nil {
		return false
	}
	log.Printf("Reconcile: registration %d was revoked outside the app, deleting it", doomed.ID)
	if err := s.cfg.Registry.Delete(ctx, doomed.ID); err != nil {
		log.Printf("Reconcile: could not delete externally revoked registration %d: %v", doomed.ID, err)
		return false
	}
	if err := s.cfg.Cache.Clear(); err != nil {
		log.Printf("Reconcile: could not clear subscription cache: %v", err)
	}
	return true
}

// publish updates the visible list and the derived enabled state.
func (s *Session) publish(snap []model.Registration, cur *transport.Subscription, linked *model.Registration) {
	visible := make([]model.Registration, 0, len(snap))
	for _, rec := range snap {
		if rec.Visible() {
			visible = append(visible, rec)
		}
	}

	var enabled bool
	switch s.cfg.Transport.Kind() {
	case model.TransportWeb:
		enabled = cur != nil
	case model.TransportNative:
		enabled = linked != nil && linked.Status == model.StatusActive
	}

	s.mu.Lock()
	s.visible = visible
	s.loaded = true
	changed := s.enabled != enabled
	s.enabled = enabled
	watchers := make([]func(bool), len(s.watchers))
	copy(watchers, s.watchers)
	s.mu.Unlock()

	if changed {
		for _, fn := range watchers {
			fn(enabled)
		}
	}
}

// refresh re-confirms a live registration: the delivery token is
// re-obtained (it may rotate), the subscription payload re-read, and the
// record written back as active with a fresh refreshed_at.
func (s *Session) refresh(ctx context.Context, rec *model.Registration) error {
	creds, err := s.cfg.Transport.CreateOrRefresh(ctx)
	if err != nil {
		return err
	}

	fields := map[string]any{
		"delivery_token": creds.DeliveryToken,
		"refreshed_at":   s.now().UTC(),
		"status":         model.StatusActive,
	}
	switch s.cfg.Transport.Kind() {
	case model.TransportWeb:
		if creds.Subscription != nil {
			fields["endpoint"] = creds.Subscription.Endpoint
			fields["p256dh"] = creds.Subscription.P256DH
			fields["auth"] = creds.Subscription.Auth
		}
	case model.TransportNative:
		fields["device_id"] = s.cfg.DeviceID
	}

	return s.cfg.Registry.Update(ctx, rec.ID, fields)
}

// Enable attempts to register this device for push, routing through the
// capability gate first. The returned error is classified with the
// transport sentinels (plus ErrAlreadyRegistered) so callers can render
// specific guidance.
func (s *Session) Enable(ctx context.Context) (Outcome, error) {
	switch capability.DecideRoute(s.cfg.Profile) {
	case capability.RouteGuided:
		return OutcomeGuidance, nil
	case capability.RouteUnsupported:
		return OutcomeUnsupported, nil
	}

	s.actionMu.Lock()
	defer s.actionMu.Unlock()

	creds, err := s.cfg.Transport.CreateOrRefresh(ctx)
	if err != nil {
		return OutcomeEnabled, err
	}

	identity := s.cfg.DeviceID
	if s.cfg.Transport.Kind() == model.TransportWeb && creds.Subscription != nil {
		identity = creds.Subscription.Endpoint
	}

	// Guard against double submission: if a record for this identity
	// appeared since the caller decided to enable, abort without creating
	// a duplicate.
	current, err := s.cfg.Registry.ListByUser(ctx, s.cfg.UserID)
	if err != nil {
		return OutcomeEnabled, fmt.Errorf("could not verify existing registrations: %w", err)
	}
	if findByIdentity(current, s.cfg.Transport.Kind(), identity) != nil {
		return OutcomeEnabled, ErrAlreadyRegistered
	}

	rec := &model.Registration{
		UserID:        s.cfg.UserID,
		Transport:     s.cfg.Transport.Kind(),
		Status:        model.StatusActive,
		DeliveryToken: creds.DeliveryToken,
		DeviceID:      s.cfg.DeviceID,
		OSName:        s.cfg.Summary.OS,
		BrowserName:   s.cfg.Summary.Browser,
		DeviceVendor:  s.cfg.Summary.DeviceVendor,
		DeviceModel:   s.cfg.Summary.DeviceModel,
		Host:          s.cfg.Host,
	}
	if creds.Subscription != nil {
		rec.Endpoint = creds.Subscription.Endpoint
		rec.P256DH = creds.Subscription.P256DH
		rec.Auth = creds.Subscription.Auth
	}

	if _, err := s.cfg.Registry.Create(ctx, rec); err != nil {
		return OutcomeEnabled, err
	}
	return OutcomeEnabled, nil
}

// Disable removes one registration. If it belongs to this device, the
// local teardown and token revocation happen here, then the record is
// deleted. If it belongs to another device, the record is only marked for
// deletion: the matching device performs the physical cleanup on its next
// reconciliation pass, so no cross-device call is ever needed.
func (s *Session) Disable(ctx context.Context, id uint) error {
	s.actionMu.Lock()
	defer s.actionMu.Unlock()

	recs, err := s.cfg.Registry.ListByUser(ctx, s.cfg.UserID)
	if err != nil {
		return fmt.Errorf("could not load registrations: %w", err)
	}
	var rec *model.Registration
	for i := range recs {
		if recs[i].ID == id {
			rec = &recs[i]
			break
		}
	}
	if rec == nil {
		return registry.ErrNotFound
	}

	if !s.owns(ctx, rec) {
		log.Printf("Marking the %s registration %d (%s %s %s) for deletion from another device",
			rec.Transport, rec.ID, rec.BrowserName, rec.DeviceVendor, rec.DeviceModel)
		return s.cfg.Registry.Update(ctx, rec.ID, map[string]any{
			"status": model.StatusMarkedForDeletion,
		})
	}

	if !s.cfg.Transport.Teardown(ctx) {
		return fmt.Errorf("%w: local teardown did not clear the subscription", transport.ErrTransport)
	}
	if rec.DeliveryToken != "" {
		if _, err := s.cfg.Tokens.Revoke(ctx, rec.DeliveryToken); err != nil {
			return fmt.Errorf("delivery token revocation failed: %w", err)
		}
	}
	if err := s.cfg.Registry.Delete(ctx, rec.ID); err != nil {
		return err
	}
	if rec.Transport == model.TransportWeb {
		if cached, ok := s.cfg.Cache.Load(); ok && cached.Endpoint == rec.Endpoint {
			if err := s.cfg.Cache.Clear(); err != nil {
				log.Printf("Warning: could not clear subscription cache: %v", err)
			}
		}
	}
	return nil
}

// owns reports whether rec's identity matches this device's current
// local identity.
func (s *Session) owns(ctx context.Context, rec *model.Registration) bool {
	if rec.Transport != s.cfg.Transport.Kind() {
		return false
	}
	switch rec.Transport {
	case model.TransportNative:
		return rec.DeviceID == s.cfg.DeviceID
	case model.TransportWeb:
		cur, err := s.cfg.Transport.CurrentSubscription(ctx)
		return err == nil && cur != nil && cur.Endpoint == rec.Endpoint
	}
	return false
}

// localIdentity computes this device's current identity key: the device
// id for native, the live subscription endpoint for web (empty if none).
func (s *Session) localIdentity(cur *transport.Subscription) string {
	if s.cfg.Transport.Kind() == model.TransportNative {
		return s.cfg.DeviceID
	}
	if cur != nil {
		return cur.Endpoint
	}
	return ""
}

func findByIdentity(recs []model.Registration, kind model.TransportKind, identity string) *model.Registration {
	if identity == "" {
		return nil
	}
	for i := range recs {
		if recs[i].Transport == kind && recs[i].IdentityKey() == identity {
			return &recs[i]
		}
	}
	return nil
}
