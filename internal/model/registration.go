package model

import "time"

// TransportKind discriminates the two push transport variants. Every
// consumer of a Registration switches on this tag rather than probing
// optional fields.
type TransportKind string

const (
	TransportWeb    TransportKind = "web"
	TransportNative TransportKind = "native"
)

// RegistrationStatus is the lifecycle status of a registration record.
// The only legal transition is StatusActive -> StatusMarkedForDeletion,
// after which the record is physically removed by the owning device.
type RegistrationStatus string

const (
	StatusActive            RegistrationStatus = "active"
	StatusMarkedForDeletion RegistrationStatus = "marked_for_deletion"
)

// Registration binds one device push endpoint (or native device id) to a
// user, together with the delivery token needed to route notifications to
// it. One row exists per device-endpoint pair.
type Registration struct {
	ID     uint   `gorm:"primaryKey" json:"id"`
	UserID string `gorm:"index;not null" json:"user_id"`

	Transport TransportKind      `gorm:"not null" json:"transport"`
	Status    RegistrationStatus `gorm:"not null;default:active" json:"status"`

	// DeliveryToken is the opaque credential issued by the push-delivery
	// backend. It may be rotated on refresh.
	DeliveryToken string `gorm:"not null" json:"delivery_token"`

	// Web transport subscription payload. Endpoint doubles as the identity
	// key for web registrations: it stays stable across token rotations.
	Endpoint string `gorm:"index" json:"endpoint,omitempty"`
	P256DH   string `gorm:"column:p256dh" json:"p256dh,omitempty"`
	Auth     string `json:"auth,omitempty"`

	// DeviceID is the identity key for native registrations. Empty for web.
	DeviceID string `gorm:"index" json:"device_id,omitempty"`

	// Coarse user-agent summary. Cosmetic only: shown to the user so they
	// can recognize the device, never consulted by reconciliation.
	OSName       string `json:"os_name,omitempty"`
	BrowserName  string `json:"browser_name,omitempty"`
	DeviceVendor string `json:"device_vendor,omitempty"`
	DeviceModel  string `json:"device_model,omitempty"`

	// Host is the origin the web subscription was created under. It
	// disambiguates multiple deployments sharing one registry.
	Host string `json:"host,omitempty"`

	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	RefreshedAt time.Time `gorm:"not null" json:"refreshed_at"`
}

// IdentityKey returns the value that matches a local subscription to this
// record: the endpoint URL for web, the device id for native.
func (r Registration) IdentityKey() string {
	if r.Transport == TransportNative {
		return r.DeviceID
	}
	return r.Endpoint
}

// Visible reports whether the record should appear in user-facing lists.
// Records marked for deletion are an implementation detail of the
// mark-then-reap protocol and are never shown.
func (r Registration) Visible() bool {
	return r.Status != StatusMarkedForDeletion
}
