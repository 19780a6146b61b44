// Package localcache persists the last web push subscription this device
// believed it held. It lives outside the registry so it survives registry
// unavailability, and is only consulted to detect divergence between what
// the browser now reports and what was last recorded: a mismatch signals
// an out-of-band revocation (browser settings, cleared site data).
package localcache

import (
	"encoding/json"
	"fmt"
	"log"
	"os"

	gocache "github.com/patrickmn/go-cache"
)

const slotKey = "latest_push_subscription"

// Snapshot is the persisted record of the last known local subscription.
type Snapshot struct {
	Endpoint      string `json:"endpoint"`
	P256DH        string `json:"p256dh"`
	Auth          string `json:"auth"`
	DeliveryToken string `json:"delivery_token,omitempty"`
}

// Cache is a single persisted key-value slot. A zero path keeps the slot
// in memory only (tests).
type Cache struct {
	c    *gocache.Cache
	path string
}

// New opens the cache, loading any previously persisted slot. Corrupted
// or unreadable persisted data degrades to an empty slot.
func New(path string) *Cache {
	c := gocache.New(gocache.NoExpiration, 0)
	if path != "" {
		if err := c.LoadFile(path); err != nil && !os.IsNotExist(err) {
			log.Printf("Warning: corrupted cached subscription data, starting empty: %v", err)
		}
	}
	return &Cache{c: c, path: path}
}

// Load returns the cached snapshot, if any. A corrupted slot is treated
// as absent.
func (c *Cache) Load() (Snapshot, bool) {
	v, found := c.c.Get(slotKey)
	if !found {
		return Snapshot{}, false
	}
	raw, ok := v.(string)
	if !ok {
		return Snapshot{}, false
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		log.Printf("Warning: corrupted cached subscription JSON data: %v", err)
		return Snapshot{}, false
	}
	return snap, snap.Endpoint != ""
}

// StoreSnapshot writes the slot and persists it.
func (c *Cache) StoreSnapshot(snap Snapshot) error {
	raw, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to encode subscription snapshot: %w", err)
	}
	c.c.Set(slotKey, string(raw), gocache.NoExpiration)
	return c.persist()
}

// Clear empties the slot and persists the removal.
func (c *Cache) Clear() error {
	c.c.Delete(slotKey)
	return c.persist()
}

func (c *Cache) persist() error {
	if c.path == "" {
		return nil
	}
	if err := c.c.SaveFile(c.path); err != nil {
		return fmt.Errorf("failed to persist subscription cache: %w", err)
	}
	return nil
}
