package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"pushreg-backend/internal/model"
	"pushreg-backend/internal/registry"
	"pushreg-backend/internal/ua"
)

// ListRegistrations returns the user's visible registrations. Records
// marked for deletion are filtered out: they are pending cleanup, not
// live devices.
func (h *Handler) ListRegistrations(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	recs, err := h.reg.ListByUser(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	visible := make([]model.Registration, 0, len(recs))
	for _, rec := range recs {
		if rec.Visible() {
			visible = append(visible, rec)
		}
	}
	c.JSON(http.StatusOK, gin.H{"registrations": visible})
}

type createRegistrationRequest struct {
	Transport     model.TransportKind `json:"transport" binding:"required,oneof=web native"`
	DeliveryToken string              `json:"delivery_token" binding:"required"`
	Endpoint      string              `json:"endpoint"`
	P256DH        string              `json:"p256dh"`
	Auth          string              `json:"auth"`
	DeviceID      string              `json:"device_id"`
	UserAgent     string              `json:"user_agent"`
	Host          string              `json:"host"`
}

// CreateRegistration records a registration a device just established
// locally. A record with the same identity key is reported as a
// conflict so racing devices never create duplicates.
func (h *Handler) CreateRegistration(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req createRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	identity := req.Endpoint
	if req.Transport == model.TransportNative {
		identity = req.DeviceID
	}
	if identity == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "an endpoint (web) or device id (native) is required"})
		return
	}

	existing, err := h.reg.ListByUser(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	for _, rec := range existing {
		if rec.Transport == req.Transport && rec.IdentityKey() == identity {
			c.JSON(http.StatusConflict, gin.H{"error": "registration already exists", "id": rec.ID})
			return
		}
	}

	summary := ua.Parse(req.UserAgent)
	rec := &model.Registration{
		UserID:        uid,
		Transport:     req.Transport,
		Status:        model.StatusActive,
		DeliveryToken: req.DeliveryToken,
		Endpoint:      req.Endpoint,
		P256DH:        req.P256DH,
		Auth:          req.Auth,
		DeviceID:      req.DeviceID,
		OSName:        summary.OS,
		BrowserName:   summary.Browser,
		DeviceVendor:  summary.DeviceVendor,
		DeviceModel:   summary.DeviceModel,
		Host:          req.Host,
	}

	id, err := h.reg.Create(c.Request.Context(), rec)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": id})
}

type refreshRegistrationRequest struct {
	DeliveryToken string `json:"delivery_token" binding:"required"`
	Endpoint      string `json:"endpoint"`
	P256DH        string `json:"p256dh"`
	Auth          string `json:"auth"`
}

// RefreshRegistration confirms a registration is still live on its
// owning device, rotating the delivery token and subscription payload if
// they changed.
func (h *Handler) RefreshRegistration(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	rec, ok := h.ownedRegistration(c, uid)
	if !ok {
		return
	}

	var req refreshRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	fields := map[string]any{
		"delivery_token": req.DeliveryToken,
		"refreshed_at":   timeNow(),
		"status":         model.StatusActive,
	}
	if req.Endpoint != "" {
		fields["endpoint"] = req.Endpoint
		fields["p256dh"] = req.P256DH
		fields["auth"] = req.Auth
	}

	if err := h.reg.Update(c.Request.Context(), rec.ID, fields); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, registry.ErrNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// DeleteRegistration marks a registration for deletion, or removes it
// physically when the owning device reports the local teardown is done
// (?reaped=true). Marking is the safe default: any device may do it, and
// the owner converges on the actual cleanup.
func (h *Handler) DeleteRegistration(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}
	rec, ok := h.ownedRegistration(c, uid)
	if !ok {
		return
	}

	if c.Query("reaped") == "true" {
		if err := h.reg.Delete(c.Request.Context(), rec.ID); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Status(http.StatusNoContent)
		return
	}

	err := h.reg.Update(c.Request.Context(), rec.ID, map[string]any{
		"status": model.StatusMarkedForDeletion,
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}

// ownedRegistration resolves the :id parameter to one of the caller's
// own records.
func (h *Handler) ownedRegistration(c *gin.Context, uid string) (*model.Registration, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid registration id"})
		return nil, false
	}

	recs, err := h.reg.ListByUser(c.Request.Context(), uid)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return nil, false
	}
	for i := range recs {
		if uint64(recs[i].ID) == id {
			return &recs[i], true
		}
	}
	c.JSON(http.StatusNotFound, gin.H{"error": "registration not found"})
	return nil, false
}
