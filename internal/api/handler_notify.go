package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pushreg-backend/internal/notification"
)

type notifyRequest struct {
	Title string `json:"title" binding:"required"`
	Body  string `json:"body" binding:"required"`
	Link  string `json:"link"`
}

// PostNotification queues a notification fanout to every active web
// registration of the caller.
func (h *Handler) PostNotification(c *gin.Context) {
	uid, ok := userID(c)
	if !ok {
		return
	}

	var req notifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	h.pool.Dispatch(notification.Job{
		UserID: uid,
		Message: notification.Message{
			Title: req.Title,
			Body:  req.Body,
			Link:  req.Link,
		},
	})
	c.Status(http.StatusAccepted)
}
