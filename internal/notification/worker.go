package notification

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"pushreg-backend/internal/model"
	"pushreg-backend/internal/registry"
)

// Sender defines the interface for sending a web push notification.
type Sender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is the real implementation of Sender using the webpush
// library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// Message is the payload delivered to every active registration of a
// user.
type Message struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Link  string `json:"link,omitempty"`
}

// Job is one fanout request.
type Job struct {
	UserID  string
	Message Message
}

// WorkerPool fans notifications out to a user's active web registrations.
type WorkerPool struct {
	size    int
	jobs    chan Job
	reg     registry.Registry
	webpush *webpush.Options
	sender  Sender
}

// NewWorkerPool creates a new worker pool over the given registry.
func NewWorkerPool(size int, reg registry.Registry, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan Job, size),
		reg:     reg,
		webpush: webpushOptions,
		sender:  &WebPushSender{},
	}
}

// Start launches the worker goroutines.
func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.size; i++ {
		go wp.worker(ctx, i)
	}
}

func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Notification worker %d started", id)
	for {
		select {
		case job := <-wp.jobs:
			wp.fanOut(ctx, job)
		case <-ctx.Done():
			log.Printf("Notification worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues a job for the worker pool.
func (wp *WorkerPool) Dispatch(job Job) {
	wp.jobs <- job
}

// fanOut sends the message to every active web registration of the user.
// Native registrations are routed by the platform's own push service and
// are skipped here.
func (wp *WorkerPool) fanOut(ctx context.Context, job Job) {
	recs, err := wp.reg.ListByUser(ctx, job.UserID)
	if err != nil {
		log.Printf("Error fetching registrations for user %s: %v", job.UserID, err)
		return
	}

	payload, err := json.Marshal(job.Message)
	if err != nil {
		log.Printf("Error encoding notification payload: %v", err)
		return
	}

	sent := 0
	for _, rec := range recs {
		if rec.Transport != model.TransportWeb || rec.Status != model.StatusActive {
			continue
		}
		wp.send(ctx, rec, payload)
		sent++
	}
	if sent > 0 {
		log.Printf("Sent %d notifications for user %s", sent, job.UserID)
	}
}

// send pushes a single notification. A Gone response means the endpoint
// was revoked out-of-band; the record is marked for deletion so the
// owning device reaps it on its next reconciliation pass.
func (wp *WorkerPool) send(ctx context.Context, rec model.Registration, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: rec.Endpoint,
		Keys: webpush.Keys{
			P256dh: rec.P256DH,
			Auth:   rec.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending notification to %s: %v", rec.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
		log.Printf("Registration %d endpoint is gone, marking it for deletion", rec.ID)
		err := wp.reg.Update(ctx, rec.ID, map[string]any{
			"status": model.StatusMarkedForDeletion,
		})
		if err != nil {
			log.Printf("Failed to mark gone registration %d: %v", rec.ID, err)
		}
	}
}
