package notify

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/SherClockHolmes/webpush-go"

	"gate-access-backend/internal/model"
	"gate-access-backend/internal/store"
)

// AlertSender defines the interface for sending a web push notification.
type AlertSender interface {
	Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error)
}

// WebPushSender is a real implementation of AlertSender using the webpush library.
type WebPushSender struct{}

// Send sends a notification using the webpush library.
func (s *WebPushSender) Send(payload []byte, sub *webpush.Subscription, options *webpush.Options) (*http.Response, error) {
	return webpush.SendNotification(payload, sub, options)
}

// WorkerPool manages a pool of workers that alert subscribed gate officers
// when a new pending movement request lands in the queue.
type WorkerPool struct {
	size    int
	jobs    chan string
	store   store.Store
	webpush *webpush.Options
	sender  AlertSender
}

// NewWorkerPool creates a new worker pool.
func NewWorkerPool(size int, s store.Store, webpushOptions *webpush.Options) *WorkerPool {
	return &WorkerPool{
		size:    size,
		jobs:    make(chan string, size),
		store:   s,
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

// worker is the actual worker goroutine.
func (wp *WorkerPool) worker(ctx context.Context, id int) {
	log.Printf("Alert worker %d started", id)
	for {
		select {
		case recordID := <-wp.jobs:
			log.Printf("Alert worker %d processing movement %s", id, recordID)
			wp.sendAlertsForMovement(ctx, recordID)
		case <-ctx.Done():
			log.Printf("Alert worker %d shutting down", id)
			return
		}
	}
}

// Dispatch queues an alert job for a movement record. Alerts are best-effort:
// if the queue is full the job is dropped. Safe to call on a nil pool.
func (wp *WorkerPool) Dispatch(recordID string) {
	if wp == nil {
		return
	}
	select {
	case wp.jobs <- recordID:
	default:
		log.Printf("alert queue full, dropping alert for movement %s", recordID)
	}
}

// Jobs returns the jobs channel for testing.
func (wp *WorkerPool) Jobs() chan string {
	return wp.jobs
}

// sendAlertsForMovement fetches officer subscriptions and sends an alert for
// the given pending movement.
func (wp *WorkerPool) sendAlertsForMovement(ctx context.Context, recordID string) {
	var rec model.MovementRecord
	if err := wp.store.DB().WithContext(ctx).First(&rec, "id = ?", recordID).Error; err != nil {
		log.Printf("Error fetching movement %s: %v", recordID, err)
		return
	}
	if rec.Status != model.MovementPending {
		// Resolved before the alert went out; nothing to announce.
		return
	}

	var subscriptions []model.OfficerSubscription
	if err := wp.store.DB().WithContext(ctx).Find(&subscriptions).Error; err != nil {
		log.Printf("Error fetching officer subscriptions: %v", err)
		return
	}
	if len(subscriptions) == 0 {
		return
	}

	requesterLabel := rec.EntityRef()
	if name, err := wp.store.GetDisplayName(ctx, rec.EntityRef()); err != nil {
		log.Printf("Error resolving name for %s: %v", rec.EntityRef(), err)
	} else if name != "" {
		requesterLabel = name
	}

	log.Printf("Sending %d officer alerts for movement %s", len(subscriptions), recordID)

	message := fmt.Sprintf("%s is waiting for %s approval at the gate", requesterLabel, rec.MovementType)
	for _, sub := range subscriptions {
		wp.sendAlert(ctx, sub, []byte(message))
	}
}

// sendAlert sends a single web push notification.
func (wp *WorkerPool) sendAlert(ctx context.Context, sub model.OfficerSubscription, payload []byte) {
	wpSub := &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256DH,
			Auth:   sub.Auth,
		},
	}

	resp, err := wp.sender.Send(payload, wpSub, wp.webpush)
	if err != nil {
		log.Printf("Error sending alert to %s: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	// Handle expired subscriptions
	if resp.StatusCode == 410 {
		log.Printf("Subscription for endpoint %s is expired. Deleting.", sub.Endpoint)
		if err := wp.store.DB().WithContext(ctx).Delete(&sub).Error; err != nil {
			log.Printf("Failed to delete expired subscription %s: %v", sub.Endpoint, err)
		}
	}
}
