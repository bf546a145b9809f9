package workers

import (
	"context"
	"errors"
	"time"

	"flulance/internal/clock"
	"flulance/internal/delivery"
	"flulance/internal/logger"
	"flulance/internal/models"
	"flulance/internal/repositories"

	"gorm.io/gorm"
)

const deliveryWorkerName = "notification_delivery"

type DeliveryConfig struct {
	Interval  time.Duration
	BatchSize int
	PublicURL string
}

// DeliveryWorker pushes emitted notifications to external channels. A
// notification is stamped delivered once every sender either accepted it or
// had no address for the recipient; anything else is retried next tick.
type DeliveryWorker struct {
	db               *gorm.DB
	notificationRepo repositories.NotificationRepository
	contactRepo      repositories.ContactRepository
	senders          []delivery.Sender
	clock            clock.Clock
	cfg              DeliveryConfig
}

func NewDeliveryWorker(
	db *gorm.DB,
	notificationRepo repositories.NotificationRepository,
	contactRepo repositories.ContactRepository,
	senders []delivery.Sender,
	clk clock.Clock,
	cfg DeliveryConfig,
) *DeliveryWorker {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	return &DeliveryWorker{
		db:               db,
		notificationRepo: notificationRepo,
		contactRepo:      contactRepo,
		senders:          senders,
		clock:            clk,
		cfg:              cfg,
	}
}

// Start runs the worker until ctx is cancelled. The returned channel closes
// when the loop has exited.
func (w *DeliveryWorker) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.loop(ctx)
	}()
	return done
}

func (w *DeliveryWorker) loop(ctx context.Context) {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	logger.Info("delivery worker started", "interval", w.cfg.Interval.String(), "senders", len(w.senders))
	for {
		select {
		case <-ctx.Done():
			logger.Info("delivery worker stopped")
			return
		case <-ticker.C:
			n, err := w.RunOnce(ctx)
			logger.WorkerLog(deliveryWorkerName, "run", err, "delivered", n)
		}
	}
}

// RunOnce processes one batch and returns how many notifications were stamped.
func (w *DeliveryWorker) RunOnce(ctx context.Context) (int, error) {
	pending, err := w.notificationRepo.FindUndelivered(w.db.WithContext(ctx), w.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	userIDs := make([]string, 0, len(pending))
	for _, n := range pending {
		userIDs = append(userIDs, n.UserID)
	}
	contacts, err := w.contactRepo.FindContacts(w.db.WithContext(ctx), userIDs)
	if err != nil {
		return 0, err
	}

	delivered := make([]string, 0, len(pending))
	for i := range pending {
		if ctx.Err() != nil {
			break
		}
		n := &pending[i]
		contact, ok := contacts[n.UserID]
		if !ok {
			contact = models.DeliveryContact{UserID: n.UserID}
		}
		if w.deliver(ctx, n, contact) {
			delivered = append(delivered, n.ID)
		}
	}

	if err := w.notificationRepo.MarkDelivered(w.db.WithContext(context.WithoutCancel(ctx)), delivered, w.clock.Now()); err != nil {
		return 0, err
	}
	return len(delivered), nil
}

func (w *DeliveryWorker) deliver(ctx context.Context, n *models.Notification, contact models.DeliveryContact) bool {
	msg := delivery.NewMessage(n, w.cfg.PublicURL)
	ok := true
	for _, s := range w.senders {
		err := s.Send(ctx, contact, msg)
		if err == nil || errors.Is(err, delivery.ErrNoAddress) {
			continue
		}
		ok = false
		logger.WorkerLog(deliveryWorkerName, "send", err,
			"sender", s.Name(),
			"notification_id", n.ID,
			"user_id", n.UserID,
		)
	}
	return ok
}
