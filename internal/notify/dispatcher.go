package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/nikspatil0120/eduplatform-sub001/internal/apperr"
	"github.com/nikspatil0120/eduplatform-sub001/internal/directory"
	"github.com/nikspatil0120/eduplatform-sub001/internal/metrics"
	"github.com/nikspatil0120/eduplatform-sub001/internal/model"
	"github.com/nikspatil0120/eduplatform-sub001/internal/repo"
)

const (
	// DefaultChannelTimeout bounds a single channel dispatch so a stuck
	// provider cannot hold up the rest of the batch.
	DefaultChannelTimeout = 10 * time.Second

	// DefaultBroadcastWorkers bounds per-user concurrency during broadcast.
	DefaultBroadcastWorkers = 8
)

// CreateParams carries everything needed to build a notification record.
type CreateParams struct {
	UserID     string
	Type       string
	Title      string
	Message    string
	Priority   string
	ActionURL  string
	Metadata   map[string]string
	Channels   []string
	ScheduleAt *time.Time
}

// Dispatcher creates notification records, filters requested channels through
// the recipient's preferences and drives concurrent per-channel delivery.
type Dispatcher struct {
	store          repo.NotificationRepository
	users          directory.UserDirectory
	senders        map[string]ChannelSender
	logger         *zap.Logger
	channelTimeout time.Duration
	workers        int
	now            func() time.Time
}

// NewDispatcher wires the dispatcher. Channels without a registered sender
// are reported as failed dispatches rather than silently dropped.
func NewDispatcher(store repo.NotificationRepository, users directory.UserDirectory, senders []ChannelSender, logger *zap.Logger) *Dispatcher {
	byChannel := make(map[string]ChannelSender, len(senders))
	for _, s := range senders {
		byChannel[s.Channel()] = s
	}
	return &Dispatcher{
		store:          store,
		users:          users,
		senders:        byChannel,
		logger:         logger,
		channelTimeout: DefaultChannelTimeout,
		workers:        DefaultBroadcastWorkers,
		now:            time.Now,
	}
}

// SetChannelTimeout overrides the per-channel dispatch timeout.
func (d *Dispatcher) SetChannelTimeout(timeout time.Duration) {
	if timeout > 0 {
		d.channelTimeout = timeout
	}
}

// Create persists a pending notification and, when it is already due,
// immediately dispatches it. Per-channel outcomes live in the delivery
// report; the record itself only fails when no dispatch could be attempted.
func (d *Dispatcher) Create(ctx context.Context, params CreateParams) (*model.Notification, *model.DeliveryReport, error) {
	n := &model.Notification{
		UserID:     params.UserID,
		Type:       params.Type,
		Title:      params.Title,
		Message:    params.Message,
		Priority:   params.Priority,
		ActionURL:  params.ActionURL,
		Metadata:   params.Metadata,
		Channels:   params.Channels,
		ScheduleAt: params.ScheduleAt,
	}

	n, err := d.store.Insert(ctx, n)
	if err != nil {
		return nil, nil, err
	}

	if !n.Due(d.now()) {
		d.logger.Debug("notification scheduled",
			zap.String("notification_id", n.ID.Hex()),
			zap.Time("schedule_at", *n.ScheduleAt),
		)
		return n, nil, nil
	}

	report := d.Send(ctx, n)
	return n, report, nil
}

// shouldSend applies the preference filter for one channel: the channel must
// be enabled, the type not opted out, and the priority at or above the
// user's threshold.
func shouldSend(channel string, prefs model.NotificationPreference, n *model.Notification) bool {
	if !prefs.ChannelEnabled(channel) {
		return false
	}
	if prefs.TypeMuted(n.Type) {
		return false
	}
	return model.PriorityRank(n.Priority) >= model.PriorityRank(prefs.MinPriority)
}

// Send resolves the recipient's preferences and dispatches the surviving
// channels concurrently, each under its own timeout. One channel's failure
// never fails the others. The record transitions to sent once dispatch has
// been attempted on the channels, and to failed when the recipient cannot
// be resolved at all; per-channel outcomes are returned in the report.
func (d *Dispatcher) Send(ctx context.Context, n *model.Notification) *model.DeliveryReport {
	report := &model.DeliveryReport{
		NotificationID: n.ID.Hex(),
		UserID:         n.UserID,
	}

	recipient, err := d.users.Get(ctx, n.UserID)
	if err != nil {
		// Without the recipient record no channel can be attempted, so the
		// record fails rather than claiming a send.
		d.logger.Warn("recipient lookup failed, marking notification failed",
			zap.String("notification_id", n.ID.Hex()),
			zap.String("user_id", n.UserID),
			zap.Error(err),
		)
		for _, ch := range n.Channels {
			report.Channels = append(report.Channels, model.ChannelResult{
				Channel: ch,
				Error:   apperr.ChannelDelivery(ch, err).Error(),
			})
			metrics.NotificationsDispatched.WithLabelValues(ch, "failure").Inc()
		}
		d.markFailed(ctx, n, err)
		return report
	}

	results := make([]model.ChannelResult, len(n.Channels))
	var wg sync.WaitGroup
	for i, ch := range n.Channels {
		if !shouldSend(ch, recipient.Preferences, n) {
			results[i] = model.ChannelResult{Channel: ch, Skipped: true}
			metrics.NotificationsDispatched.WithLabelValues(ch, "skipped").Inc()
			continue
		}

		sender, ok := d.senders[ch]
		if !ok {
			results[i] = model.ChannelResult{Channel: ch, Error: "no sender registered"}
			metrics.NotificationsDispatched.WithLabelValues(ch, "failure").Inc()
			continue
		}

		wg.Add(1)
		go func(i int, ch string, sender ChannelSender) {
			defer wg.Done()

			sendCtx, cancel := context.WithTimeout(ctx, d.channelTimeout)
			defer cancel()

			if err := sender.Send(sendCtx, n, recipient); err != nil {
				results[i] = model.ChannelResult{
					Channel: ch,
					Error:   apperr.ChannelDelivery(ch, err).Error(),
				}
				metrics.NotificationsDispatched.WithLabelValues(ch, "failure").Inc()
				d.logger.Warn("channel dispatch failed",
					zap.String("notification_id", n.ID.Hex()),
					zap.String("channel", ch),
					zap.Error(err),
				)
				return
			}
			results[i] = model.ChannelResult{Channel: ch, OK: true}
			metrics.NotificationsDispatched.WithLabelValues(ch, "success").Inc()
		}(i, ch, sender)
	}
	wg.Wait()

	report.Channels = results
	d.markSent(ctx, n)

	d.logger.Info("notification dispatched",
		zap.String("notification_id", n.ID.Hex()),
		zap.String("user_id", n.UserID),
		zap.Strings("channels", report.Dispatched()),
	)
	return report
}

func (d *Dispatcher) markSent(ctx context.Context, n *model.Notification) {
	updated, err := d.store.MarkSent(ctx, n.ID.Hex(), d.now())
	if err != nil {
		// Lost a race with another dispatcher pass; the record is already
		// past pending, nothing to repair.
		d.logger.Debug("mark sent skipped",
			zap.String("notification_id", n.ID.Hex()),
			zap.Error(err),
		)
		return
	}
	*n = *updated
}

func (d *Dispatcher) markFailed(ctx context.Context, n *model.Notification, cause error) {
	if err := d.store.MarkFailed(ctx, n.ID.Hex(), cause.Error()); err != nil {
		d.logger.Debug("mark failed skipped",
			zap.String("notification_id", n.ID.Hex()),
			zap.Error(err),
		)
		return
	}
	n.Status = model.StatusFailed
	n.Error = cause.Error()
}

// Broadcast runs create+send per recipient with bounded concurrency and
// returns itemized outcomes. One user's failure never aborts the batch.
func (d *Dispatcher) Broadcast(ctx context.Context, userIDs []string, params CreateParams) []model.BroadcastItem {
	items := make([]model.BroadcastItem, len(userIDs))
	sem := make(chan struct{}, d.workers)
	var wg sync.WaitGroup

	for i, userID := range userIDs {
		wg.Add(1)
		go func(i int, userID string) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			perUser := params
			perUser.UserID = userID

			_, report, err := d.Create(ctx, perUser)
			if err != nil {
				items[i] = model.BroadcastItem{UserID: userID, Error: err.Error()}
				return
			}
			items[i] = model.BroadcastItem{UserID: userID, OK: true, Report: report}
		}(i, userID)
	}
	wg.Wait()

	return items
}

// ProcessScheduled finds pending notifications whose schedule has come due
// and dispatches each. Called from the sweep ticker.
func (d *Dispatcher) ProcessScheduled(ctx context.Context) (int, error) {
	metrics.ScheduledSweeps.Inc()

	due, err := d.store.FindDueScheduled(ctx, d.now())
	if err != nil {
		return 0, err
	}

	for i := range due {
		n := due[i]
		d.Send(ctx, &n)
	}

	if len(due) > 0 {
		d.logger.Info("scheduled notifications processed", zap.Int("count", len(due)))
	}
	return len(due), nil
}

// MarkRead transitions a notification to read on behalf of its owner.
// Idempotent: repeated calls keep the first read_at.
func (d *Dispatcher) MarkRead(ctx context.Context, notificationID, userID string) (*model.Notification, error) {
	n, err := d.store.FindByID(ctx, notificationID)
	if err != nil {
		return nil, err
	}
	if n.UserID != userID {
		return nil, apperr.Authorization("notification %s does not belong to user %s", notificationID, userID)
	}
	return d.store.MarkRead(ctx, notificationID, d.now())
}
