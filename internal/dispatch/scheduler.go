package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nimasrn/campaign-dispatcher/internal/clock"
	"github.com/nimasrn/campaign-dispatcher/internal/model"
	"github.com/nimasrn/campaign-dispatcher/pkg/logger"
	"github.com/nimasrn/campaign-dispatcher/pkg/prom"
)

const (
	passActivate = "activate"
	passDrain    = "drain"
)

type Options struct {
	TickInterval time.Duration
	// SendDelay is the pause between two sends of one drain.
	SendDelay time.Duration
	// MaxPerDrain caps the recipients handled by one drain; the next tick
	// resumes the campaign. Zero means no cap.
	MaxPerDrain int
	// ErrorNotifyUserID owns error notify records of campaigns without owner.
	ErrorNotifyUserID int64
	// MediaRoot is the directory holding template files under public/.
	MediaRoot     string
	StatsInterval time.Duration
}

func DefaultOptions() Options {
	return Options{
		TickInterval:      time.Minute,
		SendDelay:         5 * time.Second,
		ErrorNotifyUserID: 1,
		MediaRoot:         ".",
		StatsInterval:     5 * time.Minute,
	}
}

// Scheduler activates due campaigns and sends their messages, region by
// region, on every tick.
type Scheduler struct {
	store    CampaignStore
	gateway  MessagingGateway
	sink     NotificationSink
	messages MessageLog
	guard    DeliveryGuard
	resolver *clock.Resolver
	opts     Options

	inflight *inflightSet
	metrics  *ServiceMetrics
}

// New builds a scheduler. guard may be nil.
func New(store CampaignStore, gw MessagingGateway, sink NotificationSink, messages MessageLog, guard DeliveryGuard, resolver *clock.Resolver, opts Options) (*Scheduler, error) {
	if store == nil || gw == nil || sink == nil || messages == nil || resolver == nil {
		return nil, errors.New("dispatch: store, gateway, sink, message log and resolver are required")
	}
	if opts.TickInterval <= 0 {
		return nil, errors.New("dispatch: tick interval must be positive")
	}
	if opts.SendDelay < 0 || opts.MaxPerDrain < 0 {
		return nil, errors.New("dispatch: send delay and max per drain must not be negative")
	}

	return &Scheduler{
		store:    store,
		gateway:  gw,
		sink:     sink,
		messages: messages,
		guard:    guard,
		resolver: resolver,
		opts:     opts,
		inflight: newInflightSet(),
		metrics:  NewServiceMetrics(),
	}, nil
}

func (s *Scheduler) Metrics() *ServiceMetrics {
	return s.metrics
}

// Start ticks on every TickInterval boundary until stop is called. Each tick
// runs on its own goroutine so a long drain never delays the next tick. stop
// cancels running drains between two recipients and waits for them.
func (s *Scheduler) Start(ctx context.Context) (stop func()) {
	ctx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()

		next := time.Now().Truncate(s.opts.TickInterval).Add(s.opts.TickInterval)
		timer := time.NewTimer(time.Until(next))
		defer timer.Stop()

		logger.Info("Dispatch scheduler started", "interval", s.opts.TickInterval, "first_tick", next, "regions", len(s.resolver.Regions()))

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-timer.C:
				wg.Add(1)
				go func() {
					defer wg.Done()
					s.Tick(ctx, now)
				}()
				next = next.Add(s.opts.TickInterval)
				// a late timer skips missed boundaries instead of firing them in a burst
				for !next.After(time.Now()) {
					next = next.Add(s.opts.TickInterval)
				}
				timer.Reset(time.Until(next))
			}
		}
	}()

	if s.opts.StatsInterval > 0 {
		wg.Add(1)
		go s.metricsReporter(ctx, &wg)
	}

	return func() {
		cancel()
		wg.Wait()
		s.reportMetrics()
		logger.Info("Dispatch scheduler stopped")
	}
}

func (s *Scheduler) metricsReporter(ctx context.Context, wg *sync.WaitGroup) {
	defer wg.Done()

	ticker := time.NewTicker(s.opts.StatsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			// each report covers one interval
			s.reportMetrics()
			s.metrics.Reset()
		case <-ctx.Done():
			return
		}
	}
}

func (s *Scheduler) reportMetrics() {
	stats := s.metrics.GetStats()
	logger.Info("Dispatch metrics", "total_sent", stats["total_sent"], "total_not_sent", stats["total_not_sent"], "activations", stats["activations"], "completions", stats["completions"], "avg_send_ms", stats["avg_send_ms"], "window_seconds", stats["window_seconds"], "draining", s.inflight.Len())
}

// Tick runs both passes for every region concurrently and returns when all
// of them are done. Nothing a region does can panic out of Tick.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	var wg sync.WaitGroup
	for _, lt := range s.resolver.At(now) {
		wg.Add(1)
		go func(lt clock.LocalTime) {
			defer wg.Done()
			zone := lt.Region.Zone
			s.guarded(zone, passActivate, func() error { return s.Activate(ctx, lt) })
			s.guarded(zone, passDrain, func() error { return s.Drain(ctx, zone) })
		}(lt)
	}
	wg.Wait()
}

func (s *Scheduler) guarded(zone, pass string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			prom.IncTickError(zone, pass)
			logger.Error("Dispatch pass panicked", "zone", zone, "pass", pass, "panic", r)
		}
	}()

	if err := fn(); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("Dispatch pass cancelled", "zone", zone, "pass", pass)
			return
		}
		prom.IncTickError(zone, pass)
		logger.Error("Dispatch pass failed", "zone", zone, "pass", pass, "error", err)
	}
}

// Activate starts the campaign of lt's region that is due at lt, if any.
func (s *Scheduler) Activate(ctx context.Context, lt clock.LocalTime) error {
	zone := lt.Region.Zone

	campaign, err := s.store.FindDueCampaign(ctx, lt.Day, lt.Clock, zone)
	if err != nil {
		return fmt.Errorf("find due campaign: %w", err)
	}
	if campaign == nil {
		return nil
	}

	activated, err := s.store.ActivateCampaign(ctx, campaign.ID)
	if err != nil {
		return fmt.Errorf("activate campaign %d: %w", campaign.ID, err)
	}
	if !activated {
		logger.Debug("Campaign already activated", "campaign_id", campaign.ID, "zone", zone)
		return nil
	}

	prom.IncActivation(zone)
	s.metrics.RecordActivation()
	logger.Info("Campaign activated", "campaign_id", campaign.ID, "zone", zone, "date", lt.Date, "time", lt.Clock, "recipients", campaign.RecipientCount)

	persistCtx := context.WithoutCancel(ctx)
	err = s.sink.Record(persistCtx, model.Notify{
		Title:   fmt.Sprintf("Envio de Mensajes a %d personas", campaign.RecipientCount),
		Message: fmt.Sprintf("Se ha iniciado el envio de mensajes a las %s del %s con la plantilla %s", lt.Clock, lt.Date, campaign.TemplateName),
		Status:  model.NotifyStatusInProgress,
		Type:    model.NotifyTypeScheduled,
		UserID:  campaign.UserID,
	})
	if err != nil {
		logger.Error("Failed to record activation notify", "campaign_id", campaign.ID, "error", err)
	}

	s.sink.Emit(model.ProgressEvent{
		Type:       model.EventNotify,
		CalendarID: campaign.ID,
		Title:      campaign.Title,
		InProgress: 0,
		Total:      campaign.RecipientCount,
	})
	return nil
}

// Drain sends the pending recipients of the lowest in progress campaign of
// zone, one at a time in id order. A drain already running for that campaign
// makes this call a no-op.
func (s *Scheduler) Drain(ctx context.Context, zone string) (err error) {
	rows, err := s.store.ListPendingRecipients(ctx, zone)
	if err != nil {
		return fmt.Errorf("list pending recipients: %w", err)
	}
	if len(rows) == 0 {
		return nil
	}

	campaignID := rows[0].CampaignID
	release, ok := s.inflight.TryAcquire(campaignID)
	if !ok {
		logger.Debug("Campaign is already being drained", "campaign_id", campaignID, "zone", zone)
		return nil
	}
	defer release()

	// rows read before the marker was taken may have been handled by a drain
	// that finished in between
	rows, err = s.store.ListPendingRecipients(ctx, zone)
	if err != nil {
		return fmt.Errorf("list pending recipients: %w", err)
	}
	batch := pendingOf(rows, campaignID)
	if len(batch) == 0 {
		logger.Debug("Campaign has no pending recipients left", "campaign_id", campaignID, "zone", zone)
		return nil
	}

	prom.AddDrainInFlight(zone, 1)
	defer prom.AddDrainInFlight(zone, -1)

	owner := batch[0].CampaignUserID
	title := batch[0].CampaignTitle
	templateName := batch[0].Template.Name
	persistCtx := context.WithoutCancel(ctx)

	// any failure past this point leaves an error notify for the owner
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("drain of campaign %d panicked: %v", campaignID, r)
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			s.recordError(persistCtx, owner, err)
		}
	}()

	total, err := s.store.CountRecipients(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("count recipients of campaign %d: %w", campaignID, err)
	}
	done := total - int64(len(batch))

	limit := len(batch)
	if s.opts.MaxPerDrain > 0 && limit > s.opts.MaxPerDrain {
		limit = s.opts.MaxPerDrain
	}

	logger.Info("Draining campaign", "campaign_id", campaignID, "zone", zone, "pending", len(batch), "limit", limit)

	media := make(mediaCache)
	for i, rec := range batch[:limit] {
		if i > 0 {
			if err := s.pause(ctx); err != nil {
				logger.Info("Drain interrupted", "campaign_id", campaignID, "processed", i, "pending", len(batch)-i)
				return err
			}
		}

		status := s.deliver(persistCtx, zone, rec, media)

		if err := s.store.RecordOutcome(persistCtx, rec.ID, status); err != nil {
			return fmt.Errorf("record outcome of recipient %d: %w", rec.ID, err)
		}

		if i < limit-1 {
			s.sink.Emit(model.ProgressEvent{
				Type:       model.EventProgress,
				CalendarID: campaignID,
				Title:      title,
				InProgress: done + int64(i) + 1,
				Total:      total,
			})
		}
	}

	return s.finish(persistCtx, zone, campaignID, owner, title, templateName, done+int64(limit), total)
}

// finish completes the campaign once no recipient is pending. Otherwise the
// drain yielded and the next tick continues it.
func (s *Scheduler) finish(ctx context.Context, zone string, campaignID, owner int64, title, templateName string, processed, total int64) error {
	pending, err := s.store.CountPending(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("count pending of campaign %d: %w", campaignID, err)
	}

	if pending > 0 {
		s.sink.Emit(model.ProgressEvent{
			Type:       model.EventProgress,
			CalendarID: campaignID,
			Title:      title,
			InProgress: processed,
			Total:      total,
		})
		logger.Info("Drain yielded", "campaign_id", campaignID, "zone", zone, "pending", pending)
		return nil
	}

	completed, err := s.store.CompleteCampaign(ctx, campaignID)
	if err != nil {
		return fmt.Errorf("complete campaign %d: %w", campaignID, err)
	}
	if !completed {
		logger.Info("Campaign was already completed", "campaign_id", campaignID, "zone", zone)
		return nil
	}

	now := time.Now().In(s.location(zone))
	err = s.sink.Record(ctx, model.Notify{
		Title:   "Envio de Mensajes Finalizado",
		Message: fmt.Sprintf("Se ha finalizado el envio de mensajes a las %s del %s con la plantilla %s", now.Format("15:04"), now.Format(time.DateOnly), templateName),
		Status:  model.NotifyStatusCompleted,
		Type:    model.NotifyTypeScheduled,
		UserID:  owner,
	})
	if err != nil {
		logger.Error("Failed to record completion notify", "campaign_id", campaignID, "error", err)
	}

	prom.IncCompletion(zone)
	s.metrics.RecordCompletion()
	logger.Info("Campaign completed", "campaign_id", campaignID, "zone", zone, "total", total)

	s.sink.Emit(model.ProgressEvent{
		Type:       model.EventNotify,
		CalendarID: campaignID,
		Title:      title,
		InProgress: total,
		Total:      total,
	})
	return nil
}

func (s *Scheduler) pause(ctx context.Context) error {
	if s.opts.SendDelay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.opts.SendDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func (s *Scheduler) recordError(ctx context.Context, owner int64, cause error) {
	if owner == 0 {
		owner = s.opts.ErrorNotifyUserID
	}
	logger.Error("Campaign dispatch error", "user_id", owner, "error", cause)

	err := s.sink.Record(ctx, model.Notify{
		Title:   "Error en Envio de Mensajes",
		Message: cause.Error(),
		Status:  model.NotifyStatusError,
		Type:    model.NotifyTypeScheduled,
		UserID:  owner,
	})
	if err != nil {
		logger.Error("Failed to record error notify", "error", err)
	}
}

func (s *Scheduler) location(zone string) *time.Location {
	loc, ok := s.resolver.Location(zone)
	if !ok {
		logger.Warn("Zone is not a configured region, using UTC", "zone", zone)
		return time.UTC
	}
	return loc
}

// pendingOf returns the rows of campaignID. Rows come ordered by campaign, so
// they are contiguous.
func pendingOf(rows []*model.PendingRecipient, campaignID int64) []*model.PendingRecipient {
	start := -1
	for i, r := range rows {
		if r.CampaignID == campaignID {
			if start < 0 {
				start = i
			}
			continue
		}
		if start >= 0 {
			return rows[start:i]
		}
	}
	if start < 0 {
		return nil
	}
	return rows[start:]
}
