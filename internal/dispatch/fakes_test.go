package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/nimasrn/campaign-dispatcher/internal/clock"
	"github.com/nimasrn/campaign-dispatcher/internal/gateways"
	"github.com/nimasrn/campaign-dispatcher/internal/model"
	"github.com/nimasrn/campaign-dispatcher/internal/repository"
	"github.com/stretchr/testify/require"
)

const bogota = "America/Bogota"

// 14:00 UTC is 09:00 in Bogota
var nineInBogota = time.Date(2024, 6, 1, 14, 0, 0, 0, time.UTC)

type fakeGateway struct {
	mu      sync.Mutex
	sent    []gateway.TemplateMessage
	uploads []string
	failFor map[string]error
	panicOn string
	onSend  func(msg gateway.TemplateMessage)
}

func (g *fakeGateway) SendTemplate(ctx context.Context, msg gateway.TemplateMessage) (*gateway.SendResult, error) {
	g.mu.Lock()
	g.sent = append(g.sent, msg)
	n := len(g.sent)
	err := g.failFor[msg.To]
	onSend := g.onSend
	g.mu.Unlock()

	if onSend != nil {
		onSend(msg)
	}
	if msg.To == g.panicOn {
		panic("provider client exploded")
	}
	if err != nil {
		return nil, err
	}
	return &gateway.SendResult{
		MessageID: fmt.Sprintf("wamid.%d", n),
		Pricing:   &model.Pricing{Billable: true, PricingModel: "CBP", Category: "marketing"},
	}, nil
}

func (g *fakeGateway) UploadMedia(ctx context.Context, path string, kind model.MediaKind) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.uploads = append(g.uploads, path)
	return "media-" + string(kind), nil
}

func (g *fakeGateway) recipients() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]string, len(g.sent))
	for i, m := range g.sent {
		out[i] = m.To
	}
	return out
}

type fakeSink struct {
	store  *repository.NotifyRepository
	mu     sync.Mutex
	events []model.ProgressEvent
}

func (s *fakeSink) Record(ctx context.Context, n model.Notify) error {
	_, err := s.store.Create(ctx, &n)
	return err
}

func (s *fakeSink) Emit(event model.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *fakeSink) Events() []model.ProgressEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.ProgressEvent(nil), s.events...)
}

// failingStore fails RecordOutcome for one recipient.
type failingStore struct {
	*repository.CampaignRepository
	failRecipient int64
}

func (s *failingStore) RecordOutcome(ctx context.Context, recipientID int64, status model.RecipientStatus) error {
	if recipientID == s.failRecipient {
		return errors.New("connection reset by peer")
	}
	return s.CampaignRepository.RecordOutcome(ctx, recipientID, status)
}

// staleStore serves a pending list read earlier on its first call, the way a
// tick sees rows that another drain handles before this one takes the marker.
type staleStore struct {
	*repository.CampaignRepository
	mu       sync.Mutex
	snapshot []*model.PendingRecipient
}

func (s *staleStore) ListPendingRecipients(ctx context.Context, zone string) ([]*model.PendingRecipient, error) {
	s.mu.Lock()
	snapshot := s.snapshot
	s.snapshot = nil
	s.mu.Unlock()
	if snapshot != nil {
		return snapshot, nil
	}
	return s.CampaignRepository.ListPendingRecipients(ctx, zone)
}

// draining reports whether id is held in set.
func draining(set *inflightSet, id int64) bool {
	release, ok := set.TryAcquire(id)
	if ok {
		release()
	}
	return !ok
}

type harness struct {
	campaigns *repository.CampaignRepository
	templates *repository.TemplateRepository
	messages  *repository.MessageRepository
	statuses  *repository.MessageStatusRepository
	notifies  *repository.NotifyRepository
	resolver  *clock.Resolver
	gw        *fakeGateway
	sink      *fakeSink
	sched     *Scheduler
}

func newHarness(t *testing.T, mutate ...func(*Options)) *harness {
	t.Helper()

	db := repository.NewTestDB(t)
	resolver, err := clock.NewResolver([]clock.Region{{ID: 6, Name: "Colombia", Zone: bogota}})
	require.NoError(t, err)

	h := &harness{
		campaigns: repository.NewCampaignRepository(db),
		templates: repository.NewTemplateRepository(db),
		messages:  repository.NewMessageRepository(db),
		statuses:  repository.NewMessageStatusRepository(db),
		notifies:  repository.NewNotifyRepository(db),
		resolver:  resolver,
		gw:        &fakeGateway{failFor: map[string]error{}},
	}
	h.sink = &fakeSink{store: h.notifies}

	opts := DefaultOptions()
	opts.SendDelay = 0
	opts.StatsInterval = 0
	for _, m := range mutate {
		m(&opts)
	}

	h.sched, err = New(h.campaigns, h.gw, h.sink, h.messages, nil, resolver, opts)
	require.NoError(t, err)
	return h
}

func (h *harness) template(t *testing.T, file string) *model.Template {
	t.Helper()
	tpl, err := h.templates.Create(context.Background(), &model.Template{
		Name:         "Recordatorio",
		ProviderName: "cita_recordatorio",
		Language:     "es",
		Components:   []byte(`[{"type":"body","parameters":[{"type":"text","text":"{{1}}"}]}]`),
		Message:      "Hola {{1}}, tu cita es el {{2}}",
		File:         file,
	})
	require.NoError(t, err)
	return tpl
}

// seed stores a campaign due at 09:00 on 2024-06-01 in Bogota. Phones are the
// recipient names.
func (h *harness) seed(t *testing.T, tpl *model.Template, names ...string) *model.Campaign {
	t.Helper()
	recipients := make([]model.Recipient, len(names))
	for i, n := range names {
		recipients[i] = model.Recipient{PersonID: int64(i + 1), Name: n, Phone: n}
	}
	c, err := h.campaigns.Create(context.Background(), &model.Campaign{
		Title:      "Campaña de junio",
		StartDate:  time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
		TimeStart:  "09:00",
		Category:   model.CategoryScheduled,
		Status:     model.CampaignStatusPending,
		UserID:     7,
		TemplateID: tpl.ID,
		Zone:       bogota,
	}, recipients)
	require.NoError(t, err)
	return c
}

func (h *harness) activate(t *testing.T) {
	t.Helper()
	require.NoError(t, h.sched.Activate(context.Background(), h.resolver.At(nineInBogota)[0]))
}

func (h *harness) statusOf(t *testing.T, id int64) model.CampaignStatus {
	t.Helper()
	c, err := h.campaigns.Get(context.Background(), id)
	require.NoError(t, err)
	return c.Status
}

func (h *harness) recipientStatuses(t *testing.T, id int64) map[string]model.RecipientStatus {
	t.Helper()
	list, err := h.campaigns.ListRecipients(context.Background(), id)
	require.NoError(t, err)
	out := make(map[string]model.RecipientStatus, len(list))
	for _, r := range list {
		out[r.Name] = r.Status
	}
	return out
}

func (h *harness) notifyList(t *testing.T) []*model.Notify {
	t.Helper()
	list, err := h.notifies.List(context.Background(), model.NotifyFilter{Limit: 100})
	require.NoError(t, err)
	return list
}
