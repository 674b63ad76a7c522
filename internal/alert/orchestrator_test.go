package alert

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/mwillard/beacon/internal/config"
	"github.com/mwillard/beacon/internal/contacts"
	"github.com/mwillard/beacon/internal/dispatch"
	"github.com/mwillard/beacon/internal/events"
	"github.com/mwillard/beacon/internal/location"
	"github.com/mwillard/beacon/internal/models"
	"github.com/mwillard/beacon/internal/store"
	"github.com/mwillard/beacon/internal/trigger"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fixture struct {
	orch    *Orchestrator
	primary *dispatch.MockChannel
	store   *store.MemoryStore
	audit   *events.Logger

	confirmedCh chan models.Alert
	cancelledCh chan models.Alert
	sentCh      chan []models.Delivery
}

type fixtureOpts struct {
	confirmTimeoutSec int
	resolver          *location.Resolver
	noContacts        bool
}

func newFixture(t *testing.T, fo fixtureOpts) *fixture {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrate(&models.Contact{}, &models.Template{}, &models.Event{}); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	if !fo.noContacts {
		seeded := []models.Contact{
			{Name: "Ana", Phone: "+1111", Relationship: "Family", Priority: 1, Enabled: true},
			{Name: "Ben", Phone: "+2222", Relationship: "Friend", Priority: 2, Enabled: true},
			{Name: "Off", Phone: "+3333", Relationship: "Friend", Priority: 3, Enabled: false},
		}
		if err := db.Create(&seeded).Error; err != nil {
			t.Fatalf("seed contacts: %v", err)
		}
	}
	tmpl := models.Template{
		ID:      "emergency_alert",
		Subject: "EMERGENCY ALERT",
		Body:    "EMERGENCY! Location: {location}. Time: {timestamp}. Trigger: {trigger_type}.",
	}
	if err := db.Create(&tmpl).Error; err != nil {
		t.Fatalf("seed template: %v", err)
	}

	dir, err := contacts.New(db)
	if err != nil {
		t.Fatalf("directory: %v", err)
	}
	audit, err := events.New(db)
	if err != nil {
		t.Fatalf("audit: %v", err)
	}

	cfg := config.Default()
	if fo.confirmTimeoutSec > 0 {
		cfg.Trigger.ConfirmTimeoutSec = fo.confirmTimeoutSec
	}

	primary := dispatch.NewMockChannel("mock")
	f := &fixture{
		primary:     primary,
		store:       store.NewMemoryStore(),
		audit:       audit,
		confirmedCh: make(chan models.Alert, 1),
		cancelledCh: make(chan models.Alert, 1),
		sentCh:      make(chan []models.Delivery, 1),
	}

	f.orch, err = New(Opts{
		Config:     cfg,
		Resolver:   fo.resolver,
		Dispatcher: dispatch.NewDispatcher(dispatch.DispatcherOpts{Primary: primary}),
		Directory:  dir,
		Store:      f.store,
		Audit:      audit,
	})
	if err != nil {
		t.Fatalf("new orchestrator: %v", err)
	}
	f.orch.Subscribe(Hooks{
		OnAlertConfirmed: func(a models.Alert) { f.confirmedCh <- a },
		OnAlertCancelled: func(a models.Alert) { f.cancelledCh <- a },
		OnMessagesSent:   func(_ models.Alert, d []models.Delivery) { f.sentCh <- d },
	})
	return f
}

func waitAlert(t *testing.T, ch chan models.Alert, what string) models.Alert {
	t.Helper()
	select {
	case a := <-ch:
		return a
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for %s", what)
		return models.Alert{}
	}
}

type fixedProvider struct{ loc location.Location }

func (p *fixedProvider) Name() string { return "fixed" }
func (p *fixedProvider) Lookup(ctx context.Context) (*location.Location, error) {
	clone := p.loc
	return &clone, nil
}

func TestManualTriggerCancelled(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	if !f.orch.TriggerManual("button press") {
		t.Fatal("manual trigger rejected")
	}
	f.orch.Cancel()

	a := waitAlert(t, f.cancelledCh, "cancellation")
	if a.Status != models.AlertCancelled {
		t.Errorf("status = %q, want cancelled", a.Status)
	}
	if len(f.primary.Sent()) != 0 {
		t.Errorf("messages were sent for a cancelled alert")
	}

	hist, err := f.store.History(0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 1 || hist[0].Status != models.AlertCancelled {
		t.Errorf("history = %+v, want one cancelled alert", hist)
	}
	if len(hist[0].Deliveries) != 0 {
		t.Errorf("cancelled alert has %d deliveries, want 0", len(hist[0].Deliveries))
	}

	select {
	case <-f.sentCh:
		t.Error("messages-sent hook fired for a cancelled alert")
	default:
	}
}

func TestVoiceTriggerConfirmed(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	kw, ok := f.orch.TriggerVoice("please HELP me", 0.9)
	if !ok {
		t.Fatal("voice trigger rejected")
	}
	if kw != "help" {
		t.Errorf("matched keyword = %q, want help", kw)
	}
	f.orch.Confirm()

	a := waitAlert(t, f.confirmedCh, "confirmation")
	if a.Status != models.AlertConfirmed || a.TimedOut {
		t.Errorf("alert = %+v, want user-confirmed", a)
	}

	deliveries := <-f.sentCh
	if len(deliveries) != 2 {
		t.Fatalf("len(deliveries) = %d, want one per enabled contact", len(deliveries))
	}
	for _, d := range deliveries {
		if !d.Success {
			t.Errorf("delivery to %s failed: %s", d.ContactPhone, d.Error)
		}
		if d.AlertID != a.ID {
			t.Errorf("delivery alert id = %q, want %q", d.AlertID, a.ID)
		}
	}

	sent := f.primary.Sent()
	if len(sent) != 2 {
		t.Fatalf("channel saw %d sends, want 2", len(sent))
	}
	if !strings.Contains(sent[0].Body, "Trigger: voice.") {
		t.Errorf("body = %q, want trigger type rendered", sent[0].Body)
	}
	// no resolver wired: the placeholder stays literal
	if !strings.Contains(sent[0].Body, "{location}") {
		t.Errorf("body = %q, want unresolved location placeholder kept", sent[0].Body)
	}
}

func TestVoiceTimeoutAutoConfirms(t *testing.T) {
	f := newFixture(t, fixtureOpts{confirmTimeoutSec: 1})

	if _, ok := f.orch.TriggerVoice("emergency", 0.9); !ok {
		t.Fatal("voice trigger rejected")
	}

	a := waitAlert(t, f.confirmedCh, "timeout confirmation")
	if !a.TimedOut {
		t.Error("alert not marked as timed out")
	}
	if a.Status != models.AlertConfirmed {
		t.Errorf("status = %q, want confirmed", a.Status)
	}
	if deliveries := <-f.sentCh; len(deliveries) != 2 {
		t.Errorf("len(deliveries) = %d, want 2", len(deliveries))
	}
}

func TestVoiceTriggerGating(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	if _, ok := f.orch.TriggerVoice("nice weather today", 0.9); ok {
		t.Error("non-keyword text opened a window")
	}
	if kw, ok := f.orch.TriggerVoice("help", 0.2); ok {
		t.Error("low-confidence voice trigger opened a window")
	} else if kw != "help" {
		t.Errorf("keyword = %q, want help reported even when rejected", kw)
	}
	if st := f.orch.GetStatus(); st.Machine.State != trigger.StateIdle {
		t.Errorf("machine state = %q, want idle", st.Machine.State)
	}
}

func TestGestureTrigger(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	if f.orch.TriggerGesture("wave", 0.9) {
		t.Error("non-emergency gesture opened a window")
	}
	if f.orch.TriggerGesture(trigger.EmergencyGesture, 0.2) {
		t.Error("low-confidence gesture opened a window")
	}
	if !f.orch.TriggerGesture(trigger.EmergencyGesture, 0.9) {
		t.Fatal("emergency gesture rejected")
	}
	f.orch.Cancel()
	a := waitAlert(t, f.cancelledCh, "cancellation")
	if a.TriggerKind != string(trigger.KindGesture) {
		t.Errorf("trigger kind = %q, want gesture", a.TriggerKind)
	}
}

func TestSecondTriggerRejectedWhileAwaiting(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	if !f.orch.TriggerManual("") {
		t.Fatal("first trigger rejected")
	}
	if f.orch.TriggerManual("") {
		t.Error("second trigger accepted while window open")
	}
	if _, ok := f.orch.TriggerVoice("help", 0.9); ok {
		t.Error("voice trigger accepted while window open")
	}
	f.orch.Cancel()
	waitAlert(t, f.cancelledCh, "cancellation")

	// idle again, a new trigger is accepted
	if !f.orch.TriggerManual("") {
		t.Error("trigger rejected after resolution")
	}
	f.orch.Cancel()
	waitAlert(t, f.cancelledCh, "second cancellation")
}

func TestConfirmedWithLocation(t *testing.T) {
	resolver := location.NewResolver(location.ResolverOpts{
		Providers: []location.Provider{&fixedProvider{loc: location.Location{
			Latitude:  48.85,
			Longitude: 2.35,
			City:      "Paris",
			Country:   "France",
			Source:    location.SourceIP,
			Accuracy:  0.8,
		}}},
	})
	f := newFixture(t, fixtureOpts{resolver: resolver})

	f.orch.TriggerManual("")
	f.orch.Confirm()

	a := waitAlert(t, f.confirmedCh, "confirmation")
	if !a.HasLocation || a.City != "Paris" {
		t.Errorf("alert location = %+v, want Paris fix", a)
	}
	<-f.sentCh
	sent := f.primary.Sent()
	if len(sent) == 0 || !strings.Contains(sent[0].Body, "Paris, France") {
		t.Errorf("body missing location summary: %+v", sent)
	}
}

func TestConfirmedWithoutContacts(t *testing.T) {
	f := newFixture(t, fixtureOpts{noContacts: true})

	f.orch.TriggerManual("")
	f.orch.Confirm()

	a := waitAlert(t, f.confirmedCh, "confirmation")
	if a.Status != models.AlertConfirmed {
		t.Errorf("status = %q, want confirmed even with no contacts", a.Status)
	}
	if len(a.Deliveries) != 0 {
		t.Errorf("deliveries = %d, want 0", len(a.Deliveries))
	}
}

func TestPartialDeliveryFailureRecorded(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.primary.FailFor("+1111")

	f.orch.TriggerManual("")
	f.orch.Confirm()
	waitAlert(t, f.confirmedCh, "confirmation")

	deliveries := <-f.sentCh
	if len(deliveries) != 2 {
		t.Fatalf("len(deliveries) = %d, want 2", len(deliveries))
	}
	// primary failure falls back to the record channel, so the delivery
	// still succeeds through the fallback
	for _, d := range deliveries {
		if !d.Success {
			t.Errorf("delivery to %s not recovered by fallback: %s", d.ContactPhone, d.Error)
		}
	}
}

func TestHookPanicIsolated(t *testing.T) {
	f := newFixture(t, fixtureOpts{})
	f.orch.Subscribe(Hooks{
		OnAlertConfirmed: func(models.Alert) { panic("subscriber bug") },
	})

	f.orch.TriggerManual("")
	f.orch.Confirm()

	a := waitAlert(t, f.confirmedCh, "confirmation")
	if a.Status != models.AlertConfirmed {
		t.Errorf("status = %q, want confirmed despite panicking hook", a.Status)
	}
	if n, _ := f.store.Count(); n != 1 {
		t.Errorf("count = %d, want alert recorded", n)
	}
}

func TestStatusCounters(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	f.orch.TriggerManual("")
	f.orch.Confirm()
	waitAlert(t, f.confirmedCh, "confirmation")
	<-f.sentCh

	f.orch.TriggerManual("")
	f.orch.Cancel()
	waitAlert(t, f.cancelledCh, "cancellation")

	st := f.orch.GetStatus()
	if st.Triggered != 2 || st.Confirmed != 1 || st.Cancelled != 1 {
		t.Errorf("counters = %d/%d/%d, want 2/1/1", st.Triggered, st.Confirmed, st.Cancelled)
	}
	if st.ContactsTotal != 3 || st.ContactsEnabled != 2 {
		t.Errorf("contacts = %d/%d, want 3 total 2 enabled", st.ContactsTotal, st.ContactsEnabled)
	}
	if st.CurrentAlertID != "" {
		t.Errorf("current alert id = %q, want empty when idle", st.CurrentAlertID)
	}
}

func TestAuditTrail(t *testing.T) {
	f := newFixture(t, fixtureOpts{})

	f.orch.TriggerManual("")
	f.orch.Confirm()
	a := waitAlert(t, f.confirmedCh, "confirmation")
	<-f.sentCh

	trail, err := f.audit.ForAlert(a.ID)
	if err != nil {
		t.Fatalf("audit trail: %v", err)
	}
	kinds := make([]string, len(trail))
	for i, ev := range trail {
		kinds[i] = ev.Kind
	}
	want := []string{models.EventTriggered, models.EventConfirmed, models.EventDispatch}
	if len(kinds) != len(want) {
		t.Fatalf("trail kinds = %v, want %v", kinds, want)
	}
	for i := range want {
		if kinds[i] != want[i] {
			t.Errorf("trail[%d] = %q, want %q", i, kinds[i], want[i])
		}
	}
}
