// Package alert wires the trigger machine, location resolver, contact
// directory and message dispatcher into the full emergency pipeline:
// trigger -> confirmation window -> locate -> notify -> record.
package alert

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/mwillard/beacon/internal/config"
	"github.com/mwillard/beacon/internal/contacts"
	"github.com/mwillard/beacon/internal/dispatch"
	"github.com/mwillard/beacon/internal/events"
	"github.com/mwillard/beacon/internal/location"
	"github.com/mwillard/beacon/internal/models"
	"github.com/mwillard/beacon/internal/store"
	"github.com/mwillard/beacon/internal/trigger"
)

// alertTemplateID is the message template rendered for confirmed alerts.
const alertTemplateID = "emergency_alert"

// Hooks receive orchestrator lifecycle notifications. All fields are
// optional; each invocation is recover-guarded so a misbehaving subscriber
// cannot break an alert in flight.
type Hooks struct {
	OnAlertTriggered func(alert models.Alert)
	OnAlertConfirmed func(alert models.Alert)
	OnAlertCancelled func(alert models.Alert)
	OnMessagesSent   func(alert models.Alert, deliveries []models.Delivery)
}

// Orchestrator owns the emergency pipeline. One trigger is in flight at a
// time; resolution (confirm, cancel, timeout) drives location lookup,
// message fan-out and history persistence.
type Orchestrator struct {
	cfg        *config.Config
	machine    *trigger.Machine
	resolver   *location.Resolver
	dispatcher *dispatch.Dispatcher
	directory  *contacts.Directory
	store      store.AlertStore
	audit      *events.Logger

	mu      sync.Mutex
	current *models.Alert
	hooks   []Hooks

	triggered uint64
	confirmed uint64
	cancelled uint64
}

// Opts configures an Orchestrator. Config, Dispatcher, Directory and Store
// are required; Resolver and Audit are optional (no location, no audit
// trail).
type Opts struct {
	Config     *config.Config
	Resolver   *location.Resolver
	Dispatcher *dispatch.Dispatcher
	Directory  *contacts.Directory
	Store      store.AlertStore
	Audit      *events.Logger
}

// New creates an Orchestrator and arms its trigger machine.
func New(opts Opts) (*Orchestrator, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("alert: config is required")
	}
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("alert: dispatcher is required")
	}
	if opts.Directory == nil {
		return nil, fmt.Errorf("alert: contact directory is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("alert: store is required")
	}

	o := &Orchestrator{
		cfg:        opts.Config,
		resolver:   opts.Resolver,
		dispatcher: opts.Dispatcher,
		directory:  opts.Directory,
		store:      opts.Store,
		audit:      opts.Audit,
	}
	o.machine = trigger.New(opts.Config.ConfirmTimeout(), trigger.Callbacks{
		OnTriggered: o.onTriggered,
		OnResolved:  o.onResolved,
	})
	return o, nil
}

// Subscribe registers lifecycle hooks. Not safe to call after triggers start
// flowing; register subscribers during startup.
func (o *Orchestrator) Subscribe(h Hooks) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.hooks = append(o.hooks, h)
}

// TriggerVoice gates text on the configured emergency keywords and opens a
// confirmation window when one matches with sufficient confidence. Returns
// the matched keyword and whether a window opened.
func (o *Orchestrator) TriggerVoice(text string, confidence float64) (string, bool) {
	kw, ok := trigger.MatchKeyword(text, o.cfg.Keywords)
	if !ok {
		return "", false
	}
	if confidence < o.cfg.Trigger.MinConfidence {
		log.Printf("alert: voice trigger below confidence floor (%.2f < %.2f)", confidence, o.cfg.Trigger.MinConfidence)
		o.logEvent(models.EventRejected, "", fmt.Sprintf("voice confidence %.2f below floor", confidence))
		return kw, false
	}
	ev := trigger.Event{
		Kind:       trigger.KindVoice,
		Data:       fmt.Sprintf("keyword %q detected", kw),
		Confidence: confidence,
		OccurredAt: time.Now(),
	}
	return kw, o.fire(ev)
}

// TriggerGesture opens a confirmation window when gestureType is the
// emergency gesture with sufficient confidence.
func (o *Orchestrator) TriggerGesture(gestureType string, confidence float64) bool {
	ev, ok := trigger.GestureEvent(gestureType, confidence)
	if !ok {
		return false
	}
	if confidence < o.cfg.Trigger.MinConfidence {
		o.logEvent(models.EventRejected, "", fmt.Sprintf("gesture confidence %.2f below floor", confidence))
		return false
	}
	return o.fire(ev)
}

// TriggerManual opens a confirmation window for an operator-initiated alert.
func (o *Orchestrator) TriggerManual(reason string) bool {
	if reason == "" {
		reason = "manual trigger"
	}
	return o.fire(trigger.Event{
		Kind:       trigger.KindManual,
		Data:       reason,
		Confidence: 1,
		OccurredAt: time.Now(),
	})
}

func (o *Orchestrator) fire(ev trigger.Event) bool {
	if !o.machine.Trigger(ev) {
		o.logEvent(models.EventRejected, "", fmt.Sprintf("%s trigger rejected, window already open", ev.Kind))
		return false
	}
	return true
}

// Confirm resolves the open confirmation window as confirmed. No-op when
// idle.
func (o *Orchestrator) Confirm() { o.machine.Confirm() }

// Cancel resolves the open confirmation window as cancelled. No-op when
// idle.
func (o *Orchestrator) Cancel() { o.machine.Cancel() }

// onTriggered runs synchronously inside Machine.Trigger: record the pending
// alert before the confirmation window opens.
func (o *Orchestrator) onTriggered(ev trigger.Event) {
	a := models.Alert{
		ID:          uuid.NewString(),
		TriggerKind: string(ev.Kind),
		TriggerData: ev.Data,
		Confidence:  ev.Confidence,
		Status:      models.AlertPending,
		TriggeredAt: ev.OccurredAt,
	}

	o.mu.Lock()
	o.current = &a
	o.triggered++
	hooks := append([]Hooks(nil), o.hooks...)
	o.mu.Unlock()

	o.logEvent(models.EventTriggered, a.ID, fmt.Sprintf("%s: %s", a.TriggerKind, a.TriggerData))
	for _, h := range hooks {
		invokeHook("alert triggered", h.OnAlertTriggered, a)
	}
}

// onResolved runs on the machine's window goroutine with exactly one
// resolution per accepted trigger.
func (o *Orchestrator) onResolved(ev trigger.Event, res trigger.Resolution) {
	o.mu.Lock()
	a := o.current
	o.current = nil
	hooks := append([]Hooks(nil), o.hooks...)
	if res == trigger.ResolutionCancelled {
		o.cancelled++
	} else {
		o.confirmed++
	}
	o.mu.Unlock()

	if a == nil {
		log.Printf("alert: resolution %s with no alert in flight", res)
		return
	}
	a.ResolvedAt = time.Now()

	if res == trigger.ResolutionCancelled {
		o.finishCancelled(a, hooks)
		return
	}
	o.finishConfirmed(a, res, hooks)
}

func (o *Orchestrator) finishCancelled(a *models.Alert, hooks []Hooks) {
	a.Status = models.AlertCancelled
	if err := o.store.Append(a); err != nil {
		log.Printf("alert: record cancelled alert %s: %v", a.ID, err)
	}
	o.logEvent(models.EventCancelled, a.ID, "cancelled within confirmation window")
	log.Printf("alert: %s cancelled, no messages sent", a.ID)
	for _, h := range hooks {
		invokeHook("alert cancelled", h.OnAlertCancelled, *a)
	}
}

func (o *Orchestrator) finishConfirmed(a *models.Alert, res trigger.Resolution, hooks []Hooks) {
	ctx := context.Background()

	a.Status = models.AlertConfirmed
	a.Confirmed = true
	a.TimedOut = res == trigger.ResolutionTimedOut

	detail := "confirmed by user"
	if a.TimedOut {
		detail = "confirmed by timeout"
	}
	o.logEvent(models.EventConfirmed, a.ID, detail)

	loc := o.locate(ctx, a)
	a.Deliveries = o.notify(ctx, a, loc)

	if err := o.store.Append(a); err != nil {
		log.Printf("alert: record confirmed alert %s: %v", a.ID, err)
	}

	for _, h := range hooks {
		invokeHook("alert confirmed", h.OnAlertConfirmed, *a)
	}
	for _, h := range hooks {
		if h.OnMessagesSent != nil {
			deliveries := append([]models.Delivery(nil), a.Deliveries...)
			invokeHookDeliveries("messages sent", h.OnMessagesSent, *a, deliveries)
		}
	}
}

// locate resolves the device location best-effort. A dead provider chain
// never blocks dispatch.
func (o *Orchestrator) locate(ctx context.Context, a *models.Alert) *location.Location {
	if o.resolver == nil {
		return nil
	}
	loc := o.resolver.Resolve(ctx)
	if loc == nil {
		log.Printf("alert: %s dispatching without location", a.ID)
		return nil
	}
	a.HasLocation = true
	a.Latitude = loc.Latitude
	a.Longitude = loc.Longitude
	a.Address = loc.Address
	a.City = loc.City
	a.Country = loc.Country
	a.LocSource = loc.Source
	return loc
}

// notify renders the alert template and fans it out to every enabled
// contact.
func (o *Orchestrator) notify(ctx context.Context, a *models.Alert, loc *location.Location) []models.Delivery {
	enabled, err := o.directory.List(true)
	if err != nil {
		log.Printf("alert: %s list contacts: %v", a.ID, err)
		o.logEvent(models.EventSystem, a.ID, fmt.Sprintf("list contacts: %v", err))
		return nil
	}
	if len(enabled) == 0 {
		log.Printf("alert: %s confirmed but no contacts are enabled", a.ID)
		o.logEvent(models.EventSystem, a.ID, "no enabled contacts")
		return nil
	}

	tmpl, err := o.directory.GetTemplate(alertTemplateID)
	if err != nil {
		log.Printf("alert: %s load template: %v", a.ID, err)
		o.logEvent(models.EventSystem, a.ID, fmt.Sprintf("load template: %v", err))
		return nil
	}

	deliveries := o.dispatcher.Dispatch(ctx, tmpl, o.templateVars(a, loc), enabled)

	ok := 0
	for i := range deliveries {
		deliveries[i].AlertID = a.ID
		if deliveries[i].Success {
			ok++
		}
	}
	o.logEvent(models.EventDispatch, a.ID, fmt.Sprintf("%d/%d contacts notified", ok, len(deliveries)))
	return deliveries
}

func (o *Orchestrator) templateVars(a *models.Alert, loc *location.Location) map[string]string {
	vars := map[string]string{
		"timestamp":    a.TriggeredAt.Format("2006-01-02 15:04:05"),
		"trigger_type": a.TriggerKind,
		"device":       o.cfg.Device,
	}
	if loc != nil {
		vars["location"] = loc.Summary()
		vars["coordinates"] = loc.Coordinates()
	}
	return vars
}

// Status is a point-in-time view of the pipeline for the status endpoint.
type Status struct {
	Machine           trigger.Status `json:"machine"`
	CurrentAlertID    string         `json:"current_alert_id,omitempty"`
	Triggered         uint64         `json:"triggered"`
	Confirmed         uint64         `json:"confirmed"`
	Cancelled         uint64         `json:"cancelled"`
	ContactsTotal     int64          `json:"contacts_total"`
	ContactsEnabled   int64          `json:"contacts_enabled"`
	LocationAvailable bool           `json:"location_available"`
}

// GetStatus snapshots the pipeline state.
func (o *Orchestrator) GetStatus() Status {
	o.mu.Lock()
	s := Status{
		Triggered: o.triggered,
		Confirmed: o.confirmed,
		Cancelled: o.cancelled,
	}
	if o.current != nil {
		s.CurrentAlertID = o.current.ID
	}
	o.mu.Unlock()

	s.Machine = o.machine.Status()
	if total, enabled, err := o.directory.Counts(); err == nil {
		s.ContactsTotal = total
		s.ContactsEnabled = enabled
	}
	if o.resolver != nil {
		s.LocationAvailable = o.resolver.Cached() != nil
	}
	return s
}

// GetHistory returns recorded alerts, newest first. limit <= 0 means no
// limit.
func (o *Orchestrator) GetHistory(limit int) ([]models.Alert, error) {
	return o.store.History(limit)
}

// GetAlert returns one recorded alert by ID.
func (o *Orchestrator) GetAlert(id string) (*models.Alert, error) {
	return o.store.Get(id)
}

func (o *Orchestrator) logEvent(kind, alertID, detail string) {
	if o.audit == nil {
		return
	}
	o.audit.Log(kind, alertID, detail)
}

func invokeHook(name string, fn func(models.Alert), a models.Alert) {
	if fn == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("alert: %s hook panicked: %v", name, r)
		}
	}()
	fn(a)
}

func invokeHookDeliveries(name string, fn func(models.Alert, []models.Delivery), a models.Alert, d []models.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("alert: %s hook panicked: %v", name, r)
		}
	}()
	fn(a, d)
}
