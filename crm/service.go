package crm

import (
	"time"

	"renolink/models"
)

// LeadView is what every read and every mutating call returns: the lead
// plus the SLA badge and streak, both derived fresh so callers can update
// their board without a second round trip.
type LeadView struct {
	models.Lead
	SLA Badge `json:"sla"`
}

// BoardColumn is one kanban column: a status plus its leads.
type BoardColumn struct {
	Status models.LeadStatus `json:"status"`
	Leads  []LeadView        `json:"leads"`
}

// Service orchestrates the engine: it loads the current lead and version,
// runs the transition validator and SLA clock, persists through the store's
// optimistic check and appends the audit entry. All operations are scoped to
// the caller's supplier.
type Service struct {
	store    Store
	router   *AssignmentRouter
	quotes   QuoteDrafter
	policies PolicySet

	// now is swapped in tests; everything time-sensitive goes through it.
	now func() time.Time
}

func NewService(store Store, quotes QuoteDrafter, policies PolicySet) *Service {
	now := time.Now
	return &Service{
		store:    store,
		router:   NewAssignmentRouter(store, now),
		quotes:   quotes,
		policies: policies,
		now:      now,
	}
}

// WithClock swaps the time source; tests use it for deterministic SLA math.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	s.router.now = now
	return s
}

func (s *Service) view(lead *models.Lead) LeadView {
	return LeadView{Lead: *lead, SLA: Evaluate(lead, s.policies, s.now())}
}

// load fetches the lead and enforces supplier scoping: a lead owned by
// another supplier is indistinguishable from a missing one.
func (s *Service) load(supplierID, id string) (*models.Lead, error) {
	lead, err := s.store.Get(id)
	if err != nil {
		return nil, err
	}
	if lead.SupplierID != supplierID {
		return nil, ErrNotFound
	}
	return lead, nil
}

// Create registers a new lead with status=new, the clock anchored at now and
// version=1. An assignee may be routed in at creation time.
func (s *Service) Create(lead *models.Lead) (LeadView, error) {
	now := s.now()
	lead.Status = models.StatusNew
	lead.NoAnswerStreak = 0
	lead.StatusEnteredAt = now
	lead.SnoozeUntil = nil
	lead.Version = 1
	if lead.Priority == "" {
		lead.Priority = models.PriorityMedium
	}
	if err := s.store.Create(lead); err != nil {
		return LeadView{}, err
	}
	return s.view(lead), nil
}

func (s *Service) Get(supplierID, id string) (LeadView, error) {
	lead, err := s.load(supplierID, id)
	if err != nil {
		return LeadView{}, err
	}
	return s.view(lead), nil
}

func (s *Service) List(supplierID string, f Filter) ([]LeadView, error) {
	leads, err := s.store.List(supplierID, f)
	if err != nil {
		return nil, err
	}
	views := make([]LeadView, len(leads))
	for i := range leads {
		views[i] = s.view(&leads[i])
	}
	return views, nil
}

// Board returns every lead grouped per status column, the query behind the
// kanban screen.
func (s *Service) Board(supplierID string) ([]BoardColumn, error) {
	views, err := s.List(supplierID, Filter{SortAsc: true})
	if err != nil {
		return nil, err
	}
	byStatus := make(map[models.LeadStatus][]LeadView)
	for _, v := range views {
		byStatus[v.Status] = append(byStatus[v.Status], v)
	}
	columns := make([]BoardColumn, 0, len(models.AllStatuses))
	for _, status := range models.AllStatuses {
		columns = append(columns, BoardColumn{Status: status, Leads: byStatus[status]})
	}
	return columns, nil
}

// ChangeStatus moves a lead to the requested status under the optimistic
// version check. The escalation rule may override the result to
// no_answer_x5. A status change restarts the SLA clock and clears any
// pending snooze.
func (s *Service) ChangeStatus(supplierID, id string, requested models.LeadStatus, expectedVersion int, actor string) (LeadView, error) {
	lead, err := s.load(supplierID, id)
	if err != nil {
		return LeadView{}, err
	}
	if err := Validate(lead.Status, requested); err != nil {
		return LeadView{}, err
	}

	prev := lead.Status
	now := s.now()
	lead.Status, lead.NoAnswerStreak = Escalate(prev, requested, lead.NoAnswerStreak)
	lead.StatusEnteredAt = now
	lead.SnoozeUntil = nil

	entry := &models.AuditEntry{
		LeadID:     lead.ID,
		Actor:      actor,
		ChangeKind: models.ChangeStatus,
		OldValue:   string(prev),
		NewValue:   string(lead.Status),
		At:         now,
	}
	if err := s.store.Save(lead, expectedVersion, entry); err != nil {
		return LeadView{}, err
	}
	return s.view(lead), nil
}

// Snooze pauses the SLA clock until now+d. Status and status_entered_at are
// untouched; terminal leads cannot be re-scheduled.
func (s *Service) Snooze(supplierID, id string, d time.Duration, expectedVersion int, actor string) (LeadView, error) {
	lead, err := s.load(supplierID, id)
	if err != nil {
		return LeadView{}, err
	}
	if lead.Status.IsTerminal() {
		return LeadView{}, ErrLeadClosed
	}

	now := s.now()
	oldValue := ""
	if lead.SnoozeUntil != nil {
		oldValue = lead.SnoozeUntil.Format(time.RFC3339)
	}
	until := now.Add(d)
	lead.SnoozeUntil = &until

	entry := &models.AuditEntry{
		LeadID:     lead.ID,
		Actor:      actor,
		ChangeKind: models.ChangeSnooze,
		OldValue:   oldValue,
		NewValue:   until.Format(time.RFC3339),
		At:         now,
	}
	if err := s.store.Save(lead, expectedVersion, entry); err != nil {
		return LeadView{}, err
	}
	return s.view(lead), nil
}

// Assign delegates to the assignment router. Unassignment is a nil assignee.
func (s *Service) Assign(supplierID, id string, assignee *string, expectedVersion int, actor string) (LeadView, error) {
	lead, err := s.load(supplierID, id)
	if err != nil {
		return LeadView{}, err
	}
	if err := s.router.Assign(lead, assignee, expectedVersion, actor); err != nil {
		return LeadView{}, err
	}
	return s.view(lead), nil
}

// AddNote appends an annotation. Notes are allowed on terminal leads and
// need no expected version; the store bumps the lead version together with
// the denormalized last_activity fields in one atomic write.
func (s *Service) AddNote(supplierID, id, text, actor string) (*models.LeadNote, error) {
	lead, err := s.load(supplierID, id)
	if err != nil {
		return nil, err
	}
	note := &models.LeadNote{
		LeadID:    lead.ID,
		Author:    actor,
		Text:      text,
		CreatedAt: s.now(),
	}
	if err := s.store.AppendNote(note); err != nil {
		return nil, err
	}
	return note, nil
}

func (s *Service) Notes(supplierID, id string) ([]models.LeadNote, error) {
	if _, err := s.load(supplierID, id); err != nil {
		return nil, err
	}
	return s.store.Notes(id)
}

func (s *Service) AuditTrail(supplierID, id string) ([]models.AuditEntry, error) {
	if _, err := s.load(supplierID, id); err != nil {
		return nil, err
	}
	return s.store.AuditTrail(id)
}

// CreateQuoteDraft asks the quote-drafting collaborator for a draft and
// forwards the resulting identifier. There is no retry and no lead mutation
// regardless of outcome.
func (s *Service) CreateQuoteDraft(supplierID, id, actor string) (string, error) {
	lead, err := s.load(supplierID, id)
	if err != nil {
		return "", err
	}
	quoteID, err := s.quotes.CreateDraft(lead)
	if err != nil {
		return "", &DownstreamError{Collaborator: "quote-drafting", Err: err}
	}
	return quoteID, nil
}

// Delete hard-deletes a lead after detaching order references (best-effort
// detach policy). Audit entries are kept.
func (s *Service) Delete(supplierID, id, actor string) error {
	if _, err := s.load(supplierID, id); err != nil {
		return err
	}
	return s.store.Delete(id)
}
