package crm

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renolink/models"
)

// memStore is an in-memory Store with the same CAS semantics as the
// Postgres-backed one.
type memStore struct {
	leads  map[string]*models.Lead
	notes  []models.LeadNote
	audit  []models.AuditEntry
	orders []*models.Order
}

func newMemStore() *memStore {
	return &memStore{leads: make(map[string]*models.Lead)}
}

func (s *memStore) Create(lead *models.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.NewString()
	}
	stored := *lead
	s.leads[lead.ID] = &stored
	return nil
}

func (s *memStore) Get(id string) (*models.Lead, error) {
	stored, ok := s.leads[id]
	if !ok {
		return nil, ErrNotFound
	}
	copied := *stored
	return &copied, nil
}

func (s *memStore) List(supplierID string, f Filter) ([]models.Lead, error) {
	var out []models.Lead
	for _, stored := range s.leads {
		if stored.SupplierID != supplierID {
			continue
		}
		if len(f.Statuses) > 0 {
			found := false
			for _, status := range f.Statuses {
				if stored.Status == status {
					found = true
				}
			}
			if !found {
				continue
			}
		}
		if f.Source != "" && stored.SourceKey != f.Source {
			continue
		}
		if f.Query != "" {
			q := strings.ToLower(f.Query)
			if !strings.Contains(strings.ToLower(stored.Name), q) &&
				!strings.Contains(strings.ToLower(stored.ContactPhone), q) &&
				!strings.Contains(strings.ToLower(stored.ContactEmail), q) {
				continue
			}
		}
		out = append(out, *stored)
	}
	return out, nil
}

func (s *memStore) Save(lead *models.Lead, expectedVersion int, entry *models.AuditEntry) error {
	stored, ok := s.leads[lead.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != expectedVersion {
		return ErrVersionConflict
	}
	stored.Status = lead.Status
	stored.NoAnswerStreak = lead.NoAnswerStreak
	stored.AssignedTo = lead.AssignedTo
	stored.StatusEnteredAt = lead.StatusEnteredAt
	stored.SnoozeUntil = lead.SnoozeUntil
	stored.Version = expectedVersion + 1
	lead.Version = stored.Version
	if entry != nil {
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		s.audit = append(s.audit, *entry)
	}
	return nil
}

func (s *memStore) AppendNote(note *models.LeadNote) error {
	stored, ok := s.leads[note.LeadID]
	if !ok {
		return ErrNotFound
	}
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	s.notes = append(s.notes, *note)
	stored.LastActivityNote = note.Text
	created := note.CreatedAt
	stored.LastActivityDate = &created
	stored.Version++
	return nil
}

func (s *memStore) Notes(leadID string) ([]models.LeadNote, error) {
	var out []models.LeadNote
	for _, n := range s.notes {
		if n.LeadID == leadID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *memStore) AuditTrail(leadID string) ([]models.AuditEntry, error) {
	var out []models.AuditEntry
	for _, e := range s.audit {
		if e.LeadID == leadID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memStore) Delete(id string) error {
	if _, ok := s.leads[id]; !ok {
		return ErrNotFound
	}
	for _, o := range s.orders {
		if o.LeadID != nil && *o.LeadID == id {
			o.LeadID = nil
		}
	}
	var kept []models.LeadNote
	for _, n := range s.notes {
		if n.LeadID != id {
			kept = append(kept, n)
		}
	}
	s.notes = kept
	delete(s.leads, id)
	return nil
}

type stubDrafter struct {
	quoteID string
	err     error
	calls   int
}

func (d *stubDrafter) CreateDraft(lead *models.Lead) (string, error) {
	d.calls++
	return d.quoteID, d.err
}

type fixture struct {
	store   *memStore
	drafter *stubDrafter
	service *Service
	now     time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:   newMemStore(),
		drafter: &stubDrafter{quoteID: "quote-99"},
		now:     time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
	f.service = NewService(f.store, f.drafter, PolicySet{
		models.StatusNew:      {Max: 2 * time.Hour, Warning: 90 * time.Minute},
		models.StatusNoAnswer: {Max: 24 * time.Hour, Warning: 18 * time.Hour},
		models.StatusFollowup: {Max: 8 * time.Hour, Warning: 6 * time.Hour},
	}).WithClock(func() time.Time { return f.now })
	return f
}

func (f *fixture) advance(d time.Duration) {
	f.now = f.now.Add(d)
}

func (f *fixture) createLead(t *testing.T) LeadView {
	t.Helper()
	view, err := f.service.Create(&models.Lead{
		SupplierID:   "sup-1",
		Name:         "Dana Peretz",
		ContactPhone: "+972501234567",
		ContactEmail: "dana@example.com",
		SourceKey:    "site_form",
	})
	require.NoError(t, err)
	return view
}

func TestCreateLeadDefaults(t *testing.T) {
	f := newFixture(t)
	view := f.createLead(t)

	assert.NotEmpty(t, view.ID)
	assert.Equal(t, models.StatusNew, view.Status)
	assert.Equal(t, 0, view.NoAnswerStreak)
	assert.Equal(t, 1, view.Version)
	assert.Equal(t, models.PriorityMedium, view.Priority)
	assert.True(t, view.StatusEnteredAt.Equal(f.now))
	assert.Equal(t, SLAOk, view.SLA.State)
}

func TestEscalationAfterFiveNoAnswers(t *testing.T) {
	f := newFixture(t)
	view := f.createLead(t)

	for i := 1; i <= 5; i++ {
		updated, err := f.service.ChangeStatus("sup-1", view.ID, models.StatusNoAnswer, i, "user-1")
		require.NoError(t, err, "attempt %d", i)
		view = updated
	}

	assert.Equal(t, models.StatusNoAnswerX5, view.Status)
	assert.Equal(t, 0, view.NoAnswerStreak)
	assert.Equal(t, 6, view.Version)

	trail, err := f.service.AuditTrail("sup-1", view.ID)
	require.NoError(t, err)
	require.Len(t, trail, 5)
	last := trail[len(trail)-1]
	assert.Equal(t, models.ChangeStatus, last.ChangeKind)
	assert.Equal(t, string(models.StatusNoAnswer), last.OldValue)
	assert.Equal(t, string(models.StatusNoAnswerX5), last.NewValue)
}

func TestStreakInvariantAcrossTransitions(t *testing.T) {
	f := newFixture(t)
	view := f.createLead(t)

	view, err := f.service.ChangeStatus("sup-1", view.ID, models.StatusNoAnswer, 1, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 1, view.NoAnswerStreak)

	view, err = f.service.ChangeStatus("sup-1", view.ID, models.StatusFollowup, 2, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 0, view.NoAnswerStreak, "leaving no_answer resets the streak")
}

func TestStaleVersionNeverPersists(t *testing.T) {
	f := newFixture(t)
	view := f.createLead(t)

	_, err := f.service.ChangeStatus("sup-1", view.ID, models.StatusFollowup, 1, "user-1")
	require.NoError(t, err)

	_, err = f.service.ChangeStatus("sup-1", view.ID, models.StatusNoAnswer, 1, "user-2")
	require.ErrorIs(t, err, ErrVersionConflict)

	stored, err := f.service.Get("sup-1", view.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFollowup, stored.Status)
	assert.Equal(t, 2, stored.Version)
}

func TestAssignThenStaleStatusChangeConflicts(t *testing.T) {
	f := newFixture(t)
	view := f.createLead(t)

	// Walk the lead to version 3.
	_, err := f.service.ChangeStatus("sup-1", view.ID, models.StatusNoAnswer, 1, "user-1")
	require.NoError(t, err)
	_, err = f.service.ChangeStatus("sup-1", view.ID, models.StatusFollowup, 2, "user-1")
	require.NoError(t, err)

	// Caller A assigns at version 3 and wins.
	assigned, err := f.service.Assign("sup-1", view.ID, strPtr("u1"), 3, "caller-a")
	require.NoError(t, err)
	assert.Equal(t, 4, assigned.Version)
	require.NotNil(t, assigned.AssignedTo)
	assert.Equal(t, "u1", *assigned.AssignedTo)

	// Caller B still holds version 3 and loses.
	_, err = f.service.ChangeStatus("sup-1", view.ID, models.StatusNoAnswer, 3, "caller-b")
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestAssignDoesNotTouchSLAClock(t *testing.T) {
	f := newFixture(t)
	view := f.createLead(t)
	entered := view.StatusEnteredAt

	f.advance(1 * time.Hour)
	assigned, err := f.service.Assign("sup-1", view.ID, strPtr("u1"), 1, "user-1")
	require.NoError(t, err)
	assert.True(t, assigned.StatusEnteredAt.Equal(entered))

	trail, err := f.service.AuditTrail("sup-1", view.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, models.ChangeAssignment, trail[0].ChangeKind)
	assert.Equal(t, "", trail[0].OldValue)
	assert.Equal(t, "u1", trail[0].NewValue)
}

func TestUnassignClearsAssignee(t *testing.T) {
	f := newFixture(t)
	view := f.createLead(t)

	assigned, err := f.service.Assign("sup-1", view.ID, strPtr("u1"), 1, "user-1")
	require.NoError(t, err)

	cleared, err := f.service.Assign("sup-1", view.ID, nil, assigned.Version, "user-1")
	require.NoError(t, err)
	assert.Nil(t, cleared.AssignedTo)
}

func TestAssignTerminalLeadRejected(t *testing.T) {
	f := newFixture(t)
	view := f.createLead(t)

	_, err := f.service.ChangeStatus("sup-1", view.ID, models.StatusNotRelevant, 1, "user-1")
	require.NoError(t, err)

	_, err = f.service.Assign("sup-1", view.ID, strPtr("u1"), 2, "user-1")
	assert.ErrorIs(t, err, ErrLeadClosed)
}

func TestChangeStatusFromTerminalRejected(t *testing.T) {
	f := newFixture(t)

	for _, terminal := range []models.LeadStatus{
		models.StatusNotRelevant,
		models.StatusError,
		models.StatusDeniesContact,
	} {
		view := f.createLead(t)
		_, err := f.service.ChangeStatus("sup-1", view.ID, terminal, 1, "user-1")
		require.NoError(t, err)

		_, err = f.service.ChangeStatus("sup-1", view.ID, models.StatusFollowup, 2, "user-1")
		var invalid *InvalidTransitionError
		require.ErrorAs(t, err, &invalid, "terminal %s must reject transitions", terminal)
		assert.Empty(t, invalid.Allowed)
	}
}

func TestDirectNoAnswerX5Rejected(t *testing.T) {
	f := newFixture(t)
	view := f.createLead(t)

	_, err := f.service.ChangeStatus("sup-1", view.ID, models.StatusNoAnswerX5, 1, "user-1")
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
}

func TestInvalidTransitionSurfacesAllowedSet(t *testing.T) {
	f := newFixture(t)
	view := f.createLead(t)

	_, err := f.service.ChangeStatus("sup-1", view.ID, models.StatusProjectInProgress, 1, "user-1")
	require.NoError(t, err)

	_, err = f.service.ChangeStatus("sup-1", view.ID, models.StatusFollowup, 2, "user-1")
	var invalid *InvalidTransitionError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, []models.LeadStatus{models.StatusProjectCompleted}, invalid.Allowed)
}

func TestSnoozePausesTheClock(t *testing.T) {
	f := newFixture(t)
	view := f.createLead(t)

	_, err := f.service.ChangeStatus("sup-1", view.ID, models.StatusFollowup, 1, "user-1")
	require.NoError(t, err)

	// 10h of dwell blows through the 8h followup commitment.
	f.advance(10 * time.Hour)
	breached, err := f.service.Get("sup-1", view.ID)
	require.NoError(t, err)
	assert.Equal(t, SLABreached, breached.SLA.State)

	snoozed, err := f.service.Snooze("sup-1", view.ID, 2*time.Hour, 2, "user-1")
	require.NoError(t, err)
	assert.Equal(t, SLAOk, snoozed.SLA.State)
	require.NotNil(t, snoozed.SnoozeUntil)
	assert.True(t, snoozed.SnoozeUntil.Equal(f.now.Add(2*time.Hour)))

	// Status and clock anchor stay put.
	assert.Equal(t, models.StatusFollowup, snoozed.Status)
	assert.True(t, snoozed.StatusEnteredAt.Equal(breached.StatusEnteredAt))

	trail, err := f.service.AuditTrail("sup-1", view.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, models.ChangeSnooze, trail[1].ChangeKind)
}

func TestSnoozeTerminalLeadRejected(t *testing.T) {
	f := newFixture(t)
	view := f.createLead(t)

	_, err := f.service.ChangeStatus("sup-1", view.ID, models.StatusDeniesContact, 1, "user-1")
	require.NoError(t, err)

	_, err = f.service.Snooze("sup-1", view.ID, 2*time.Hour, 2, "user-1")
	assert.ErrorIs(t, err, ErrLeadClosed)
}

func TestChangeStatusClearsSnoozeAndRestartsClock(t *testing.T) {
	f := newFixture(t)
	view := f.createLead(t)

	_, err := f.service.Snooze("sup-1", view.ID, 4*time.Hour, 1, "user-1")
	require.NoError(t, err)

	f.advance(1 * time.Hour)
	moved, err := f.service.ChangeStatus("sup-1", view.ID, models.StatusFollowup, 2, "user-1")
	require.NoError(t, err)

	assert.Nil(t, moved.SnoozeUntil)
	assert.True(t, moved.StatusEnteredAt.Equal(f.now))
}

func TestAddNoteUpdatesDenormalizedFields(t *testing.T) {
	f := newFixture(t)
	view := f.createLead(t)

	note, err := f.service.AddNote("sup-1", view.ID, "left a voicemail", "user-1")
	require.NoError(t, err)
	assert.NotEmpty(t, note.ID)
	assert.Equal(t, "user-1", note.Author)

	stored, err := f.service.Get("sup-1", view.ID)
	require.NoError(t, err)
	assert.Equal(t, "left a voicemail", stored.LastActivityNote)
	require.NotNil(t, stored.LastActivityDate)
	assert.True(t, stored.LastActivityDate.Equal(f.now))
	assert.Equal(t, 2, stored.Version)
}

func TestAddNoteAllowedOnTerminalLead(t *testing.T) {
	f := newFixture(t)
	view := f.createLead(t)

	_, err := f.service.ChangeStatus("sup-1", view.ID, models.StatusNotRelevant, 1, "user-1")
	require.NoError(t, err)

	_, err = f.service.AddNote("sup-1", view.ID, "customer asked us not to call back", "user-1")
	assert.NoError(t, err)
}

func TestSupplierScopingHidesForeignLeads(t *testing.T) {
	f := newFixture(t)
	view := f.createLead(t)

	_, err := f.service.Get("sup-2", view.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = f.service.ChangeStatus("sup-2", view.ID, models.StatusFollowup, 1, "intruder")
	assert.ErrorIs(t, err, ErrNotFound)

	err = f.service.Delete("sup-2", view.ID, "intruder")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateQuoteDraftForwardsID(t *testing.T) {
	f := newFixture(t)
	view := f.createLead(t)

	quoteID, err := f.service.CreateQuoteDraft("sup-1", view.ID, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "quote-99", quoteID)
	assert.Equal(t, 1, f.drafter.calls)
}

func TestCreateQuoteDraftFailureLeavesLeadUntouched(t *testing.T) {
	f := newFixture(t)
	view := f.createLead(t)
	f.drafter.err = fmt.Errorf("drafting service unavailable")

	_, err := f.service.CreateQuoteDraft("sup-1", view.ID, "user-1")
	var downstream *DownstreamError
	require.ErrorAs(t, err, &downstream)
	assert.Equal(t, "quote-drafting", downstream.Collaborator)

	stored, err := f.service.Get("sup-1", view.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Version)
}

func TestDeleteDetachesOrderReferences(t *testing.T) {
	f := newFixture(t)
	view := f.createLead(t)

	order := &models.Order{ID: "order-1", SupplierID: "sup-1", LeadID: strPtr(view.ID)}
	f.store.orders = append(f.store.orders, order)

	require.NoError(t, f.service.Delete("sup-1", view.ID, "user-1"))

	_, err := f.service.Get("sup-1", view.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Nil(t, order.LeadID, "order reference must be detached, not orphaned")
}

func TestBoardGroupsLeadsPerStatus(t *testing.T) {
	f := newFixture(t)
	first := f.createLead(t)
	second := f.createLead(t)

	_, err := f.service.ChangeStatus("sup-1", second.ID, models.StatusFollowup, 1, "user-1")
	require.NoError(t, err)

	columns, err := f.service.Board("sup-1")
	require.NoError(t, err)
	require.Len(t, columns, len(models.AllStatuses))

	byStatus := make(map[models.LeadStatus]BoardColumn)
	for _, col := range columns {
		byStatus[col.Status] = col
	}
	require.Len(t, byStatus[models.StatusNew].Leads, 1)
	assert.Equal(t, first.ID, byStatus[models.StatusNew].Leads[0].ID)
	require.Len(t, byStatus[models.StatusFollowup].Leads, 1)
	assert.Empty(t, byStatus[models.StatusNoAnswer].Leads)
}

func TestListFilters(t *testing.T) {
	f := newFixture(t)
	view := f.createLead(t)

	_, err := f.service.Create(&models.Lead{
		SupplierID: "sup-1",
		Name:       "Yossi Cohen",
		SourceKey:  "phone_call",
	})
	require.NoError(t, err)

	bySource, err := f.service.List("sup-1", Filter{Source: "site_form"})
	require.NoError(t, err)
	require.Len(t, bySource, 1)
	assert.Equal(t, view.ID, bySource[0].ID)

	byQuery, err := f.service.List("sup-1", Filter{Query: "yossi"})
	require.NoError(t, err)
	require.Len(t, byQuery, 1)
	assert.Equal(t, "Yossi Cohen", byQuery[0].Name)

	all, err := f.service.List("sup-1", Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func strPtr(s string) *string { return &s }
