package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/arenahub/playground-client/internal/audit"
	"github.com/arenahub/playground-client/internal/broker"
	"github.com/arenahub/playground-client/internal/config"
	"github.com/arenahub/playground-client/internal/model"
)

var (
	ErrNoDraft      = errors.New("no booking draft")
	ErrInvalidDraft = errors.New("booking draft is missing venue or academy profile")
)

// Abandon reasons
const (
	ReasonForeignVenue = "foreign_venue"
	ReasonExpired      = "expired"
	ReasonUser         = "user"
)

// Submitter creates the booking on the backend.
type Submitter interface {
	CreateBooking(ctx context.Context, draft *model.BookingDraft) (*model.BookingConfirmation, error)
}

type FlowState struct {
	State        model.DraftState
	Draft        *model.BookingDraft
	ResumedVia   model.AuthMethod
	Confirmation *model.BookingConfirmation
}

// Flow drives one booking draft through a forced authentication detour:
// collecting, awaiting_auth, resuming, then complete or abandoned.
type Flow struct {
	drafts    *DraftStore
	submitter Submitter
	now       func() time.Time

	mu        sync.RWMutex
	state     FlowState
	completed map[string]*model.BookingConfirmation

	flight singleflight.Group
	events *broker.Broker[FlowState]
}

func NewFlow(drafts *DraftStore, submitter Submitter) *Flow {
	return &Flow{
		drafts:    drafts,
		submitter: submitter,
		now:       time.Now,
		state:     FlowState{State: model.DraftStateCollecting},
		completed: make(map[string]*model.BookingConfirmation),
		events:    broker.New[FlowState]("booking"),
	}
}

func (f *Flow) State() FlowState {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return copyState(f.state)
}

func (f *Flow) Subscribe(fn func(FlowState)) func() {
	return f.events.Subscribe(fn)
}

func (f *Flow) transition(next FlowState) {
	f.mu.Lock()
	f.state = next
	snapshot := copyState(next)
	f.mu.Unlock()

	f.events.Publish(snapshot)
}

func copyState(s FlowState) FlowState {
	out := s
	if s.Draft != nil {
		d := *s.Draft
		d.Players = append([]string(nil), s.Draft.Players...)
		out.Draft = &d
	}
	if s.Confirmation != nil {
		c := *s.Confirmation
		out.Confirmation = &c
	}
	return out
}

// Collect records the draft as the user moves through the booking steps.
func (f *Flow) Collect(draft model.BookingDraft) (*model.BookingDraft, error) {
	if draft.VenueID == "" || draft.AcademyProfileID == "" {
		return nil, ErrInvalidDraft
	}
	if draft.DraftID == "" {
		draft.DraftID = uuid.NewString()
	}
	f.transition(FlowState{State: model.DraftStateCollecting, Draft: &draft})
	return &draft, nil
}

// RequireAuth persists the draft, step index included, and only then moves to
// awaiting_auth. The caller must not navigate to authentication unless this
// returns nil.
func (f *Flow) RequireAuth(ctx context.Context, draft model.BookingDraft) error {
	if draft.VenueID == "" || draft.AcademyProfileID == "" {
		return ErrInvalidDraft
	}
	if draft.DraftID == "" {
		draft.DraftID = uuid.NewString()
	}
	draft.SavedAt = f.now().UTC()

	if err := f.drafts.Save(ctx, &draft); err != nil {
		return err
	}

	log.Info().
		Str("draftId", draft.DraftID).
		Str("venueId", draft.VenueID).
		Int("step", draft.CurrentStep).
		Msg("booking draft parked for authentication")
	f.transition(FlowState{State: model.DraftStateAwaitingAuth, Draft: &draft})
	return nil
}

// Resume reads the parked draft back after authentication. A draft for a
// different venue, or one that has gone stale, is discarded and nil is
// returned.
func (f *Flow) Resume(ctx context.Context, currentVenueID string, via model.AuthMethod) (*model.BookingDraft, error) {
	draft, err := f.drafts.Load(ctx)
	if err != nil {
		return nil, err
	}
	if draft == nil {
		return nil, ErrNoDraft
	}

	switch {
	case draft.VenueID != currentVenueID:
		return nil, f.discard(ctx, draft, ReasonForeignVenue)
	case !draft.SavedAt.IsZero() && f.now().Sub(draft.SavedAt) > config.BookingDraftMaxAge:
		return nil, f.discard(ctx, draft, ReasonExpired)
	}

	log.Info().
		Str("draftId", draft.DraftID).
		Str("venueId", draft.VenueID).
		Int("step", draft.CurrentStep).
		Str("via", string(via)).
		Msg("resuming booking draft")
	f.transition(FlowState{State: model.DraftStateResuming, Draft: draft, ResumedVia: via})
	return draft, nil
}

func (f *Flow) discard(ctx context.Context, draft *model.BookingDraft, reason string) error {
	if err := f.drafts.Clear(ctx); err != nil {
		return err
	}
	audit.Log(audit.Event{
		Type:   audit.EventBookingDraftAbandoned,
		Reason: reason,
		Details: map[string]interface{}{
			"draftId": draft.DraftID,
			"venueId": draft.VenueID,
		},
	})
	f.transition(FlowState{State: model.DraftStateAbandoned, Draft: draft})
	return nil
}

// Submit creates the booking for draft. Duplicate calls for the same draft id,
// concurrent or sequential, share a single backend call and its result.
func (f *Flow) Submit(ctx context.Context, draft model.BookingDraft) (*model.BookingConfirmation, error) {
	if draft.DraftID == "" {
		return nil, fmt.Errorf("submit booking: %w", ErrInvalidDraft)
	}
	if done := f.completedFor(draft.DraftID); done != nil {
		log.Debug().Str("draftId", draft.DraftID).Msg("booking already submitted")
		return done, nil
	}

	v, err, _ := f.flight.Do(draft.DraftID, func() (interface{}, error) {
		if done := f.completedFor(draft.DraftID); done != nil {
			return done, nil
		}
		return f.submit(context.WithoutCancel(ctx), &draft)
	})
	if err != nil {
		return nil, err
	}
	confirmation := *v.(*model.BookingConfirmation)
	return &confirmation, nil
}

func (f *Flow) submit(ctx context.Context, draft *model.BookingDraft) (*model.BookingConfirmation, error) {
	confirmation, err := f.submitter.CreateBooking(ctx, draft)
	if err != nil {
		return nil, err
	}
	confirmation.DraftID = draft.DraftID

	f.mu.Lock()
	f.completed[draft.DraftID] = confirmation
	f.mu.Unlock()

	if err := f.drafts.Clear(ctx); err != nil {
		log.Warn().Err(err).Str("draftId", draft.DraftID).Msg("failed to clear submitted booking draft")
	}

	audit.Log(audit.Event{
		Type: audit.EventBookingSubmitted,
		Details: map[string]interface{}{
			"draftId":   draft.DraftID,
			"bookingId": confirmation.BookingID,
		},
	})
	f.transition(FlowState{State: model.DraftStateComplete, Draft: draft, Confirmation: confirmation})
	return confirmation, nil
}

func (f *Flow) completedFor(draftID string) *model.BookingConfirmation {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if c, ok := f.completed[draftID]; ok {
		copied := *c
		return &copied
	}
	return nil
}

// Abandon drops the current draft at the user's request.
func (f *Flow) Abandon(ctx context.Context) error {
	current := f.State().Draft
	if err := f.drafts.Clear(ctx); err != nil {
		return err
	}

	event := audit.Event{Type: audit.EventBookingDraftAbandoned, Reason: ReasonUser}
	if current != nil {
		event.Details = map[string]interface{}{"draftId": current.DraftID, "venueId": current.VenueID}
	}
	audit.Log(event)
	f.transition(FlowState{State: model.DraftStateAbandoned, Draft: current})
	return nil
}
