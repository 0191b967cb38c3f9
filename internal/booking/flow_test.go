package booking

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arenahub/playground-client/internal/database"
	"github.com/arenahub/playground-client/internal/model"
	"github.com/arenahub/playground-client/internal/session"
	"github.com/arenahub/playground-client/internal/storage"
)

type countingSubmitter struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (s *countingSubmitter) CreateBooking(_ context.Context, draft *model.BookingDraft) (*model.BookingConfirmation, error) {
	s.calls.Add(1)
	time.Sleep(s.delay)
	if s.err != nil {
		return nil, s.err
	}
	return &model.BookingConfirmation{BookingID: "booking-" + draft.VenueID, Status: "pending"}, nil
}

func newKV(t *testing.T) *storage.KeyValueStore {
	t.Helper()
	db, err := database.Connect(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	backend, err := storage.NewSQLBackend(context.Background(), db.DB, storage.NamespaceState)
	require.NoError(t, err)
	return storage.NewKeyValueStore(context.Background(), backend, nil)
}

func draftFor(venueID string, step int) model.BookingDraft {
	return model.BookingDraft{
		VenueID:            venueID,
		AcademyProfileID:   "profile-1",
		SelectedDurationID: "60",
		BookingDate:        "2026-11-02",
		Players:            []string{"p1", "p2"},
		SelectedSlot:       "18:00",
		CurrentStep:        step,
	}
}

func TestResumeAfterLogin(t *testing.T) {
	ctx := context.Background()
	kv := newKV(t)

	parked := NewFlow(NewDraftStore(kv), &countingSubmitter{})
	var states []model.DraftState
	parked.Subscribe(func(s FlowState) { states = append(states, s.State) })

	require.NoError(t, parked.RequireAuth(ctx, draftFor("V1", 2)))
	assert.Equal(t, model.DraftStateAwaitingAuth, parked.State().State)

	// the auth screens run; a fresh flow reads the draft back afterwards
	resumed := NewFlow(NewDraftStore(kv), &countingSubmitter{})
	draft, err := resumed.Resume(ctx, "V1", model.AuthMethodLogin)
	require.NoError(t, err)
	require.NotNil(t, draft)

	assert.Equal(t, "V1", draft.VenueID)
	assert.Equal(t, 2, draft.CurrentStep)
	assert.Equal(t, []string{"p1", "p2"}, draft.Players)
	assert.NotEmpty(t, draft.DraftID)

	state := resumed.State()
	assert.Equal(t, model.DraftStateResuming, state.State)
	assert.Equal(t, model.AuthMethodLogin, state.ResumedVia)
	assert.Equal(t, []model.DraftState{model.DraftStateAwaitingAuth}, states)
}

type publicAuth struct{}

func (publicAuth) LoginPublic(_ context.Context, creds model.Credentials) (*model.LoginResult, error) {
	return &model.LoginResult{UserType: model.UserTypePublic, BearerToken: "token-" + creds.Identifier}, nil
}

func (publicAuth) LoginPlayer(context.Context, model.Credentials) (*model.LoginResult, error) {
	return nil, errors.New("player login not expected")
}

func TestResumeAfterSessionLogin(t *testing.T) {
	ctx := context.Background()
	kv := newKV(t)
	creds := storage.NewCredentialStore(ctx, storage.Tiers{})
	store := session.NewStore(creds, kv, publicAuth{})
	flow := NewFlow(NewDraftStore(kv), &countingSubmitter{})

	require.NoError(t, flow.RequireAuth(ctx, draftFor("V1", 2)))
	require.False(t, store.State().Authenticated())

	require.NoError(t, store.LoginPublic(ctx, model.Credentials{Identifier: "fan@arena.test", Password: "secret"}))
	require.True(t, store.State().Authenticated())

	draft, err := flow.Resume(ctx, "V1", model.AuthMethodLogin)
	require.NoError(t, err)
	require.NotNil(t, draft, "login must not drop the parked draft")
	assert.Equal(t, "V1", draft.VenueID)
	assert.Equal(t, 2, draft.CurrentStep)
	assert.Equal(t, model.DraftStateResuming, flow.State().State)
	assert.True(t, store.State().Authenticated())
}

func TestResumeIgnoresForeignDraft(t *testing.T) {
	ctx := context.Background()
	kv := newKV(t)
	flow := NewFlow(NewDraftStore(kv), &countingSubmitter{})

	require.NoError(t, flow.RequireAuth(ctx, draftFor("V2", 3)))

	draft, err := flow.Resume(ctx, "V1", model.AuthMethodRegister)
	require.NoError(t, err)
	assert.Nil(t, draft)
	assert.Equal(t, model.DraftStateAbandoned, flow.State().State)

	stored, err := NewDraftStore(kv).Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored, "foreign draft is discarded")
}

func TestResumeDiscardsStaleDraft(t *testing.T) {
	ctx := context.Background()
	kv := newKV(t)
	flow := NewFlow(NewDraftStore(kv), &countingSubmitter{})
	flow.now = func() time.Time { return time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC) }
	require.NoError(t, flow.RequireAuth(ctx, draftFor("V1", 1)))

	flow.now = func() time.Time { return time.Date(2026, 1, 3, 0, 0, 0, 0, time.UTC) }
	draft, err := flow.Resume(ctx, "V1", model.AuthMethodQuickRegister)
	require.NoError(t, err)
	assert.Nil(t, draft)
	assert.Equal(t, model.DraftStateAbandoned, flow.State().State)
}

func TestResumeWithoutDraft(t *testing.T) {
	flow := NewFlow(NewDraftStore(newKV(t)), &countingSubmitter{})
	_, err := flow.Resume(context.Background(), "V1", model.AuthMethodLogin)
	assert.ErrorIs(t, err, ErrNoDraft)
}

func TestRequireAuthPersistFailure(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewKeyValueStore(ctx, rejectingBackend{storage.NewMemoryBackend()}, nil)
	flow := NewFlow(NewDraftStore(kv), &countingSubmitter{})

	err := flow.RequireAuth(ctx, draftFor("V1", 2))
	require.Error(t, err)
	assert.Equal(t, model.DraftStateCollecting, flow.State().State, "no transition without a persisted draft")
}

type rejectingBackend struct {
	*storage.MemoryBackend
}

func (rejectingBackend) Set(context.Context, string, string) error {
	return errors.New("disk full")
}

func TestSubmitIsSingleShot(t *testing.T) {
	ctx := context.Background()

	t.Run("duplicate sequential submit", func(t *testing.T) {
		kv := newKV(t)
		submitter := &countingSubmitter{}
		flow := NewFlow(NewDraftStore(kv), submitter)
		require.NoError(t, flow.RequireAuth(ctx, draftFor("V1", 4)))
		draft, err := flow.Resume(ctx, "V1", model.AuthMethodLogin)
		require.NoError(t, err)

		first, err := flow.Submit(ctx, *draft)
		require.NoError(t, err)
		second, err := flow.Submit(ctx, *draft)
		require.NoError(t, err)

		assert.Equal(t, int32(1), submitter.calls.Load())
		assert.Equal(t, first, second)
		assert.Equal(t, draft.DraftID, first.DraftID)
		assert.Equal(t, model.DraftStateComplete, flow.State().State)

		stored, err := NewDraftStore(kv).Load(ctx)
		require.NoError(t, err)
		assert.Nil(t, stored, "submitted draft is cleared")
	})

	t.Run("duplicate concurrent submit", func(t *testing.T) {
		submitter := &countingSubmitter{delay: 30 * time.Millisecond}
		flow := NewFlow(NewDraftStore(newKV(t)), submitter)
		draft, err := flow.Collect(draftFor("V1", 4))
		require.NoError(t, err)

		var wg sync.WaitGroup
		results := make([]*model.BookingConfirmation, 5)
		for i := range results {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], _ = flow.Submit(ctx, *draft)
			}(i)
		}
		wg.Wait()

		assert.Equal(t, int32(1), submitter.calls.Load())
		for _, r := range results {
			require.NotNil(t, r)
			assert.Equal(t, "booking-V1", r.BookingID)
		}
	})

	t.Run("failed submit can be retried", func(t *testing.T) {
		submitter := &countingSubmitter{err: errors.New("slot taken")}
		flow := NewFlow(NewDraftStore(newKV(t)), submitter)
		draft, err := flow.Collect(draftFor("V1", 4))
		require.NoError(t, err)

		_, err = flow.Submit(ctx, *draft)
		require.Error(t, err)

		submitter.err = nil
		confirmation, err := flow.Submit(ctx, *draft)
		require.NoError(t, err)
		assert.Equal(t, "booking-V1", confirmation.BookingID)
		assert.Equal(t, int32(2), submitter.calls.Load())
	})
}

func TestCollectAndAbandon(t *testing.T) {
	ctx := context.Background()
	kv := newKV(t)
	flow := NewFlow(NewDraftStore(kv), &countingSubmitter{})

	_, err := flow.Collect(model.BookingDraft{VenueID: "V1"})
	assert.ErrorIs(t, err, ErrInvalidDraft)

	draft, err := flow.Collect(draftFor("V1", 1))
	require.NoError(t, err)
	assert.NotEmpty(t, draft.DraftID)
	require.NoError(t, flow.RequireAuth(ctx, *draft))

	require.NoError(t, flow.Abandon(ctx))
	assert.Equal(t, model.DraftStateAbandoned, flow.State().State)

	stored, err := NewDraftStore(kv).Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, stored)
}
