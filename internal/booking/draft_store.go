package booking

import (
	"context"
	"fmt"

	"github.com/arenahub/playground-client/internal/model"
	"github.com/arenahub/playground-client/internal/storage"
)

// DraftStore keeps the single in-progress booking draft.
type DraftStore struct {
	kv *storage.KeyValueStore
}

func NewDraftStore(kv *storage.KeyValueStore) *DraftStore {
	return &DraftStore{kv: kv}
}

// Save always runs in critical mode: the caller navigates away right after.
func (s *DraftStore) Save(ctx context.Context, draft *model.BookingDraft) error {
	if err := s.kv.SetJSON(ctx, storage.KeyBookingDraft, draft, storage.Critical()); err != nil {
		return fmt.Errorf("save booking draft: %w", err)
	}
	return nil
}

func (s *DraftStore) Load(ctx context.Context) (*model.BookingDraft, error) {
	var draft model.BookingDraft
	ok, err := s.kv.GetJSON(ctx, storage.KeyBookingDraft, &draft)
	if err != nil {
		return nil, fmt.Errorf("load booking draft: %w", err)
	}
	if !ok {
		return nil, nil
	}
	return &draft, nil
}

func (s *DraftStore) Clear(ctx context.Context) error {
	return s.kv.Remove(ctx, storage.KeyBookingDraft)
}
