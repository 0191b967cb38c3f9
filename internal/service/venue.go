package service

import (
	"context"
	"net/url"
	"strconv"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/arenahub/playground-client/internal/model"
)

// VenueAPI wraps the public venue endpoints. A new slot search cancels the
// one still in flight so a stale result never reaches the UI.
type VenueAPI struct {
	api API

	mu           sync.Mutex
	searchGen    uint64
	cancelSearch context.CancelFunc
}

func NewVenueAPI(api API) *VenueAPI {
	return &VenueAPI{api: api}
}

func (v *VenueAPI) SearchSlots(ctx context.Context, venueID, date, durationID string) Result[[]model.Slot] {
	searchCtx, cancel := context.WithCancel(ctx)

	v.mu.Lock()
	if v.cancelSearch != nil {
		v.cancelSearch()
	}
	v.searchGen++
	gen := v.searchGen
	v.cancelSearch = cancel
	v.mu.Unlock()

	defer v.finish(gen, cancel)

	params := url.Values{}
	params.Set("date", date)
	if durationID != "" {
		params.Set("durationId", durationID)
	}

	var slots []model.Slot
	err := get(searchCtx, v.api, "/venues/"+url.PathEscape(venueID)+"/slots?"+params.Encode(), &slots)

	if v.superseded(gen) {
		log.Debug().Str("venueId", venueID).Str("date", date).Msg("slot search superseded")
		return Result[[]model.Slot]{Canceled: true}
	}
	if err != nil {
		return fail[[]model.Slot](err)
	}
	return ok(slots)
}

func (v *VenueAPI) superseded(gen uint64) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.searchGen != gen
}

func (v *VenueAPI) finish(gen uint64, cancel context.CancelFunc) {
	v.mu.Lock()
	if v.searchGen == gen {
		v.cancelSearch = nil
	}
	v.mu.Unlock()
	cancel()
}

// Venue fetches one venue's public details.
func (v *VenueAPI) Venue(ctx context.Context, venueID string) Result[map[string]any] {
	return call(func() (map[string]any, error) {
		var venue map[string]any
		err := get(ctx, v.api, "/venues/"+url.PathEscape(venueID), &venue)
		return venue, err
	})
}

// Academies searches academies with the cached discovery filters.
func (v *VenueAPI) Academies(ctx context.Context, filters model.DiscoveryFilters) Result[[]map[string]any] {
	params := url.Values{}
	if filters.Sport != "" {
		params.Set("sport", filters.Sport)
	}
	if filters.City != "" {
		params.Set("city", filters.City)
	}
	if filters.Gender != "" {
		params.Set("gender", filters.Gender)
	}
	for _, age := range filters.Ages {
		params.Add("age", strconv.Itoa(age))
	}
	for _, k := range filters.Keywords {
		params.Add("q", k)
	}

	return call(func() ([]map[string]any, error) {
		var academies []map[string]any
		err := get(ctx, v.api, "/academies?"+params.Encode(), &academies)
		return academies, err
	})
}
