package service

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/rs/zerolog/log"

	"github.com/arenahub/playground-client/internal/dispatch"
	"github.com/arenahub/playground-client/internal/model"
)

type bookingRequest struct {
	VenueID            string   `json:"venueId"`
	AcademyProfileID   string   `json:"academyProfileId"`
	SelectedDurationID string   `json:"durationId,omitempty"`
	BookingDate        string   `json:"date,omitempty"`
	Players            []string `json:"players,omitempty"`
	SelectedSlot       string   `json:"slot,omitempty"`
	PaymentType        string   `json:"paymentType,omitempty"`
	CashOnDate         string   `json:"cashOnDate,omitempty"`
}

type BookingAPI struct {
	api API
}

func NewBookingAPI(api API) *BookingAPI {
	return &BookingAPI{api: api}
}

// CreateBooking submits a draft. The draft id doubles as the idempotency key
// so the backend can drop a replayed submission too.
func (b *BookingAPI) CreateBooking(ctx context.Context, draft *model.BookingDraft) (*model.BookingConfirmation, error) {
	req := bookingRequest{
		VenueID:            draft.VenueID,
		AcademyProfileID:   draft.AcademyProfileID,
		SelectedDurationID: draft.SelectedDurationID,
		BookingDate:        draft.BookingDate,
		Players:            draft.Players,
		SelectedSlot:       draft.SelectedSlot,
		PaymentType:        draft.PaymentType,
		CashOnDate:         draft.CashOnDate,
	}

	var confirmation model.BookingConfirmation
	err := post(ctx, b.api, "/bookings", req, &confirmation, dispatch.WithHeader("Idempotency-Key", draft.DraftID))
	if err != nil {
		return nil, err
	}
	if confirmation.BookingID == "" {
		return nil, fmt.Errorf("booking response carried no booking id")
	}

	log.Info().
		Str("bookingId", confirmation.BookingID).
		Str("venueId", draft.VenueID).
		Msg("booking created")
	return &confirmation, nil
}

func (b *BookingAPI) Create(ctx context.Context, draft *model.BookingDraft) Result[*model.BookingConfirmation] {
	return call(func() (*model.BookingConfirmation, error) {
		return b.CreateBooking(ctx, draft)
	})
}

// UploadReceipt sends a payment receipt image as multipart form data.
func (b *BookingAPI) UploadReceipt(ctx context.Context, bookingID, fileName, contentType string, content io.Reader) Result[struct{}] {
	body := &dispatch.Multipart{
		Fields: map[string]string{"bookingId": bookingID},
		Files: []dispatch.FilePart{{
			Field:       "receipt",
			FileName:    fileName,
			ContentType: contentType,
			Content:     content,
		}},
	}
	return call(func() (struct{}, error) {
		_, err := b.api.Dispatch(ctx, http.MethodPost, "/bookings/"+url.PathEscape(bookingID)+"/receipt", body)
		return struct{}{}, err
	})
}

// DownloadInvoice returns the invoice document bytes unparsed.
func (b *BookingAPI) DownloadInvoice(ctx context.Context, bookingID string) Result[[]byte] {
	return call(func() ([]byte, error) {
		resp, err := b.api.Dispatch(ctx, http.MethodGet, "/bookings/"+url.PathEscape(bookingID)+"/invoice", nil, dispatch.WithRawResponse())
		if err != nil {
			return nil, err
		}
		return resp.Body, nil
	})
}

func (b *BookingAPI) MyBookings(ctx context.Context) Result[[]map[string]any] {
	return call(func() ([]map[string]any, error) {
		var bookings []map[string]any
		err := get(ctx, b.api, "/bookings", &bookings)
		return bookings, err
	})
}
