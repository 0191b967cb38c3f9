package model

import "time"

type BookingDraft struct {
	DraftID            string    `json:"draftId"`
	VenueID            string    `json:"venueId"`
	AcademyProfileID   string    `json:"academyProfileId"`
	SelectedDurationID string    `json:"selectedDurationId,omitempty"`
	BookingDate        string    `json:"bookingDate,omitempty"`
	Players            []string  `json:"players,omitempty"`
	SelectedSlot       string    `json:"selectedSlot,omitempty"`
	PaymentType        string    `json:"paymentType,omitempty"`
	CashOnDate         string    `json:"cashOnDate,omitempty"`
	CurrentStep        int       `json:"currentStep"`
	SavedAt            time.Time `json:"savedAt"`
}

type BookingConfirmation struct {
	BookingID string `json:"bookingId"`
	Status    string `json:"status,omitempty"`
	DraftID   string `json:"-"`
}

type Slot struct {
	ID        string `json:"id"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Available bool   `json:"available"`
}

// DiscoveryFilters are the cached academy/venue search filters.
type DiscoveryFilters struct {
	Sport    string   `json:"sport,omitempty"`
	City     string   `json:"city,omitempty"`
	Ages     []int    `json:"ages,omitempty"`
	Gender   string   `json:"gender,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}
