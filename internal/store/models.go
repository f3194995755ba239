package store

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"swifthand/api/internal/checklist"
)

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}

type Service struct {
	ID                string
	Title             string
	Description       string
	Category          string
	ProviderID        string
	Price             decimal.Decimal
	ImageURL          string
	ChecklistTemplate json.RawMessage
	OnSale            bool
	SaleEndDate       *time.Time
	FleetDocs         []FleetDoc
	Portfolio         []PortfolioItem
	CreatedAt         time.Time
}

// Service list limits, matching the upload slots of the service editor.
const (
	MaxFleetDocs      = 5
	MaxPortfolioItems = 3
)

// FleetDoc is a vehicle document attached to a service, with the checks it covers.
type FleetDoc struct {
	Name      string         `json:"name"`
	URL       string         `json:"url"`
	Checklist []FleetDocItem `json:"checklist"`
}

type FleetDocItem struct {
	Item     string `json:"item"`
	Category string `json:"category"`
}

// PortfolioItem is a featured project shown on a service page.
type PortfolioItem struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	ImageURL    string `json:"imageUrl"`
}

// Booking statuses as stored in bookings.status.
const (
	BookingPending   = "Pending"
	BookingConfirmed = "Confirmed"
	BookingCompleted = "Completed"
	BookingCancelled = "Cancelled"
)

type Booking struct {
	ID          string
	ServiceID   string
	ClientID    string
	ProviderID  string
	BookingDate time.Time
	Status      string
	CreatedAt   time.Time

	// Joined for listings.
	ServiceTitle string
	ClientName   string
	HasChecklist bool
}

// Checklist is the single inspection record of a booking.
type Checklist struct {
	ID          string
	BookingID   string
	FormData    checklist.FormData
	SubmittedBy string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
