package types

import "time"

// Event is the canonical record produced by the ingestion pipeline.
// StartTime is always UTC; TicketPrices, when non-empty, is sorted ascending.
type Event struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	StartTime    time.Time `json:"start_time"`
	City         string    `json:"city"`
	Location     string    `json:"location"`
	Address      string    `json:"address"`
	Category     string    `json:"category"`
	TicketPrices []int     `json:"ticket_prices"`
	Latitude     float64   `json:"latitude"`
	Longitude    float64   `json:"longitude"`
	CoverImage   string    `json:"cover_image"`
	CardImage    string    `json:"card_image"`
	SourceURL    string    `json:"source_url"`
}

// NaturalKey identifies an event independently of its surrogate ID. Two
// records with the same key denote the same real-world event.
type NaturalKey struct {
	Title     string
	StartTime time.Time
	City      string
}

// Key returns the event's natural key.
func (e *Event) Key() NaturalKey {
	return NaturalKey{Title: e.Title, StartTime: e.StartTime, City: e.City}
}

// ListingEntry is one anchor discovered on the listing page, carrying the
// detail URL and the metadata resolvable without fetching the detail page.
type ListingEntry struct {
	DetailURL string
	City      string
	CardImage string
}
