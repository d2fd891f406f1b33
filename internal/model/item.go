package model

import "time"

// Item represents a stored data record, served by the API-key endpoints.
type Item struct {
	ID        string         `json:"id"`
	Seq       int64          `json:"seq"` // Monotonic sequence, exposed as the numeric id
	Name      string         `json:"name"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedBy string         `json:"created_by"`
	CreatedAt time.Time      `json:"created_at"`
}

// ItemView is the compact representation returned by GET /api/data.
type ItemView struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// ToView converts an Item to its list representation.
func (i *Item) ToView() ItemView {
	return ItemView{
		ID:   i.Seq,
		Name: i.Name,
	}
}
