package models

import "time"

// StoredMap is a grid saved under a name
type StoredMap struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Rows      []string  `json:"rows"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Grid rebuilds the grid from the stored rows
func (m *StoredMap) Grid() *Grid {
	return GridFromRows(m.Rows)
}
