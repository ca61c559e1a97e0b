package booking

import "strings"

// Location is one end of a trip as the customer stated it: a free-text
// address, explicit coordinates, or both once resolved.
type Location struct {
	Address   string   `json:"address,omitempty"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
}

// IsZero reports whether the location carries neither an address nor
// coordinates.
func (l Location) IsZero() bool {
	return strings.TrimSpace(l.Address) == "" && !l.HasCoordinates()
}

// HasCoordinates reports whether explicit coordinates are present.
func (l Location) HasCoordinates() bool {
	return l.Latitude != nil && l.Longitude != nil
}
