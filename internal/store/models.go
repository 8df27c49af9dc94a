package store

import "time"

type User struct {
	ID           string    `json:"id"`
	Phone        string    `json:"phone"`
	PasswordHash string    `json:"-"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	PhotoDataURL string    `json:"photoDataUrl"`
	Latitude     *float64  `json:"latitude"`
	Longitude    *float64  `json:"longitude"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ProfileVersion is an append-only snapshot of a user's profile taken
// immediately before a profile mutation is applied.
type ProfileVersion struct {
	ID           string    `json:"id"`
	UserID       string    `json:"userId"`
	Phone        string    `json:"phone"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	PhotoDataURL string    `json:"photoDataUrl"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ProfileUpdate carries the subset of profile fields being changed. Nil
// means "leave unchanged".
type ProfileUpdate struct {
	FirstName    *string
	LastName     *string
	PhotoDataURL *string
}

func (u ProfileUpdate) Empty() bool {
	return u.FirstName == nil && u.LastName == nil && u.PhotoDataURL == nil
}
