// Package domain defines the data model shared by the booking client components.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the ISO calendar date format used by the booking API.
const DateLayout = "2006-01-02"

// Session is the single persisted record describing who is logged in.
type Session struct {
	AuthToken string `json:"auth_token,omitempty"`
	UserID    string `json:"user_id,omitempty"`
}

// Authenticated reports whether a token is stored. Token presence is the only signal used.
func (s Session) Authenticated() bool {
	return strings.TrimSpace(s.AuthToken) != ""
}

// User is the profile returned by the auth and users endpoints.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name,omitempty"`
	Phone     string    `json:"phone,omitempty"`
	CreatedAt time.Time `json:"createdAt,omitempty"`
}

// AuthResult is the body returned by login and OTP verification.
type AuthResult struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// GymClass is a scheduled class as served by the API.
type GymClass struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Discipline      string  `json:"discipline"`
	Day             string  `json:"day"`
	StartTime       string  `json:"startTime"`
	EndTime         string  `json:"endTime"`
	Location        string  `json:"location"`
	CurrentCapacity int     `json:"currentCapacity"`
	MaxCapacity     int     `json:"maxCapacity"`
	Instructor      *string `json:"instructor,omitempty"`
	DurationMin     *int    `json:"duration,omitempty"`
	ClassDate       string  `json:"classDate"`
}

// Full reports whether no seats remain.
func (c GymClass) Full() bool {
	return c.MaxCapacity > 0 && c.CurrentCapacity >= c.MaxCapacity
}

// SeatsLeft returns the remaining capacity, never negative.
func (c GymClass) SeatsLeft() int {
	if left := c.MaxCapacity - c.CurrentCapacity; left > 0 {
		return left
	}
	return 0
}

// ReservationStatus enumerates the lifecycle of a reservation.
type ReservationStatus string

const (
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationCancelled ReservationStatus = "CANCELLED"
	ReservationCompleted ReservationStatus = "COMPLETED"
)

// Reservation binds a user to a class.
type Reservation struct {
	ID              string            `json:"id"`
	ClassID         string            `json:"classId"`
	Class           *GymClass         `json:"gymClass,omitempty"`
	UserID          string            `json:"userId"`
	Status          ReservationStatus `json:"status"`
	ReservationDate time.Time         `json:"reservationDate"`
	CheckInAt       *time.Time        `json:"checkInTime,omitempty"`
}

// Attended reports whether the user checked in.
func (r Reservation) Attended() bool {
	return r.CheckInAt != nil || r.Status == ReservationCompleted
}

// FilterCriteria shapes the class listing query. Empty fields are not sent.
type FilterCriteria struct {
	Location   string `json:"location,omitempty"`
	Discipline string `json:"discipline,omitempty"`
	Date       string `json:"date,omitempty"`
}

// Normalize trims whitespace from every field.
func (f FilterCriteria) Normalize() FilterCriteria {
	return FilterCriteria{
		Location:   strings.TrimSpace(f.Location),
		Discipline: strings.TrimSpace(f.Discipline),
		Date:       strings.TrimSpace(f.Date),
	}
}

// Validate checks the date is an ISO calendar date when present.
func (f FilterCriteria) Validate() error {
	if f.Date == "" {
		return nil
	}
	if _, err := time.Parse(DateLayout, f.Date); err != nil {
		return Precondition("date", fmt.Sprintf("date must use YYYY-MM-DD, got %q", f.Date))
	}
	return nil
}

// IsZero reports whether no filter is set.
func (f FilterCriteria) IsZero() bool {
	return f == FilterCriteria{}
}
