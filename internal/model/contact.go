package model

import "time"

type Contact struct {
	ID             int64     `json:"id"`
	FirstName      string    `json:"first_name"`
	LastName       string    `json:"last_name"`
	Email          string    `json:"email"`
	PhoneNumber    string    `json:"phone_number"`
	Birthday       *Date     `json:"birthday"`
	AdditionalData *string   `json:"additional_data"`
	OwnerID        string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ContactInput is the body accepted by create and update. Update replaces
// every field listed here.
type ContactInput struct {
	FirstName      string  `json:"first_name" validate:"required,max=50"`
	LastName       string  `json:"last_name" validate:"required,max=50"`
	Email          string  `json:"email" validate:"required,email,max=100"`
	PhoneNumber    string  `json:"phone_number" validate:"omitempty,max=20"`
	Birthday       *Date   `json:"birthday"`
	AdditionalData *string `json:"additional_data" validate:"omitempty,max=250"`
}

type ContactListData struct {
	Contacts []Contact `json:"contacts"`
}
