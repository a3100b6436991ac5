package model

import "errors"

var (
	// Account related errors
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountExists   = errors.New("account already exists")

	// Contact related errors
	ErrContactNotFound = errors.New("contact not found")

	// Generic errors
	ErrInvalidInput = errors.New("invalid input")
)
