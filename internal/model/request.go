package model

type SignupRequest struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Email    string `json:"email" validate:"required,email,max=250"`
	Password string `json:"password" validate:"required,min=6,maxbytes=72"`
}

// LoginRequest carries the credentials of a login. Email is not validated as
// an address so that every failure maps to the same three outcomes.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RequestEmail struct {
	Email string `json:"email" validate:"required,email"`
}
