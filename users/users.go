package users

import (
	"net/mail"
	"strings"
)

// User is the identity returned by GET /auth/me/. It is replaced wholesale on every
// identity fetch and never partially mutated.
type User struct {
	ID       int64   `json:"id"`              // Unique identifier for the user
	Username string  `json:"username"`        // Unique username
	Email    string  `json:"email"`           // User's email address
	Phone    *string `json:"phone,omitempty"` // Optional phone number, e.g. +254712345678
	IsHost   bool    `json:"is_host"`         // IsHost, can the user list properties
}

// Clone returns a deep copy so session snapshots never share the phone pointer
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Phone != nil {
		phone := *u.Phone
		c.Phone = &phone
	}
	return &c
}

// Credentials is the login input. Username accepts either a username or an email address.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegistrationRequest is the body of POST /auth/register/
type RegistrationRequest struct {
	Username             string `json:"username"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password2"`
	Phone                string `json:"phone,omitempty"`
	IsHost               bool   `json:"is_host"`
}

// RegistrationResult is the created-resource payload returned by a successful registration
type RegistrationResult struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Message  string `json:"message"`
}

// FieldErrors maps a request field to its ordered validation messages
type FieldErrors map[string][]string

// Add appends msg to the messages for field
func (fe FieldErrors) Add(field, msg string) {
	fe[field] = append(fe[field], msg)
}

// First returns the first message for field, or "" when the field is valid
func (fe FieldErrors) First(field string) string {
	if msgs := fe[field]; len(msgs) > 0 {
		return msgs[0]
	}
	return ""
}

// Validate performs the checks that can be made without the server: required fields,
// email shape and password confirmation. Uniqueness and password policy are left to the API.
func (r RegistrationRequest) Validate() FieldErrors {
	fe := FieldErrors{}
	if strings.TrimSpace(r.Username) == "" {
		fe.Add("username", "This field may not be blank.")
	}
	if strings.TrimSpace(r.Email) == "" {
		fe.Add("email", "This field may not be blank.")
	} else if _, err := mail.ParseAddress(r.Email); err != nil {
		fe.Add("email", "Enter a valid email address.")
	}
	if r.Password == "" {
		fe.Add("password", "This field may not be blank.")
	}
	if r.PasswordConfirmation == "" {
		fe.Add("password2", "This field may not be blank.")
	} else if r.Password != r.PasswordConfirmation {
		fe.Add("password2", "Password fields didn't match.")
	}
	if len(fe) == 0 {
		return nil
	}
	return fe
}

// Validate reports whether both credential fields are present
func (c Credentials) Validate() FieldErrors {
	fe := FieldErrors{}
	if strings.TrimSpace(c.Username) == "" {
		fe.Add("username", "This field may not be blank.")
	}
	if c.Password == "" {
		fe.Add("password", "This field may not be blank.")
	}
	if len(fe) == 0 {
		return nil
	}
	return fe
}
