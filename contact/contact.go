// Package contact submits the public contact form. Submissions are validated locally and
// throttled client-side to the same budget the API enforces.
package contact

import (
	"context"
	"net/http"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/jrsteele09/bomani-client/apiclient"
	"github.com/jrsteele09/bomani-client/internal/errors"
	"github.com/jrsteele09/bomani-client/users"
)

const (
	DefaultRatePerHour = 10
	minMessageLength   = 10
	maxNameLength      = 200
	maxPhoneLength     = 20
	maxSubjectLength   = 300
)

// Message is the body of POST /contact/
type Message struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Phone   string `json:"phone,omitempty"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Receipt acknowledges a stored submission
type Receipt struct {
	ID      int64  `json:"id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Normalize trims every field and lower-cases the email, matching what the API stores
func (m Message) Normalize() Message {
	return Message{
		Name:    strings.TrimSpace(m.Name),
		Email:   strings.ToLower(strings.TrimSpace(m.Email)),
		Phone:   strings.TrimSpace(m.Phone),
		Subject: strings.TrimSpace(m.Subject),
		Message: strings.TrimSpace(m.Message),
	}
}

// Validate checks a normalized message
func (m Message) Validate() users.FieldErrors {
	fe := users.FieldErrors{}
	required := func(field, value string, limit int) {
		switch {
		case value == "":
			fe.Add(field, "This field may not be blank.")
		case limit > 0 && len(value) > limit:
			fe.Add(field, "Ensure this field has no more than "+strconv.Itoa(limit)+" characters.")
		}
	}
	required("name", m.Name, maxNameLength)
	required("email", m.Email, 0)
	required("subject", m.Subject, maxSubjectLength)
	required("message", m.Message, 0)

	if m.Email != "" {
		if _, err := mail.ParseAddress(m.Email); err != nil {
			fe.Add("email", "Enter a valid email address.")
		}
	}
	if len(m.Phone) > maxPhoneLength {
		fe.Add("phone", "Ensure this field has no more than "+strconv.Itoa(maxPhoneLength)+" characters.")
	}
	if m.Message != "" && len([]rune(m.Message)) < minMessageLength {
		fe.Add("message", "Message must be at least 10 characters long.")
	}

	if len(fe) == 0 {
		return nil
	}
	return fe
}

// Poster is the transport used to submit the form
type Poster interface {
	Do(ctx context.Context, req apiclient.Request) error
}

// Service submits contact messages
type Service struct {
	api     Poster
	limiter *rate.Limiter
	nowFunc func() time.Time
}

type Option func(*Service)

// WithRateLimit allows perHour submissions per hour with the given burst.
// perHour <= 0 disables the client-side limit.
func WithRateLimit(perHour, burst int) Option {
	return func(s *Service) {
		if perHour <= 0 {
			s.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Every(time.Hour/time.Duration(perHour)), burst)
	}
}

// WithNowFunc sets the clock used by the limiter (primarily for testing)
func WithNowFunc(now func() time.Time) Option {
	return func(s *Service) {
		s.nowFunc = now
	}
}

func NewService(api Poster, options ...Option) (*Service, error) {
	if api == nil {
		return nil, errors.New("[contact.NewService] api is required")
	}
	s := &Service{api: api, nowFunc: time.Now}
	WithRateLimit(DefaultRatePerHour, DefaultRatePerHour)(s)
	for _, opt := range options {
		opt(s)
	}
	return s, nil
}

// Submit validates msg and posts it. Validation failures are returned as an
// *apiclient.Error of KindValidationFailed without any network call. A submission beyond
// the hourly budget returns an error wrapping errors.ErrRateLimited.
func (s *Service) Submit(ctx context.Context, msg Message) (*Receipt, error) {
	msg = msg.Normalize()
	if fe := msg.Validate(); fe != nil {
		return nil, &apiclient.Error{
			Kind:   apiclient.KindValidationFailed,
			Status: http.StatusBadRequest,
			Detail: "Please correct the highlighted fields",
			Fields: fe,
		}
	}

	if s.limiter != nil && !s.limiter.AllowN(s.nowFunc(), 1) {
		log.Warn().Msg("contact submission throttled locally")
		return nil, &apiclient.Error{
			Kind:   apiclient.KindThrottled,
			Status: http.StatusTooManyRequests,
			Detail: "Too many messages. Please try again later.",
		}
	}

	receipt := &Receipt{}
	err := s.api.Do(ctx, apiclient.Request{
		Method: http.MethodPost,
		Path:   apiclient.RouteContact,
		Body:   msg,
		Out:    receipt,
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int64("id", receipt.ID).Str("status", receipt.Status).Msg("contact message sent")
	return receipt, nil
}
