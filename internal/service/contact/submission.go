// Package contact validates contact-form submissions and relays them to the mail backend.
package contact

import (
	"net/mail"
	"slices"
	"strings"
)

// SuccessMessage is shown once the backend accepts a submission.
const SuccessMessage = "Message sent successfully! We will respond within one business day."

// Purposes lists the accepted values of Submission.Purpose.
var Purposes = []string{
	"ai-consultation",
	"machine-learning",
	"data-analytics",
	"automation",
	"cloud-services",
	"cybersecurity",
	"edge-computing",
	"partnership",
	"support",
	"pricing",
	"demo",
	"other",
}

// Submission is the contact form payload.
type Submission struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Company   string `json:"company"`
	Purpose   string `json:"purpose"`
	Subject   string `json:"subject"`
	Message   string `json:"message"`
}

// ValidationError lists the fields that failed validation, in form order.
type ValidationError struct {
	Fields []string `json:"fields"`
}

func (e *ValidationError) Error() string {
	return "please fill in all required fields: " + strings.Join(e.Fields, ", ")
}

// Normalize trims every field.
func (s Submission) Normalize() Submission {
	return Submission{
		FirstName: strings.TrimSpace(s.FirstName),
		LastName:  strings.TrimSpace(s.LastName),
		Email:     strings.TrimSpace(s.Email),
		Company:   strings.TrimSpace(s.Company),
		Purpose:   strings.TrimSpace(s.Purpose),
		Subject:   strings.TrimSpace(s.Subject),
		Message:   strings.TrimSpace(s.Message),
	}
}

// Validate checks required fields, the email address and the purpose.
func (s Submission) Validate() error {
	var fields []string
	if strings.TrimSpace(s.FirstName) == "" {
		fields = append(fields, "firstName")
	}
	if strings.TrimSpace(s.LastName) == "" {
		fields = append(fields, "lastName")
	}
	if !validEmail(s.Email) {
		fields = append(fields, "email")
	}
	if !slices.Contains(Purposes, strings.TrimSpace(s.Purpose)) {
		fields = append(fields, "purpose")
	}
	if strings.TrimSpace(s.Message) == "" {
		fields = append(fields, "message")
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

func validEmail(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	addr, err := mail.ParseAddress(raw)
	return err == nil && addr.Address == raw
}
