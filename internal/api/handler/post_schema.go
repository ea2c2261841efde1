package handler

import "github.com/99minutos/seedboard/internal/core/domain"

type postRequest struct {
	Name    string `json:"name"    form:"name"    validate:"required,max=64"`
	Message string `json:"message" form:"message" validate:"required,max=2000"`
	Seed    string `json:"seed"    form:"seed"    validate:"required,max=256"`
}

type postResponse struct {
	Identity    domain.Identity  `json:"identity"`
	DisplayName string           `json:"display_name"`
	Role        string           `json:"role"`
	Post        *domain.PostView `json:"post,omitempty"`
	Command     string           `json:"command,omitempty"`
	Reply       string           `json:"reply,omitempty"`
}

type sessionResponse struct {
	Identity domain.Identity `json:"identity,omitempty"`
	Name     string          `json:"name,omitempty"`
	Role     string          `json:"role"`
}

// SubmittedFields is echoed back on a rejected submission so the client can
// restore its form. The seed is never echoed.
type SubmittedFields struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// SubmissionError carries a rejected submission's fields alongside the cause.
type SubmissionError struct {
	Err    error
	Fields SubmittedFields
}

func (e *SubmissionError) Error() string { return e.Err.Error() }

func (e *SubmissionError) Unwrap() error { return e.Err }
