package handler

import "github.com/actuallystonmai/streamfront/internal/domain"

type ListResponse struct {
	SessionID  string          `json:"session_id"`
	Kind       domain.ListKind `json:"kind"`
	Entries    []domain.Entry  `json:"entries"`
	TotalCount int             `json:"total_count"`
}

type ContainsResponse struct {
	Contains bool         `json:"contains"`
	Entry    domain.Entry `json:"entry"`
}

type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
