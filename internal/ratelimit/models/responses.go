package models

import "time"

// QuotaResponse is the API response for a quota lookup.
type QuotaResponse struct {
	UserID    string    `json:"user_id"`
	Allowed   bool      `json:"allowed"`
	Limit     int       `json:"limit"`
	Remaining int       `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// ToResponse renders r for userID.
func (r QuotaResult) ToResponse(userID string) QuotaResponse {
	return QuotaResponse{
		UserID:    userID,
		Allowed:   r.Allowed,
		Limit:     r.Limit,
		Remaining: r.Remaining,
		ResetAt:   r.ResetAt,
	}
}
