package companies

import (
	"errors"
	"time"
)

// Company represents a reporting entity. TaxID is the registration number
// printed on statutory export headers.
type Company struct {
	ID        int64     `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	TaxID     string    `json:"tax_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ErrCompanyNotFound indicates a missing company.
var ErrCompanyNotFound = errors.New("companies: company not found")
