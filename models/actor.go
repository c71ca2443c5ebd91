package models

// Actor identifies the authenticated supplier-side user behind a request.
// Authentication itself lives in the access layer; the engine only receives
// the claims and trusts the supplier scoping they carry.
type Actor struct {
	UserID     string `json:"user_id"`
	SupplierID string `json:"supplier_id"`
}
