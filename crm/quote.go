package crm

import "renolink/models"

// QuoteDrafter is the external quote-drafting collaborator. The engine
// fires one call per request, forwards the identifier it gets back, and
// never retries; a failure reaches the caller unchanged with no lead
// mutation on either outcome.
type QuoteDrafter interface {
	CreateDraft(lead *models.Lead) (quoteID string, err error)
}
