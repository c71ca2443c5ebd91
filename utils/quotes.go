package utils

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"renolink/models"
)

// QuoteClient talks to the external quote-drafting service. One POST per
// draft request; the engine forwards whatever identifier (or failure) comes
// back and never retries.
type QuoteClient struct {
	BaseURL string
	HTTP    *http.Client
}

func NewQuoteClient(baseURL string) *QuoteClient {
	return &QuoteClient{
		BaseURL: baseURL,
		HTTP:    &http.Client{Timeout: 15 * time.Second},
	}
}

type quoteDraftRequest struct {
	LeadID       string `json:"lead_id"`
	SupplierID   string `json:"supplier_id"`
	Name         string `json:"name"`
	ContactPhone string `json:"contact_phone"`
	ContactEmail string `json:"contact_email"`
	CampaignName string `json:"campaign_name"`
}

type quoteDraftResponse struct {
	QuoteID string `json:"quote_id"`
}

func (qc *QuoteClient) CreateDraft(lead *models.Lead) (string, error) {
	payload, err := json.Marshal(quoteDraftRequest{
		LeadID:       lead.ID,
		SupplierID:   lead.SupplierID,
		Name:         lead.Name,
		ContactPhone: lead.ContactPhone,
		ContactEmail: lead.ContactEmail,
		CampaignName: lead.CampaignName,
	})
	if err != nil {
		return "", err
	}

	resp, err := qc.HTTP.Post(qc.BaseURL+"/drafts", "application/json", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("quote service returned status %d", resp.StatusCode)
	}

	var out quoteDraftResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", err
	}
	if out.QuoteID == "" {
		return "", fmt.Errorf("quote service returned empty quote_id")
	}
	return out.QuoteID, nil
}
