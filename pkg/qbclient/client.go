// Package qbclient is a thin client for the QuickBooks Online API, covering
// the operations the billing sync needs. Every call is parameterized by a
// bearer token and company (realm) id supplied by the caller.
package qbclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is the QuickBooks API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new QuickBooks API client against the given base URL
// (production or sandbox).
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// CreateCustomer creates a customer in QuickBooks and returns its id.
// email and phone are optional.
func (c *Client) CreateCustomer(ctx context.Context, token, realmID, name, email, phone string) (string, error) {
	// QuickBooks expects GivenName/FamilyName split out
	given, family := splitName(name)
	payload := customerPayload{
		GivenName:   given,
		FamilyName:  family,
		CompanyName: name,
	}
	if email != "" {
		payload.PrimaryEmailAddr = &emailAddress{Address: email}
	}
	if phone != "" {
		payload.PrimaryPhone = &phoneNumber{FreeFormNumber: phone}
	}

	endpoint := fmt.Sprintf("%s/v3/company/%s/customer", c.baseURL, realmID)
	body, err := c.sendRequest(ctx, token, http.MethodPost, endpoint, payload)
	if err != nil {
		return "", fmt.Errorf("failed to create customer: %w", err)
	}

	id, err := extractID(body, "Customer")
	if err != nil {
		return "", fmt.Errorf("failed to create customer: %w", err)
	}
	return id, nil
}

// CreateInvoice creates an invoice for the job and returns its id.
func (c *Client) CreateInvoice(ctx context.Context, token, realmID string, job JobRequest) (string, error) {
	endpoint := fmt.Sprintf("%s/v3/company/%s/invoice", c.baseURL, realmID)
	body, err := c.sendRequest(ctx, token, http.MethodPost, endpoint, buildSalesPayload(job))
	if err != nil {
		return "", fmt.Errorf("failed to create invoice: %w", err)
	}

	id, err := extractID(body, "Invoice")
	if err != nil {
		return "", fmt.Errorf("failed to create invoice: %w", err)
	}
	return id, nil
}

// CreateEstimate creates an estimate for the job and returns its id.
func (c *Client) CreateEstimate(ctx context.Context, token, realmID string, job JobRequest) (string, error) {
	endpoint := fmt.Sprintf("%s/v3/company/%s/estimate", c.baseURL, realmID)
	body, err := c.sendRequest(ctx, token, http.MethodPost, endpoint, buildSalesPayload(job))
	if err != nil {
		return "", fmt.Errorf("failed to create estimate: %w", err)
	}

	id, err := extractID(body, "Estimate")
	if err != nil {
		return "", fmt.Errorf("failed to create estimate: %w", err)
	}
	return id, nil
}

// TestConnection verifies the token and realm by reading the company record.
func (c *Client) TestConnection(ctx context.Context, token, realmID string) (bool, error) {
	endpoint := fmt.Sprintf("%s/v3/company/%s/companyinfo/%s", c.baseURL, realmID, realmID)
	if _, err := c.sendRequest(ctx, token, http.MethodGet, endpoint, nil); err != nil {
		return false, err
	}
	return true, nil
}

// ListInvoices returns invoices from the last 30 days, newest first.
func (c *Client) ListInvoices(ctx context.Context, token, realmID string) ([]Invoice, error) {
	since := time.Now().AddDate(0, 0, -30).Format("2006-01-02")
	query := fmt.Sprintf("SELECT * FROM Invoice WHERE TxnDate >= '%s' ORDER BY TxnDate DESC", since)
	endpoint := fmt.Sprintf("%s/v3/company/%s/query?query=%s", c.baseURL, realmID, url.QueryEscape(query))

	body, err := c.sendRequest(ctx, token, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}

	var envelope struct {
		QueryResponse struct {
			Invoice []struct {
				ID          string  `json:"Id"`
				TotalAmt    float64 `json:"TotalAmt"`
				TxnDate     string  `json:"TxnDate"`
				EmailStatus string  `json:"EmailStatus"`
				PrivateNote string  `json:"PrivateNote"`
				CustomerRef struct {
					Name string `json:"name"`
				} `json:"CustomerRef"`
			} `json:"Invoice"`
		} `json:"QueryResponse"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse invoice list: %w", err)
	}

	invoices := make([]Invoice, 0, len(envelope.QueryResponse.Invoice))
	for _, inv := range envelope.QueryResponse.Invoice {
		date, err := time.Parse("2006-01-02", inv.TxnDate)
		if err != nil {
			date = time.Time{}
		}
		status := inv.EmailStatus
		if status == "" {
			status = "Unknown"
		}
		invoices = append(invoices, Invoice{
			ID:           inv.ID,
			CustomerName: inv.CustomerRef.Name,
			Amount:       inv.TotalAmt,
			Date:         date,
			Status:       status,
			Description:  inv.PrivateNote,
		})
	}

	return invoices, nil
}

// buildSalesPayload maps a job to the QuickBooks invoice/estimate body. Jobs
// without line items get a single line for the total amount.
func buildSalesPayload(job JobRequest) salesPayload {
	var lines []salesLine
	for _, li := range job.LineItems {
		lines = append(lines, salesLine{
			Amount:     li.Total,
			DetailType: "SalesItemLineDetail",
			Detail: salesLineDetail{
				Qty:       1,
				UnitPrice: li.Total,
				ItemRef:   ref{Value: "1"}, // Default Services item
			},
		})
	}
	if len(lines) == 0 {
		lines = []salesLine{{
			Amount:     job.TotalAmount,
			DetailType: "SalesItemLineDetail",
			Detail: salesLineDetail{
				Qty:       1,
				UnitPrice: job.TotalAmount,
				ItemRef:   ref{Value: "1"},
			},
		}}
	}

	return salesPayload{
		Line:        lines,
		CustomerRef: ref{Value: job.RemoteCustomerID},
	}
}

// sendRequest makes an authenticated request and returns the response body.
// QuickBooks Fault bodies are decoded into readable errors.
func (c *Client) sendRequest(ctx context.Context, token, method, endpoint string, payload interface{}) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	query := req.URL.Query()
	query.Set("minorversion", "75")
	req.URL.RawQuery = query.Encode()

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var qbErr struct {
			Fault struct {
				Error []struct {
					Message string `json:"Message"`
					Code    string `json:"code"`
				} `json:"Error"`
			} `json:"Fault"`
		}
		if err := json.Unmarshal(body, &qbErr); err == nil && len(qbErr.Fault.Error) > 0 {
			return nil, fmt.Errorf("QuickBooks API error (%s): %s",
				qbErr.Fault.Error[0].Code, qbErr.Fault.Error[0].Message)
		}
		return nil, fmt.Errorf("QuickBooks API returned status %d: %s", resp.StatusCode, body)
	}

	return body, nil
}

// extractID pulls the entity id out of a create response. QuickBooks returns
// either {"Customer": {...}} or, on some endpoints, a QueryResponse wrapper.
func extractID(body []byte, entity string) (string, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", fmt.Errorf("failed to parse %s response: %w", entity, err)
	}

	if raw, ok := envelope[entity]; ok {
		var ref entityRef
		if err := json.Unmarshal(raw, &ref); err == nil && ref.ID != "" {
			return ref.ID, nil
		}
	}

	if raw, ok := envelope["QueryResponse"]; ok {
		var wrapped map[string][]entityRef
		if err := json.Unmarshal(raw, &wrapped); err == nil {
			if refs := wrapped[entity]; len(refs) > 0 && refs[0].ID != "" {
				return refs[0].ID, nil
			}
		}
	}

	return "", fmt.Errorf("%s response contained no id", entity)
}

// splitName divides a display name into given and family parts.
func splitName(name string) (string, string) {
	parts := strings.SplitN(strings.TrimSpace(name), " ", 2)
	if len(parts) == 1 {
		return parts[0], ""
	}
	return parts[0], parts[1]
}
