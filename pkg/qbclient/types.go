package qbclient

import "time"

// JobRequest is the read-only view of a local job sent to QuickBooks as an
// invoice or estimate. RemoteCustomerID must reference an already-synced
// QuickBooks customer.
type JobRequest struct {
	RemoteCustomerID string
	CustomerName     string
	JobType          string
	Description      string
	TotalAmount      float64
	JobDate          time.Time
	LineItems        []LineItemRequest
}

// LineItemRequest is one billable line on a JobRequest.
type LineItemRequest struct {
	Description string
	Quantity    float64
	UnitCost    float64
	Total       float64
}

// Invoice is a QuickBooks invoice as returned by ListInvoices.
type Invoice struct {
	ID           string    `json:"id"`
	CustomerName string    `json:"customer_name"`
	Amount       float64   `json:"amount"`
	Date         time.Time `json:"date"`
	Status       string    `json:"status"`
	Description  string    `json:"description"`
}

// entityRef is the id-bearing part of a QuickBooks entity response.
type entityRef struct {
	ID string `json:"Id"`
}

// salesLine is one line of an invoice or estimate payload.
type salesLine struct {
	Amount     float64         `json:"Amount"`
	DetailType string          `json:"DetailType"`
	Detail     salesLineDetail `json:"SalesItemLineDetail"`
}

type salesLineDetail struct {
	Qty       float64 `json:"Qty"`
	UnitPrice float64 `json:"UnitPrice"`
	ItemRef   ref     `json:"ItemRef"`
}

type ref struct {
	Value string `json:"value"`
}

// customerPayload is the create-customer request body.
type customerPayload struct {
	GivenName        string        `json:"GivenName"`
	FamilyName       string        `json:"FamilyName"`
	CompanyName      string        `json:"CompanyName"`
	PrimaryEmailAddr *emailAddress `json:"PrimaryEmailAddr,omitempty"`
	PrimaryPhone     *phoneNumber  `json:"PrimaryPhone,omitempty"`
}

type emailAddress struct {
	Address string `json:"Address"`
}

type phoneNumber struct {
	FreeFormNumber string `json:"FreeFormNumber"`
}

// salesPayload is the create-invoice / create-estimate request body.
type salesPayload struct {
	Line        []salesLine `json:"Line"`
	CustomerRef ref         `json:"CustomerRef"`
}
