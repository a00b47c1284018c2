// Package backend is the client for the external clinic REST API. All
// clinical records of truth (patients, visits, receipts, billing, services,
// settings) live behind this API; this service orchestrates it.
package backend

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
)

// APIError is a non-2xx backend response decoded from its JSON {message}
// body.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("backend: %d %s", e.Status, e.Message)
}

// Client talks to the clinic REST backend.
type Client struct {
	http   *resty.Client
	logger zerolog.Logger
}

func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	http := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetRetryCount(2).
		SetRetryWaitTime(500 * time.Millisecond).
		SetRetryMaxWaitTime(3 * time.Second).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &Client{
		http:   http,
		logger: logger.With().Str("component", "backend").Logger(),
	}
}

// request returns a prepared request with an error sink attached.
func (c *Client) request(ctx context.Context, apiErr *APIError) *resty.Request {
	return c.http.R().SetContext(ctx).SetError(apiErr)
}

// check converts a completed response into an error when the backend answered
// outside 2xx.
func check(resp *resty.Response, err error, apiErr *APIError) error {
	if err != nil {
		return fmt.Errorf("backend request: %w", err)
	}
	if resp.IsError() {
		apiErr.Status = resp.StatusCode()
		if apiErr.Message == "" {
			apiErr.Message = resp.Status()
		}
		return apiErr
	}
	return nil
}

// -- Patients --

func (c *Client) ListPatients(ctx context.Context, q PatientQuery) ([]Patient, error) {
	params := map[string]string{"doctor_id": q.DoctorID}
	if q.Search != "" {
		params["search"] = q.Search
	}
	if q.FromDate != "" {
		params["from"] = q.FromDate
	}
	if q.ToDate != "" {
		params["to"] = q.ToDate
	}
	if q.Limit > 0 {
		params["limit"] = strconv.Itoa(q.Limit)
		params["offset"] = strconv.Itoa(q.Offset)
	}

	var patients []Patient
	apiErr := &APIError{}
	resp, err := c.request(ctx, apiErr).
		SetQueryParams(params).
		SetResult(&patients).
		Get("/patients")
	if err := check(resp, err, apiErr); err != nil {
		return nil, err
	}
	return patients, nil
}

func (c *Client) GetPatient(ctx context.Context, id int64) (*Patient, error) {
	var patient Patient
	apiErr := &APIError{}
	resp, err := c.request(ctx, apiErr).
		SetResult(&patient).
		Get(fmt.Sprintf("/patients/%d", id))
	if err := check(resp, err, apiErr); err != nil {
		return nil, err
	}
	return &patient, nil
}

// -- Visits & receipts --

func (c *Client) CreateVisit(ctx context.Context, patientID int64, visit *Visit) (*Visit, error) {
	var created Visit
	apiErr := &APIError{}
	resp, err := c.request(ctx, apiErr).
		SetBody(visit).
		SetResult(&created).
		Post(fmt.Sprintf("/patients/%d/visits", patientID))
	if err := check(resp, err, apiErr); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) AppendReceipt(ctx context.Context, visitID int64, receipt *Receipt) (*Receipt, error) {
	var created Receipt
	apiErr := &APIError{}
	resp, err := c.request(ctx, apiErr).
		SetBody(receipt).
		SetResult(&created).
		Post(fmt.Sprintf("/visits/%d/receipts", visitID))
	if err := check(resp, err, apiErr); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) SetVisitType(ctx context.Context, visitID int64, visitType string) error {
	apiErr := &APIError{}
	resp, err := c.request(ctx, apiErr).
		SetBody(map[string]string{"visit_type": visitType}).
		Put(fmt.Sprintf("/visits/%d/type", visitID))
	return check(resp, err, apiErr)
}

// -- Billing --

func (c *Client) CreateBill(ctx context.Context, bill *Bill) (*Bill, error) {
	var created Bill
	apiErr := &APIError{}
	resp, err := c.request(ctx, apiErr).
		SetBody(bill).
		SetResult(&created).
		Post("/bills")
	if err := check(resp, err, apiErr); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) ListBillsByVisit(ctx context.Context, visitID int64) ([]Bill, error) {
	var bills []Bill
	apiErr := &APIError{}
	resp, err := c.request(ctx, apiErr).
		SetResult(&bills).
		Get(fmt.Sprintf("/visits/%d/bills", visitID))
	if err := check(resp, err, apiErr); err != nil {
		return nil, err
	}
	return bills, nil
}

// -- Services --

func (c *Client) ListServices(ctx context.Context, external bool) ([]ServiceItem, error) {
	path := "/services"
	if external {
		path = "/external-lab-services"
	}
	var items []ServiceItem
	apiErr := &APIError{}
	resp, err := c.request(ctx, apiErr).
		SetResult(&items).
		Get(path)
	if err := check(resp, err, apiErr); err != nil {
		return nil, err
	}
	return items, nil
}

func (c *Client) CreateService(ctx context.Context, external bool, item *ServiceItem) (*ServiceItem, error) {
	path := "/services"
	if external {
		path = "/external-lab-services"
	}
	var created ServiceItem
	apiErr := &APIError{}
	resp, err := c.request(ctx, apiErr).
		SetBody(item).
		SetResult(&created).
		Post(path)
	if err := check(resp, err, apiErr); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) UpdateService(ctx context.Context, external bool, item *ServiceItem) error {
	path := fmt.Sprintf("/services/%d", item.ID)
	if external {
		path = fmt.Sprintf("/external-lab-services/%d", item.ID)
	}
	apiErr := &APIError{}
	resp, err := c.request(ctx, apiErr).
		SetBody(item).
		Put(path)
	return check(resp, err, apiErr)
}

func (c *Client) DeleteService(ctx context.Context, external bool, id int64) error {
	path := fmt.Sprintf("/services/%d", id)
	if external {
		path = fmt.Sprintf("/external-lab-services/%d", id)
	}
	apiErr := &APIError{}
	resp, err := c.request(ctx, apiErr).
		Delete(path)
	return check(resp, err, apiErr)
}

// -- Doctor settings --

func (c *Client) GetDoctorSettings(ctx context.Context, doctorID string) (*DoctorSettings, error) {
	var settings DoctorSettings
	apiErr := &APIError{}
	resp, err := c.request(ctx, apiErr).
		SetResult(&settings).
		Get(fmt.Sprintf("/doctors/%s/settings", doctorID))
	if err := check(resp, err, apiErr); err != nil {
		return nil, err
	}
	return &settings, nil
}

func (c *Client) PutDoctorSettings(ctx context.Context, settings *DoctorSettings) error {
	apiErr := &APIError{}
	resp, err := c.request(ctx, apiErr).
		SetBody(settings).
		Put(fmt.Sprintf("/doctors/%s/settings", settings.DoctorID))
	return check(resp, err, apiErr)
}

// -- Medical history --

func (c *Client) ListHistoryTemplates(ctx context.Context) ([]HistoryTemplate, error) {
	var templates []HistoryTemplate
	apiErr := &APIError{}
	resp, err := c.request(ctx, apiErr).
		SetResult(&templates).
		Get("/medical-history/templates")
	if err := check(resp, err, apiErr); err != nil {
		return nil, err
	}
	return templates, nil
}

func (c *Client) CreateHistoryRecord(ctx context.Context, record *HistoryRecord) (*HistoryRecord, error) {
	var created HistoryRecord
	apiErr := &APIError{}
	resp, err := c.request(ctx, apiErr).
		SetBody(record).
		SetResult(&created).
		Post("/medical-history/records")
	if err := check(resp, err, apiErr); err != nil {
		return nil, err
	}
	return &created, nil
}

// -- Analytics --

func (c *Client) RevenueRollup(ctx context.Context, doctorID, from, to string) ([]RevenueRow, error) {
	var rows []RevenueRow
	apiErr := &APIError{}
	resp, err := c.request(ctx, apiErr).
		SetQueryParams(map[string]string{
			"doctor_id": doctorID,
			"from":      from,
			"to":        to,
		}).
		SetResult(&rows).
		Get("/analytics/revenue")
	if err := check(resp, err, apiErr); err != nil {
		return nil, err
	}
	return rows, nil
}
