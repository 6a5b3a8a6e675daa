package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"laundry/pkg/availability"
	"laundry/pkg/model"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

// ConflictError is returned when the store refuses a reservation because the window
// is already taken.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Message
}

// StatusError is any other non-2xx answer from the store.
type StatusError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("failed to %s: status %d: %s", e.Op, e.StatusCode, e.Message)
}

// LaundryClient talks to the reservation store over HTTP.
type LaundryClient struct {
	httpClient *HttpClient
}

func NewLaundryClient(baseURL string) *LaundryClient {
	return &LaundryClient{httpClient: NewHttpClient(baseURL)}
}

func NewLaundryClientWith(httpClient *HttpClient) *LaundryClient {
	return &LaundryClient{httpClient: httpClient}
}

// WaitForHealthy polls the store's health endpoint until it answers 200 or maxWait elapses.
func (c *LaundryClient) WaitForHealthy(ctx context.Context, maxWait time.Duration) error {
	return c.httpClient.WaitForHealthy(ctx, maxWait)
}

func (c *LaundryClient) ListMachines(ctx context.Context) ([]*model.Machine, error) {
	resp, err := c.httpClient.GET(ctx, "/machines")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch machines: %w", err)
	}
	if err := checkResponse("fetch machines", resp); err != nil {
		return nil, err
	}

	machines := make([]*model.Machine, 0)
	if err := resp.DecodeJSON(&machines); err != nil {
		return nil, fmt.Errorf("failed to decode machines: %w", err)
	}
	return machines, nil
}

func (c *LaundryClient) Overview(ctx context.Context) ([]*model.MachineOverview, error) {
	resp, err := c.httpClient.GET(ctx, "/overview")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch overview: %w", err)
	}
	if err := checkResponse("fetch overview", resp); err != nil {
		return nil, err
	}

	overview := make([]*model.MachineOverview, 0)
	if err := resp.DecodeJSON(&overview); err != nil {
		return nil, fmt.Errorf("failed to decode overview: %w", err)
	}
	return overview, nil
}

func (c *LaundryClient) ListReservations(ctx context.Context, filter model.ReservationFilter) ([]*model.Reservation, error) {
	q := url.Values{}
	if filter.Status != "" {
		q.Set("status", filter.Status)
	}
	if filter.MachineID != "" {
		q.Set("machineId", filter.MachineID)
	}
	if filter.ResidentID != "" {
		q.Set("residentId", filter.ResidentID)
	}

	path := "/reservations"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	resp, err := c.httpClient.GET(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reservations: %w", err)
	}
	if err := checkResponse("fetch reservations", resp); err != nil {
		return nil, err
	}

	reservations := make([]*model.Reservation, 0)
	if err := resp.DecodeJSON(&reservations); err != nil {
		return nil, fmt.Errorf("failed to decode reservations: %w", err)
	}
	return reservations, nil
}

// ListActive returns the ACTIVE reservations of one machine, ascending by start.
func (c *LaundryClient) ListActive(ctx context.Context, machineID string) ([]*model.Reservation, error) {
	return c.ListReservations(ctx, model.ReservationFilter{
		Status:    model.ReservationActive,
		MachineID: machineID,
	})
}

func (c *LaundryClient) GetReservation(ctx context.Context, id string) (*model.Reservation, error) {
	resp, err := c.httpClient.GET(ctx, "/reservations/"+url.PathEscape(id))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch reservation: %w", err)
	}
	if err := checkResponse("fetch reservation", resp); err != nil {
		return nil, err
	}

	var reservation model.Reservation
	if err := resp.DecodeJSON(&reservation); err != nil {
		return nil, fmt.Errorf("failed to decode reservation: %w", err)
	}
	return &reservation, nil
}

func (c *LaundryClient) Create(ctx context.Context, req *model.ReservationRequest) (*model.Reservation, error) {
	headers := map[string]string{
		"Idempotency-Key":    uuid.NewString(),
		"X-Apartment-Number": req.ApartmentNumber,
	}
	resp, err := c.httpClient.POSTWithHeaders(ctx, "/reservations", req, headers)
	if err != nil {
		return nil, fmt.Errorf("failed to create reservation: %w", err)
	}
	if err := checkResponse("create reservation", resp); err != nil {
		return nil, err
	}

	var reservation model.Reservation
	if err := resp.DecodeJSON(&reservation); err != nil {
		return nil, fmt.Errorf("failed to decode created reservation: %w", err)
	}
	return &reservation, nil
}

func (c *LaundryClient) UpdateStatus(ctx context.Context, id string, status string) (*model.Reservation, error) {
	resp, err := c.httpClient.PATCH(ctx, "/reservations/"+url.PathEscape(id), model.ReservationUpdate{Status: status})
	if err != nil {
		return nil, fmt.Errorf("failed to update reservation: %w", err)
	}
	if err := checkResponse("update reservation", resp); err != nil {
		return nil, err
	}

	var reservation model.Reservation
	if err := resp.DecodeJSON(&reservation); err != nil {
		return nil, fmt.Errorf("failed to decode updated reservation: %w", err)
	}
	return &reservation, nil
}

func (c *LaundryClient) Delete(ctx context.Context, id string) error {
	resp, err := c.httpClient.DELETE(ctx, "/reservations/"+url.PathEscape(id))
	if err != nil {
		return fmt.Errorf("failed to delete reservation: %w", err)
	}
	return checkResponse("delete reservation", resp)
}

func (c *LaundryClient) Availability(ctx context.Context, machineID string, date string) (*availability.DayView, error) {
	path := fmt.Sprintf("/machines/%s/availability?date=%s", url.PathEscape(machineID), url.QueryEscape(date))
	resp, err := c.httpClient.GET(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch availability: %w", err)
	}
	if err := checkResponse("fetch availability", resp); err != nil {
		return nil, err
	}

	var view availability.DayView
	if err := resp.DecodeJSON(&view); err != nil {
		return nil, fmt.Errorf("failed to decode availability: %w", err)
	}
	return &view, nil
}

func checkResponse(op string, resp *Response) error {
	if resp.IsSuccess() {
		return nil
	}
	msg := GetErrorMessage(resp)
	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("failed to %s: %w: %s", op, ErrNotFound, msg)
	case http.StatusConflict:
		return &ConflictError{Message: msg}
	default:
		return &StatusError{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}
}
