package api

import (
	"context"
	"net/url"

	"garagelink.app/client/internal/core/domain"
)

func (c *Client) GetProfile(ctx context.Context) (*domain.User, error) {
	var user domain.User
	if err := c.getJSON(ctx, "/profile", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ListAppointments returns the caller's appointments, optionally filtered
// by status.
func (c *Client) ListAppointments(ctx context.Context, status domain.AppointmentStatus) ([]domain.Appointment, error) {
	var query url.Values
	if status != "" {
		query = url.Values{"status": {string(status)}}
	}
	var out []domain.Appointment
	if err := c.getJSON(ctx, "/appointments", query, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) CreateAppointment(ctx context.Context, in domain.NewAppointment) (*domain.Appointment, error) {
	var out domain.Appointment
	if err := c.postJSON(ctx, "/appointments", in, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CancelAppointment(ctx context.Context, id string) (*domain.Appointment, error) {
	var out domain.Appointment
	if err := c.postJSON(ctx, "/appointments/"+url.PathEscape(id)+"/cancel", struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ListParts(ctx context.Context, search string) ([]domain.Part, error) {
	var query url.Values
	if search != "" {
		query = url.Values{"q": {search}}
	}
	var out []domain.Part
	if err := c.getJSON(ctx, "/parts", query, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) ListMessages(ctx context.Context, threadID string) ([]domain.Message, error) {
	var out []domain.Message
	if err := c.getJSON(ctx, "/messages", url.Values{"thread": {threadID}}, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SendMessage(ctx context.Context, threadID, body string) (*domain.Message, error) {
	var out domain.Message
	payload := map[string]string{"threadId": threadID, "body": body}
	if err := c.postJSON(ctx, "/messages", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RateService(ctx context.Context, rating domain.Rating) error {
	return c.postJSON(ctx, "/ratings", rating, nil)
}

func (c *Client) GetWallet(ctx context.Context) (*domain.Wallet, error) {
	var out domain.Wallet
	if err := c.getJSON(ctx, "/wallet", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
