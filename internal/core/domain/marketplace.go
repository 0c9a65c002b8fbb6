package domain

import "time"

// AppointmentStatus is the lifecycle of a service booking.
type AppointmentStatus string

const (
	AppointmentRequested AppointmentStatus = "requested"
	AppointmentConfirmed AppointmentStatus = "confirmed"
	AppointmentCompleted AppointmentStatus = "completed"
	AppointmentCancelled AppointmentStatus = "cancelled"
)

// Appointment is a service booking between a driver and a mechanic.
type Appointment struct {
	ID          string            `json:"id"`
	DriverID    string            `json:"driverId"`
	MechanicID  string            `json:"mechanicId"`
	Service     string            `json:"service"`
	ScheduledAt time.Time         `json:"scheduledAt"`
	Status      AppointmentStatus `json:"status"`
	Notes       string            `json:"notes,omitempty"`
}

// NewAppointment is the body of a booking request.
type NewAppointment struct {
	MechanicID  string    `json:"mechanicId"`
	Service     string    `json:"service"`
	ScheduledAt time.Time `json:"scheduledAt"`
	Notes       string    `json:"notes,omitempty"`
}

// Part is a catalogue entry offered by a mechanic.
type Part struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"priceCents"`
	InStock    bool   `json:"inStock"`
}

// Message is one entry of a conversation thread.
type Message struct {
	ID       string    `json:"id"`
	ThreadID string    `json:"threadId"`
	SenderID string    `json:"senderId"`
	Body     string    `json:"body"`
	SentAt   time.Time `json:"sentAt"`
}

// Rating is a driver's review of a completed appointment.
type Rating struct {
	AppointmentID string `json:"appointmentId"`
	Stars         int    `json:"stars"`
	Comment       string `json:"comment,omitempty"`
}

// Wallet is the account balance of the signed-in user.
type Wallet struct {
	BalanceCents int64  `json:"balanceCents"`
	Currency     string `json:"currency"`
}
