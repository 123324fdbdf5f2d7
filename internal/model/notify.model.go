package model

import "time"

type NotifyStatus string

const (
	NotifyStatusInProgress NotifyStatus = "En Proceso"
	NotifyStatusCompleted  NotifyStatus = "Finalizado"
	NotifyStatusError      NotifyStatus = "Error"
)

const NotifyTypeScheduled = "Mensajes Programados"

// Notify is an audit record shown to operators.
type Notify struct {
	ID        int64        `json:"id"`
	Title     string       `json:"title"`
	Message   string       `json:"message"`
	Status    NotifyStatus `json:"status"`
	Type      string       `json:"type"`
	UserID    int64        `json:"user_id"`
	CreatedAt time.Time    `json:"created_at"`
}

// NotifyFilter controls List queries.
type NotifyFilter struct {
	UserID *int64
	Limit  int // default 50
}

const (
	EventNotify   = "notify"
	EventProgress = "SMessage"
)

// ProgressEvent is pushed to connected clients while a campaign is sent.
type ProgressEvent struct {
	Type       string `json:"type"`
	CalendarID int64  `json:"calendarId"`
	Title      string `json:"title"`
	InProgress int64  `json:"inProgress"`
	Total      int64  `json:"total"`
}

// StreamEvent is a progress event read back from the event stream.
type StreamEvent struct {
	ID string `json:"id"`
	ProgressEvent
}
