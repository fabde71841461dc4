package telegram

import "context"

// Message is a short report; the title is sent bold, lines as plain text.
type Message struct {
	Title string
	Lines []string
}

//go:generate go run go.uber.org/mock/mockgen -source=telegram.go -destination=mocks/mock.go
type Notifier interface {
	// Notify delivers msg to the configured chat. Delivery problems are
	// returned so callers can log them; they never fail a command.
	Notify(ctx context.Context, msg Message) error
}
