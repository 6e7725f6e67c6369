package ui

import "time"

// NotificationType is the severity of a notification.
type NotificationType string

const (
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
	NotificationInfo    NotificationType = "info"
	NotificationWarning NotificationType = "warning"
)

// Notification is a transient user facing message.
type Notification struct {
	ID        string           `json:"id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title,omitempty"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
}

// Success adds a success notification.
func (s *Store) Success(message string) Notification {
	return s.AddNotification(Notification{Type: NotificationSuccess, Message: message})
}

// Error adds an error notification.
func (s *Store) Error(message string) Notification {
	return s.AddNotification(Notification{Type: NotificationError, Message: message})
}

// Info adds an info notification.
func (s *Store) Info(message string) Notification {
	return s.AddNotification(Notification{Type: NotificationInfo, Message: message})
}

// Warning adds a warning notification.
func (s *Store) Warning(message string) Notification {
	return s.AddNotification(Notification{Type: NotificationWarning, Message: message})
}
