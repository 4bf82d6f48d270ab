// internal/workers/itinerary/notify-itinerary/models.go
package notifyitinerary

type Input struct {
	ItineraryID string `json:"itineraryId"`
	Email       string `json:"email,omitempty"`
	Phone       string `json:"phone,omitempty"`
	// Format of the email body: text (default) or markdown.
	Format string `json:"format,omitempty"`
}

type Output struct {
	NotificationID string `json:"notificationId"`
	Status         string `json:"status"` // "sent", "failed", "disabled"
	EmailSent      bool   `json:"emailSent"`
	SMSSent        bool   `json:"smsSent"`
	SentAt         string `json:"sentAt"` // ISO 8601
	ErrorCode      string `json:"errorCode,omitempty"`
	ErrorDetails   string `json:"errorDetails,omitempty"`
}

// Statuses
const (
	StatusSent     = "sent"
	StatusFailed   = "failed"
	StatusDisabled = "disabled"
)
