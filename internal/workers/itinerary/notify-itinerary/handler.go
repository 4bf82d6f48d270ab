// internal/workers/itinerary/notify-itinerary/handler.go
package notifyitinerary

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	snstypes "github.com/aws/aws-sdk-go-v2/service/sns/types"
	"github.com/camunda/zeebe/clients/go/v8/pkg/entities"
	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/google/uuid"

	apperrors "itinerary-workers/internal/common/errors"
	"itinerary-workers/internal/common/logger"
	"itinerary-workers/internal/common/metrics"
	"itinerary-workers/internal/models"
	"itinerary-workers/internal/pipeline/export"
	"itinerary-workers/internal/store"
)

const (
	TaskType = "notify-itinerary"
)

// Define interfaces for mocking
type SESService interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

type SNSService interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

type ItineraryLoader interface {
	Load(ctx context.Context, id string) (*store.Record, error)
}

type Handler struct {
	config     *Config
	archive    ItineraryLoader
	sesClient  SESService
	snsClient  SNSService
	errHandler *apperrors.ErrorHandler
	logger     logger.Logger
}

func NewHandler(config *Config, archive ItineraryLoader, sesClient SESService, snsClient SNSService, log logger.Logger) *Handler {
	l := log.WithFields(map[string]interface{}{"taskType": TaskType})
	return &Handler{
		config:     config,
		archive:    archive,
		sesClient:  sesClient,
		snsClient:  snsClient,
		errHandler: apperrors.NewErrorHandler(l),
		logger:     l,
	}
}

func (h *Handler) Handle(client worker.JobClient, job entities.Job) {
	started := time.Now()
	h.logger.Info("processing job", map[string]interface{}{
		"jobKey":      job.Key,
		"workflowKey": job.ProcessInstanceKey,
	})

	var input Input
	if err := json.Unmarshal([]byte(job.Variables), &input); err != nil {
		h.fail(client, job, apperrors.NewParseError(err), started)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), h.config.Timeout)
	defer cancel()

	output, err := h.execute(ctx, &input)
	if err != nil {
		h.fail(client, job, err, started)
		return
	}

	h.completeJob(client, job, output)
	metrics.JobCompleted(TaskType, started)
}

func (h *Handler) execute(ctx context.Context, input *Input) (*Output, error) {
	if input == nil || input.ItineraryID == "" {
		return nil, apperrors.NewInvalidInputError("itineraryId is required")
	}

	sentAt := time.Now().UTC().Format(time.RFC3339)
	notificationID := uuid.New().String()

	wantEmail := h.config.EmailEnabled && input.Email != ""
	wantSMS := h.config.SMSEnabled && input.Phone != ""
	if !wantEmail && !wantSMS {
		h.logger.Warn("no enabled channel for recipient", map[string]interface{}{
			"itineraryId": input.ItineraryID,
		})
		return &Output{NotificationID: notificationID, Status: StatusDisabled, SentAt: sentAt}, nil
	}

	rec, err := h.archive.Load(ctx, input.ItineraryID)
	if err != nil {
		return nil, err
	}
	it := rec.Itinerary

	format := input.Format
	if format == "" {
		format = string(export.FormatText)
	}
	body, err := export.Export(it, format)
	if err != nil {
		return nil, err
	}

	out := &Output{NotificationID: notificationID, SentAt: sentAt}

	if wantEmail {
		if err := h.sendEmail(ctx, input.Email, emailSubject(it), body); err != nil {
			h.failNotification(out, input.ItineraryID, apperrors.NewNotificationFailedError("email", err))
			return out, nil
		}
		out.EmailSent = true
	}

	if wantSMS {
		if err := h.sendSMS(ctx, input.Phone, smsSummary(it)); err != nil {
			h.failNotification(out, input.ItineraryID, apperrors.NewNotificationFailedError("sms", err))
			return out, nil
		}
		out.SMSSent = true
	}

	out.Status = StatusSent
	h.logger.Info("itinerary delivered", map[string]interface{}{
		"itineraryId":    input.ItineraryID,
		"notificationId": notificationID,
		"emailSent":      out.EmailSent,
		"smsSent":        out.SMSSent,
	})
	return out, nil
}

func (h *Handler) failNotification(out *Output, itineraryID string, err *apperrors.StandardError) {
	h.logger.Error("notification send failed", map[string]interface{}{
		"error":       err,
		"details":     err.Details,
		"itineraryId": itineraryID,
	})
	out.Status = StatusFailed
	out.ErrorCode = string(err.Code)
	out.ErrorDetails = err.Details
}

func (h *Handler) sendEmail(ctx context.Context, to, subject, body string) error {
	_, err := h.sesClient.SendEmail(ctx, &ses.SendEmailInput{
		Destination: &types.Destination{
			ToAddresses: []string{to},
		},
		Message: &types.Message{
			Subject: &types.Content{Data: aws.String(subject)},
			Body: &types.Body{
				Text: &types.Content{Data: aws.String(body)},
			},
		},
		Source: aws.String(h.config.FromEmail),
	})
	return err
}

func (h *Handler) sendSMS(ctx context.Context, to, message string) error {
	in := &sns.PublishInput{
		PhoneNumber: aws.String(to),
		Message:     aws.String(message),
	}
	if h.config.SenderID != "" {
		in.MessageAttributes = map[string]snstypes.MessageAttributeValue{
			"AWS.SNS.SMS.SenderID": {
				DataType:    aws.String("String"),
				StringValue: aws.String(h.config.SenderID),
			},
		}
	}
	_, err := h.snsClient.Publish(ctx, in)
	return err
}

func emailSubject(it *models.Itinerary) string {
	return fmt.Sprintf("Your itinerary: %s", it.Title)
}

// smsSummary fits the itinerary headline into one SMS segment where possible.
func smsSummary(it *models.Itinerary) string {
	cur := it.Currency
	if cur == "" {
		cur = "INR"
	}
	msg := fmt.Sprintf("%s: %d day(s) in %s for %d, total %s %s.",
		it.Title, len(it.Days), it.Location, it.Participants,
		cur, strconv.FormatFloat(it.TotalBudget.Float(), 'f', -1, 64))
	if len(msg) > 160 {
		msg = strings.TrimSpace(msg[:157]) + "..."
	}
	return msg
}

func (h *Handler) completeJob(client worker.JobClient, job entities.Job, output *Output) {
	cmd, err := client.NewCompleteJobCommand().
		JobKey(job.Key).
		VariablesFromObject(output)
	if err != nil {
		h.logger.Error("failed to create complete job command", map[string]interface{}{
			"error": err,
		})
		return
	}
	_, err = cmd.Send(context.Background())
	if err != nil {
		h.logger.Error("failed to send complete job command", map[string]interface{}{
			"error": err,
		})
	}
}

func (h *Handler) fail(client worker.JobClient, job entities.Job, err error, started time.Time) {
	metrics.JobFailed(TaskType, string(apperrors.CodeOf(err)), started)
	h.errHandler.HandleJobError(context.Background(), client, job, err)
}

func (h *Handler) Execute(ctx context.Context, input *Input) (*Output, error) {
	return h.execute(ctx, input)
}
