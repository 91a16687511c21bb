// Package notify delivers cascade notices to donor devices and escalations
// to hospital and admin topics through Firebase Cloud Messaging.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"

	"lifelink/internal/modules/cascade"
	"lifelink/internal/modules/hospital"
)

const (
	defaultAdminTopic = "lifelink-admins"
	facilityTopicFmt  = "facility-%s"

	typeDonationRequest = "donation_request"
	typeDonorAccepted   = "donor_accepted"
	typeDonorTimedOut   = "donor_timed_out"
	typeQueueExhausted  = "queue_exhausted"
)

var ErrNoDeviceToken = errors.New("donor has no device token")

// Sender is the subset of *messaging.Client used here.
type Sender interface {
	Send(ctx context.Context, msg *messaging.Message) (string, error)
}

type Config struct {
	AdminTopic string
}

type FCM struct {
	client     Sender
	adminTopic string
	log        *zap.Logger
}

func NewFCM(client Sender, cfg Config, log *zap.Logger) *FCM {
	if cfg.AdminTopic == "" {
		cfg.AdminTopic = defaultAdminTopic
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &FCM{client: client, adminTopic: cfg.AdminTopic, log: log}
}

// NotifyDonor sends the donation request to the donor's device. The
// returned error makes the cascade count the notice as undelivered.
func (f *FCM) NotifyDonor(ctx context.Context, n cascade.Notice) error {
	if n.Donor.DeviceToken == "" {
		return fmt.Errorf("%w: %s", ErrNoDeviceToken, n.Donor.ID)
	}

	data := map[string]string{
		"type":           typeDonationRequest,
		"request_id":     string(n.Request.ID),
		"candidate_id":   string(n.Candidate.ID),
		"blood_type":     n.Request.BloodType.String(),
		"urgency":        string(n.Request.Urgency),
		"units_needed":   strconv.Itoa(n.Request.UnitsNeeded),
		"facility_name":  n.Request.FacilityName,
		"respond_by":     n.RespondBy.UTC().Format(time.RFC3339),
		"priority_order": strconv.Itoa(n.Candidate.PriorityOrder),
	}
	if n.Candidate.DistanceKm != nil {
		data["distance_km"] = strconv.FormatFloat(*n.Candidate.DistanceKm, 'f', 1, 64)
	}

	msg := &messaging.Message{
		Token: n.Donor.DeviceToken,
		Data:  data,
		Notification: &messaging.Notification{
			Title: fmt.Sprintf("%s blood needed", n.Request.BloodType),
			Body:  fmt.Sprintf("%s needs %d unit(s). Please respond by %s.", facilityLabel(n.Request), n.Request.UnitsNeeded, n.RespondBy.UTC().Format("15:04 MST")),
		},
		Android: &messaging.AndroidConfig{
			Priority: "high",
			TTL:      ttl(n.RespondBy),
		},
	}

	id, err := f.client.Send(ctx, msg)
	if err != nil {
		return fmt.Errorf("sending FCM to donor %s: %w", n.Donor.ID, err)
	}
	f.log.Debug("fcm donor notice sent",
		zap.String("request_id", string(n.Request.ID)),
		zap.String("candidate_id", string(n.Candidate.ID)),
		zap.String("message_id", id),
	)
	return nil
}

func (f *FCM) DonorAccepted(ctx context.Context, req hospital.BloodRequest, c cascade.Candidate) {
	f.publish(ctx, facilityTopic(req), &messaging.Notification{
		Title: "Donor confirmed",
		Body:  fmt.Sprintf("A %s donor accepted the request for %s.", req.BloodType, req.PatientName),
	}, map[string]string{
		"type":         typeDonorAccepted,
		"request_id":   string(req.ID),
		"candidate_id": string(c.ID),
		"donor_id":     string(c.DonorID),
	})
}

// DonorTimedOut tells the facility and the admins that a donor let the
// response window lapse.
func (f *FCM) DonorTimedOut(ctx context.Context, req hospital.BloodRequest, timedOut cascade.Candidate, next *cascade.Candidate) {
	data := map[string]string{
		"type":         typeDonorTimedOut,
		"request_id":   string(req.ID),
		"candidate_id": string(timedOut.ID),
	}
	body := "A donor did not respond in time. Trying the next donor."
	if next != nil {
		data["next_candidate_id"] = string(next.ID)
	} else {
		body = "A donor did not respond in time and no donors remain in the queue."
	}
	n := &messaging.Notification{Title: "Donor timed out", Body: body}
	f.publish(ctx, facilityTopic(req), n, data)
	f.publish(ctx, f.adminTopic, n, data)
}

// QueueExhausted alerts both the facility and the admin topic.
func (f *FCM) QueueExhausted(ctx context.Context, req hospital.BloodRequest) {
	n := &messaging.Notification{
		Title: fmt.Sprintf("No %s donors left", req.BloodType),
		Body:  fmt.Sprintf("Every matched donor for %s has declined or timed out. Manual follow-up needed.", facilityLabel(req)),
	}
	data := map[string]string{
		"type":       typeQueueExhausted,
		"request_id": string(req.ID),
		"urgency":    string(req.Urgency),
	}
	f.publish(ctx, facilityTopic(req), n, data)
	f.publish(ctx, f.adminTopic, n, data)
}

// publish sends to a topic. Escalations are best effort, failures are logged.
func (f *FCM) publish(ctx context.Context, topic string, n *messaging.Notification, data map[string]string) {
	id, err := f.client.Send(ctx, &messaging.Message{
		Topic:        topic,
		Data:         data,
		Notification: n,
		Android:      &messaging.AndroidConfig{Priority: "high"},
	})
	if err != nil {
		f.log.Warn("fcm topic send failed", zap.String("topic", topic), zap.String("type", data["type"]), zap.Error(err))
		return
	}
	f.log.Debug("fcm topic sent", zap.String("topic", topic), zap.String("type", data["type"]), zap.String("message_id", id))
}

func facilityTopic(req hospital.BloodRequest) string {
	return fmt.Sprintf(facilityTopicFmt, req.FacilityID)
}

func facilityLabel(req hospital.BloodRequest) string {
	if req.FacilityName != "" {
		return req.FacilityName
	}
	return "A hospital near you"
}

// ttl keeps undelivered notices from arriving after the response window.
func ttl(deadline time.Time) *time.Duration {
	d := time.Until(deadline)
	if d <= 0 {
		return nil
	}
	return &d
}
