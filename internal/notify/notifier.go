package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"registrar/clearance/internal/model"
)

// Notifier informs students about permit transitions. It is informed, not
// consulted: failures never affect the triggering operation.
type Notifier interface {
	PermitIssued(student model.Student, permit model.Permit)
	PermitRevoked(student model.Student, reason string)
}

// SMSNotifier posts to the SMS gateway in a detached goroutine with its own
// timeout, decoupled from the request that triggered it.
type SMSNotifier struct {
	gatewayURL string
	token      string
	senderID   string
	client     *http.Client
}

func NewSMSNotifier(gatewayURL, token, senderID string) *SMSNotifier {
	return &SMSNotifier{
		gatewayURL: gatewayURL,
		token:      token,
		senderID:   senderID,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

func (n *SMSNotifier) PermitIssued(student model.Student, permit model.Permit) {
	message := fmt.Sprintf(
		"Hi %s, your exam permit %s has been issued. It is valid until %s.",
		student.FirstName, permit.PermitCode, permit.ExpiresAt.Format("Jan 2, 2006"),
	)
	n.send(student.PhoneNumber, message)
}

func (n *SMSNotifier) PermitRevoked(student model.Student, reason string) {
	message := fmt.Sprintf(
		"Hi %s, your exam permit has been revoked (%s). Please visit the clearing office.",
		student.FirstName, reason,
	)
	n.send(student.PhoneNumber, message)
}

func (n *SMSNotifier) send(recipient, message string) {
	if recipient == "" {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		payload := map[string]string{
			"recipient": recipient,
			"sender_id": n.senderID,
			"type":      "plain",
			"message":   message,
		}
		body, err := json.Marshal(payload)
		if err != nil {
			log.Printf("sms marshal error: %v", err)
			return
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.gatewayURL, bytes.NewReader(body))
		if err != nil {
			log.Printf("sms request error: %v", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+n.token)

		resp, err := n.client.Do(req)
		if err != nil {
			log.Printf("sms send error: %v", err)
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			log.Printf("sms gateway status %d for recipient %s", resp.StatusCode, recipient)
		}
	}()
}

// NopNotifier is used when no gateway is configured.
type NopNotifier struct{}

func (NopNotifier) PermitIssued(model.Student, model.Permit) {}
func (NopNotifier) PermitRevoked(model.Student, string)      {}
