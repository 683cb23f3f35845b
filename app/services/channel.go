// Package services provides external service integrations and technical concerns like channel delivery and tokens
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/zapflowbr/zapflow/utils"
)

// ChannelSender delivers a single message body to a phone number through
// a connected channel instance.
type ChannelSender interface {
	SendText(ctx context.Context, instanceName, phone, body string) (*SendResult, error)
}

// SendResult carries the provider-side identity of a delivered message
type SendResult struct {
	ProviderMessageID string
	DeliveredAt       time.Time
}

// ChannelContact is one entry pulled from a channel instance's contact book
type ChannelContact struct {
	Phone string
	Name  string
}

// ContactPuller reads the contact book of a connected channel instance
type ContactPuller interface {
	PullContacts(ctx context.Context, instanceName string) ([]ChannelContact, error)
}

// MockChannelSender implements ChannelSender and ContactPuller for testing
type MockChannelSender struct {
	SentMessages []MockChannelMessage
	Contacts     map[string][]ChannelContact
	FailWith     error
}

// MockChannelMessage represents a mock channel delivery
type MockChannelMessage struct {
	InstanceName string
	Phone        string
	Body         string
	SentAt       time.Time
}

// NewMockChannelSender creates a new mock channel sender
func NewMockChannelSender() *MockChannelSender {
	return &MockChannelSender{
		SentMessages: make([]MockChannelMessage, 0),
		Contacts:     make(map[string][]ChannelContact),
	}
}

// SendText records a mock delivery
func (m *MockChannelSender) SendText(ctx context.Context, instanceName, phone, body string) (*SendResult, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	now := utils.UTCNow()
	m.SentMessages = append(m.SentMessages, MockChannelMessage{
		InstanceName: instanceName,
		Phone:        phone,
		Body:         body,
		SentAt:       now,
	})
	return &SendResult{
		ProviderMessageID: fmt.Sprintf("mock-%d", len(m.SentMessages)),
		DeliveredAt:       now,
	}, nil
}

// PullContacts returns the contacts registered for an instance
func (m *MockChannelSender) PullContacts(ctx context.Context, instanceName string) ([]ChannelContact, error) {
	if m.FailWith != nil {
		return nil, m.FailWith
	}
	return m.Contacts[instanceName], nil
}

// ClearSentMessages clears the sent messages list
func (m *MockChannelSender) ClearSentMessages() {
	m.SentMessages = make([]MockChannelMessage, 0)
}
