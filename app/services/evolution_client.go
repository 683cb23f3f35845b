package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/zapflowbr/zapflow/config"
	"github.com/zapflowbr/zapflow/utils"
)

// EvolutionClient talks to an Evolution API gateway. Each connected phone
// number maps to one named instance on the gateway; sending and contact
// pulls are always scoped to an instance.
type EvolutionClient struct {
	config *config.ChannelConfig
	client *http.Client
}

// evolutionSendRequest is the payload for the send-text endpoint
type evolutionSendRequest struct {
	Number string `json:"number"` // Format: 55**********
	Text   string `json:"text"`
}

// evolutionSendResponse is the relevant subset of the gateway's reply
type evolutionSendResponse struct {
	Key struct {
		ID string `json:"id"`
	} `json:"key"`
	Status string `json:"status"`
}

// evolutionContact is one contact entry returned by the gateway
type evolutionContact struct {
	RemoteJID string `json:"remoteJid"` // Format: 55**********@s.whatsapp.net
	PushName  string `json:"pushName"`
}

// NewEvolutionClient creates a new Evolution API client
func NewEvolutionClient(cfg *config.ChannelConfig) *EvolutionClient {
	return &EvolutionClient{
		config: cfg,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// SendText delivers a text message through the named instance
func (e *EvolutionClient) SendText(ctx context.Context, instanceName, phone, body string) (*SendResult, error) {
	payload := evolutionSendRequest{
		Number: phone,
		Text:   body,
	}
	requestBody, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal send request: %w", err)
	}

	url := fmt.Sprintf("%s/message/sendText/%s", e.config.BaseURL, instanceName)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBuffer(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", e.config.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send message through %s: %w", instanceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("gateway rejected send through %s: %d %s", instanceName, resp.StatusCode, string(msg))
	}

	var result evolutionSendResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode send response: %w", err)
	}

	return &SendResult{
		ProviderMessageID: result.Key.ID,
		DeliveredAt:       utils.UTCNow(),
	}, nil
}

// PullContacts fetches the full contact book of the named instance
func (e *EvolutionClient) PullContacts(ctx context.Context, instanceName string) ([]ChannelContact, error) {
	url := fmt.Sprintf("%s/chat/findContacts/%s", e.config.BaseURL, instanceName)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewBufferString("{}"))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", e.config.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to pull contacts from %s: %w", instanceName, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("gateway rejected contact pull from %s: %d %s", instanceName, resp.StatusCode, string(msg))
	}

	var entries []evolutionContact
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("failed to decode contacts response: %w", err)
	}

	contacts := make([]ChannelContact, 0, len(entries))
	for _, entry := range entries {
		phone := entry.RemoteJID
		if at := strings.IndexByte(phone, '@'); at > 0 {
			phone = phone[:at]
		}
		phone = utils.NormalizePhone(phone)
		if !utils.IsValidBrazilianPhone(phone) {
			continue
		}
		contacts = append(contacts, ChannelContact{
			Phone: phone,
			Name:  entry.PushName,
		})
	}
	return contacts, nil
}
