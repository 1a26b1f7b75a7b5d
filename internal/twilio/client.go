package twilio

import (
	"encoding/xml"
	"fmt"
	"strings"

	twilio "github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Client wraps the Twilio voice operations required by the reminder manager.
type Client struct {
	client     *twilio.RestClient
	fromNumber string
}

// New creates a Twilio client bound to the configured caller number.
func New(accountSID, authToken, fromNumber string) *Client {
	return &Client{
		client:     twilio.NewRestClientWithParams(twilio.ClientParams{Username: accountSID, Password: authToken}),
		fromNumber: fromNumber,
	}
}

// PlaceCall dials the recipient and reads the reminder out loud. It returns
// the call SID on success.
func (c *Client) PlaceCall(to, title, description string) (string, error) {
	if c.client == nil {
		return "", fmt.Errorf("twilio client not initialised")
	}

	caller := normalizeNumber(c.fromNumber)
	if caller == "" {
		return "", fmt.Errorf("twilio caller number is not configured")
	}

	recipient := normalizeNumber(to)
	if recipient == "" {
		return "", fmt.Errorf("recipient number missing or invalid")
	}

	params := &openapi.CreateCallParams{}
	params.SetTo(recipient)
	params.SetFrom(caller)
	params.SetTwiml(callScript(title, description))

	resp, err := c.client.Api.CreateCall(params)
	if err != nil {
		return "", fmt.Errorf("twilio create call error: %w", err)
	}
	if resp.Sid == nil {
		return "", fmt.Errorf("twilio create call returned no SID")
	}
	return *resp.Sid, nil
}

// callScript builds the TwiML the recipient hears.
func callScript(title, description string) string {
	message := fmt.Sprintf("Hello, this is your reminder assistant calling you about: %s.", title)
	if strings.TrimSpace(description) != "" {
		message += fmt.Sprintf(" Here are the details: %s.", description)
	}

	var escaped strings.Builder
	_ = xml.EscapeText(&escaped, []byte(message))
	return fmt.Sprintf("<Response><Say>%s</Say></Response>", escaped.String())
}

func normalizeNumber(number string) string {
	trimmed := strings.TrimSpace(number)
	if trimmed == "" {
		return ""
	}
	if strings.HasPrefix(trimmed, "+") {
		return trimmed
	}
	return "+" + trimmed
}
