package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"

	"github.com/simonmuehling/educafric-platform-sub005/core"
)

// Client sends text messages through the WhatsApp Cloud API.
type Client struct {
	baseURL       string
	accessToken   string
	phoneNumberID string
	http          *http.Client
}

func NewClient(conf *core.Config) *Client {
	return &Client{
		baseURL:       strings.TrimRight(conf.WhatsApp.BaseURL, "/"),
		accessToken:   conf.WhatsApp.AccessToken,
		phoneNumberID: conf.WhatsApp.PhoneNumberID,
		http:          &http.Client{Timeout: conf.WhatsApp.Timeout},
	}
}

type textMessage struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

type apiError struct {
	Error struct {
		Message string `json:"message"`
		Code    int    `json:"code"`
	} `json:"error"`
}

// NormalizePhone strips everything but digits, as expected by the API ("+237 6 99-00" -> "23769900").
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func (c *Client) SendText(ctx context.Context, to, body string) error {
	msg := textMessage{MessagingProduct: "whatsapp", To: NormalizePhone(to), Type: "text"}
	msg.Text.Body = body
	if msg.To == "" {
		return errors.Errorf("invalid phone number %q", to)
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "encoding message")
	}
	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "sending whatsapp message")
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		var apiErr apiError
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return errors.Errorf("whatsapp api: %d: %s", res.StatusCode, apiErr.Error.Message)
		}
		return errors.Errorf("whatsapp api: %d: %s", res.StatusCode, strings.TrimSpace(string(raw)))
	}
	return nil
}
