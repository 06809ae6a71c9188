package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/telehostca/chatbot-backend/internal/logger"
)

// Channel delivers outbound text to a customer. Delivery is fire-and-forget for the engine.
type Channel interface {
	Send(ctx context.Context, to, text string) error
	Name() string
}

// TwilioChannel sends WhatsApp messages through the Twilio REST API
type TwilioChannel struct {
	client *twilio.RestClient
	from   string // whatsapp:+14155238886
	log    *logger.Logger
}

// NewTwilioChannel creates a Twilio-backed channel
func NewTwilioChannel(accountSID, authToken, from string, l *logger.Logger) (*TwilioChannel, error) {
	if accountSID == "" || authToken == "" || from == "" {
		return nil, fmt.Errorf("missing Twilio credentials")
	}

	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})

	return &TwilioChannel{
		client: client,
		from:   whatsappAddress(from),
		log:    l,
	}, nil
}

func whatsappAddress(number string) string {
	if strings.HasPrefix(number, "whatsapp:") {
		return number
	}
	return "whatsapp:" + number
}

// Send sends a WhatsApp message. to may be a local number, an E.164 number, or a whatsapp: address.
func (t *TwilioChannel) Send(ctx context.Context, to, text string) error {
	params := &twilioApi.CreateMessageParams{}
	params.SetFrom(t.from)
	params.SetTo(whatsappAddress(E164(to)))
	params.SetBody(text)

	resp, err := t.client.Api.CreateMessage(params)
	if err != nil {
		return fmt.Errorf("send whatsapp message: %w", err)
	}
	if resp.ErrorCode != nil && *resp.ErrorCode != 0 {
		msg := ""
		if resp.ErrorMessage != nil {
			msg = *resp.ErrorMessage
		}
		return fmt.Errorf("twilio error %d: %s", *resp.ErrorCode, msg)
	}

	sid := ""
	if resp.Sid != nil {
		sid = *resp.Sid
	}
	t.log.Debugw("WhatsApp message sent", "to", to, "sid", sid)
	return nil
}

func (t *TwilioChannel) Name() string { return "twilio" }

// E164 formats a channel address as +58... for local numbers; other inputs keep their digits
func E164(raw string) string {
	local := NormalizePhone(raw)
	if local == "" {
		return raw
	}
	if strings.HasPrefix(local, "0") && len(local) == localNumberLength {
		return "+" + countryCallingCode + local[1:]
	}
	return "+" + local
}

// LogChannel only logs outbound messages. Used when Twilio is not configured and by the console chat.
type LogChannel struct {
	log *logger.Logger
}

// NewLogChannel creates a channel that writes messages to the log
func NewLogChannel(l *logger.Logger) *LogChannel {
	return &LogChannel{log: l}
}

func (c *LogChannel) Send(ctx context.Context, to, text string) error {
	c.log.Infow("Outbound message not delivered (no channel configured)", "to", to, "length", len(text))
	return nil
}

func (c *LogChannel) Name() string { return "log" }
