package channel

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/shenikar/accident_dispatch_system/internal/models"
	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

const whatsAppPrefix = "whatsapp:"

// TwilioSender отправляет WhatsApp сообщения через Twilio Messaging API
type TwilioSender struct {
	client *twilio.RestClient
	from   string
}

// NewTwilioSender создает отправителя; from - номер песочницы или бизнес-номер WhatsApp
func NewTwilioSender(accountSID, authToken, from string) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &TwilioSender{client: client, from: whatsAppAddress(from)}
}

func (s *TwilioSender) Send(ctx context.Context, to, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &openapi.CreateMessageParams{}
	params.SetFrom(s.from)
	params.SetTo(whatsAppAddress(to))
	params.SetBody(body)

	resp, err := s.client.Api.CreateMessage(params)
	if err != nil {
		return "", classifyTwilioError(err)
	}
	if resp.Sid == nil {
		return "", errors.New("twilio: response without message sid")
	}
	return *resp.Sid, nil
}

// classifyTwilioError помечает клиентские ошибки API как постоянные;
// 429, 5xx и сетевые ошибки остаются повторяемыми.
func classifyTwilioError(err error) error {
	var restErr *twilioclient.TwilioRestError
	if errors.As(err, &restErr) {
		if restErr.Status == http.StatusTooManyRequests || restErr.Status >= http.StatusInternalServerError {
			return fmt.Errorf("twilio: status %d code %d: %s", restErr.Status, restErr.Code, restErr.Message)
		}
		return fmt.Errorf("%w: twilio status %d code %d: %s", models.ErrPermanentDelivery, restErr.Status, restErr.Code, restErr.Message)
	}
	return fmt.Errorf("twilio: %w", err)
}

func whatsAppAddress(number string) string {
	if strings.HasPrefix(number, whatsAppPrefix) {
		return number
	}
	return whatsAppPrefix + number
}
