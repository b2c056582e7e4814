package sender

import (
	"context"

	"github.com/badoux/checkmail"
	"github.com/meetsmatch/notifyengine/internal/apperr"
	"github.com/meetsmatch/notifyengine/internal/models"
	"github.com/go-gomail/gomail"
	"github.com/sony/gobreaker"
)

// EmailConfig names the SMTP transport the teacher's services/api config
// exposes, generalized to whatever host the operator configures.
type EmailConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// EmailTransport delivers NotificationEvents of type Email via SMTP,
// wrapped in a circuit breaker so a down mail relay fails fast instead of
// blocking the sender loop on every event (spec §4.K).
type EmailTransport struct {
	cfg    EmailConfig
	dialer *gomail.Dialer
	cb     *gobreaker.CircuitBreaker
}

func NewEmailTransport(cfg EmailConfig) *EmailTransport {
	return &EmailTransport{
		cfg:    cfg,
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Pass),
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "smtp",
			MaxRequests: 1,
		}),
	}
}

func (t *EmailTransport) Send(ctx context.Context, event models.NotificationEvent) error {
	if err := checkmail.ValidateFormat(event.ToAddress); err != nil {
		return apperr.NewDeliveryError("invalid email address", err, false)
	}

	_, err := t.cb.Execute(func() (interface{}, error) {
		m := gomail.NewMessage()
		m.SetHeader("From", t.cfg.From)
		m.SetHeader("To", event.ToAddress)
		if event.Title != nil {
			m.SetHeader("Subject", *event.Title)
		}
		m.SetBody("text/plain", event.Body)
		m.AddAlternative("text/html", event.Body)
		return nil, t.dialer.DialAndSend(m)
	})
	if err == nil {
		return nil
	}
	if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
		return apperr.NewDeliveryError("smtp circuit open", err, true)
	}
	return apperr.NewDeliveryError("smtp send failed", err, true)
}
