package notify

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html/template"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strings"

	"github.com/example/class-booking/internal/application"
)

// MailerConfig holds SMTP settings and the class details printed in mails.
type MailerConfig struct {
	Addr       string
	Username   string
	Password   string
	From       string
	FromName   string
	OwnerEmail string
	ClassName  string
	Format     string
	Price      string
	Instructor string
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// Mailer sends the client confirmation and the owner notification.
type Mailer struct {
	cfg      MailerConfig
	auth     smtp.Auth
	sendMail sendMailFunc
}

var clientTemplate = template.Must(template.New("client").Parse(`<div style="font-family: 'Helvetica Neue', Arial, sans-serif; max-width: 500px; margin: 0 auto; color: #333;">
  <h2 style="color: #5c6b4f;">Reservation confirmee !</h2>
  <p>Bonjour {{.Name}},</p>
  <p>Votre place est reservee pour le cours {{.ClassName}} :</p>
  <div style="background: #f5f0eb; padding: 16px; border-radius: 8px; margin: 16px 0;">
    <p style="margin: 4px 0;"><strong>Date :</strong> {{.LongDate}}</p>
    <p style="margin: 4px 0;"><strong>Heure :</strong> {{.Time}}</p>
    {{- if .Format}}
    <p style="margin: 4px 0;"><strong>Format :</strong> {{.Format}}</p>
    {{- end}}
    {{- if .Price}}
    <p style="margin: 4px 0;"><strong>Tarif :</strong> {{.Price}}</p>
    {{- end}}
  </div>
  <p>Le lien de visioconference vous sera envoye{{if .Instructor}} par {{.Instructor}}{{end}} avant le cours.</p>
  <p>Pour toute annulation (jusqu'a 24h avant), repondez a cet email.</p>
  <p style="margin-top: 24px;">Namaste<br><strong>{{if .Instructor}}{{.Instructor}} - {{end}}{{.ClassName}}</strong></p>
</div>
`))

var ownerTemplate = template.Must(template.New("owner").Parse(`<div style="font-family: Arial, sans-serif; color: #333;">
  <h3>Nouvelle reservation !</h3>
  <p><strong>Nom :</strong> {{.Name}}</p>
  <p><strong>Email :</strong> {{.Email}}</p>
  {{- if .Phone}}
  <p><strong>Telephone :</strong> {{.Phone}}</p>
  {{- end}}
  <p><strong>Date :</strong> {{.LongDate}} a {{.Time}}</p>
  <p><strong>Places restantes :</strong> {{.Remaining}}/{{.Capacity}}</p>
</div>
`))

type mailView struct {
	Name       string
	Email      string
	Phone      string
	LongDate   string
	Time       string
	ClassName  string
	Format     string
	Price      string
	Instructor string
	Remaining  int
	Capacity   int
}

// NewMailer returns a mailer using net/smtp with PLAIN auth when a username
// is configured.
func NewMailer(cfg MailerConfig) (*Mailer, error) {
	if cfg.Addr == "" || cfg.From == "" {
		return nil, errors.New("notify: smtp address and sender are required")
	}
	host, _, err := net.SplitHostPort(cfg.Addr)
	if err != nil {
		return nil, fmt.Errorf("notify: smtp address: %w", err)
	}
	if cfg.ClassName == "" {
		cfg.ClassName = "Anima Flow"
	}
	m := &Mailer{cfg: cfg, sendMail: smtp.SendMail}
	if cfg.Username != "" {
		m.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, host)
	}
	return m, nil
}

// Notify implements application.Notifier.
func (m *Mailer) Notify(ctx context.Context, event application.BookingAccepted) error {
	longDate, err := FormatDateFR(event.Reservation.Date)
	if err != nil {
		longDate = event.Reservation.Date
	}
	view := mailView{
		Name:       event.Reservation.Name,
		Email:      event.Reservation.Email,
		Phone:      event.Reservation.Phone,
		LongDate:   longDate,
		Time:       event.Reservation.Time,
		ClassName:  m.cfg.ClassName,
		Format:     m.cfg.Format,
		Price:      m.cfg.Price,
		Instructor: m.cfg.Instructor,
		Remaining:  event.Remaining,
		Capacity:   event.Capacity,
	}

	var errs []error
	if err := m.send(ctx, event.Reservation.Email, "Reservation confirmee - "+longDate, clientTemplate, view); err != nil {
		errs = append(errs, fmt.Errorf("client confirmation: %w", err))
	}
	if m.cfg.OwnerEmail != "" {
		subject := fmt.Sprintf("Nouvelle reservation - %s - %s", view.Name, longDate)
		if err := m.send(ctx, m.cfg.OwnerEmail, subject, ownerTemplate, view); err != nil {
			errs = append(errs, fmt.Errorf("owner notification: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (m *Mailer) send(ctx context.Context, to, subject string, tmpl *template.Template, view mailView) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := mail.ParseAddress(to); err != nil {
		return fmt.Errorf("recipient %q: %w", to, err)
	}

	var body bytes.Buffer
	if err := tmpl.Execute(&body, view); err != nil {
		return fmt.Errorf("render %s: %w", tmpl.Name(), err)
	}

	from := (&mail.Address{Name: m.cfg.FromName, Address: m.cfg.From}).String()
	var msg bytes.Buffer
	fmt.Fprintf(&msg, "From: %s\r\n", from)
	fmt.Fprintf(&msg, "To: %s\r\n", to)
	fmt.Fprintf(&msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(strings.ReplaceAll(body.String(), "\n", "\r\n"))

	return m.sendMail(m.cfg.Addr, m.auth, m.cfg.From, []string{to}, msg.Bytes())
}
