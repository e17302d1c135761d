package notify

import (
	"context"
	"fmt"
	"net/mail"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/simonmuehling/educafric-platform-sub005/core"
	"github.com/simonmuehling/educafric-platform-sub005/core/bulletin"
	"github.com/simonmuehling/educafric-platform-sub005/services/whatsapp"
)

const emailTemplate = "bulletin_sent"

var errNotDelivered = errors.New("notification could not be delivered on any channel")

// Messenger sends a text message to a phone number.
type Messenger interface {
	SendText(ctx context.Context, to, body string) error
}

// Archive stores the snapshot of a sent bulletin and returns its location.
type Archive interface {
	Store(ctx context.Context, b bulletin.Bulletin) (string, error)
}

// Report sums up the delivery of one notification.
type Report struct {
	Archived  string
	Guardians int
	WhatsApp  int
	Emails    int
	Failures  int
}

// Dispatcher delivers a sent bulletin to the guardians of its student and archives its snapshot.
// Messenger, mailer and archive are optional.
type Dispatcher struct {
	guardians bulletin.GuardianFinder
	messenger Messenger
	mailer    core.EmailService
	archive   Archive
	logger    core.Logger
	verifyURL string
}

func NewDispatcher(
	conf *core.Config,
	guardians bulletin.GuardianFinder,
	messenger Messenger,
	mailer core.EmailService,
	archive Archive,
	logger core.Logger,
) *Dispatcher {
	var verifyURL string
	if conf.FrontendBaseURL != "" {
		verifyURL = strings.TrimRight(conf.FrontendBaseURL, "/") + "/verify"
	}
	return &Dispatcher{
		guardians: guardians,
		messenger: messenger,
		mailer:    mailer,
		archive:   archive,
		logger:    logger,
		verifyURL: verifyURL,
	}
}

func formatAverage(avg *float64) string {
	if avg == nil {
		return "-"
	}
	return strconv.FormatFloat(*avg, 'f', 2, 64)
}

func (d *Dispatcher) message(n bulletin.Notification, g bulletin.Guardian) whatsapp.BulletinMessage {
	return whatsapp.BulletinMessage{
		Language:         g.Language,
		GuardianName:     g.Name,
		StudentID:        n.StudentID,
		TermID:           n.TermID,
		Average:          formatAverage(n.GeneralAverage),
		Rank:             n.ClassRank,
		ClassSize:        n.ClassSize,
		TrackingNumber:   n.TrackingNumber,
		VerificationCode: n.VerificationCode,
		VerifyURL:        d.verifyURL,
	}
}

func subject(lang string) string {
	if lang == "en" {
		return "Report card available"
	}
	return "Bulletin disponible"
}

func (d *Dispatcher) fail(rep *Report, msg string, err error, n bulletin.Notification) {
	rep.Failures++
	d.logger.Error(
		fmt.Sprintf("%s for bulletin %s: %v", msg, n.BulletinID, err),
		errors.Wrap(err, msg),
		map[string]interface{}{"bulletin_id": n.BulletinID, "tracking_number": n.TrackingNumber},
	)
}

// Dispatch fails when the guardians cannot be loaded or when nothing could be delivered.
// Failures of single channels are logged.
func (d *Dispatcher) Dispatch(ctx context.Context, n bulletin.Notification) (Report, error) {
	var rep Report

	if d.archive != nil && n.Snapshot != nil {
		key, err := d.archive.Store(ctx, *n.Snapshot)
		if err != nil {
			d.fail(&rep, "archiving bulletin", err, n)
		} else {
			rep.Archived = key
		}
	}

	guardians, err := d.guardians.GuardiansOf(ctx, n.StudentID)
	if err != nil {
		return rep, errors.Wrap(err, "loading guardians")
	}
	rep.Guardians = len(guardians)

	emails := make([]*core.EmailMessage, 0, len(guardians))
	for _, g := range guardians {
		msg := d.message(n, g)
		if d.messenger != nil && g.Phone != "" {
			if err = d.messenger.SendText(ctx, g.Phone, msg.Text()); err != nil {
				d.fail(&rep, "sending whatsapp message", err, n)
			} else {
				rep.WhatsApp++
			}
		}
		if d.mailer != nil && g.Email != "" {
			emails = append(emails, &core.EmailMessage{
				To:           []mail.Address{{Name: g.Name, Address: g.Email}},
				Subject:      subject(g.Language),
				TemplateName: emailTemplate,
				TemplateData: msg,
			})
		}
	}
	if len(emails) > 0 {
		d.mailer.SendMessages(emails...)
		rep.Emails = len(emails)
	}

	if rep.Failures > 0 && rep.WhatsApp == 0 && rep.Emails == 0 && rep.Archived == "" {
		return rep, errNotDelivered
	}
	d.logger.Info(fmt.Sprintf(
		"bulletin %s notified: %d guardian(s), %d whatsapp, %d email(s), %d failure(s)",
		n.BulletinID, rep.Guardians, rep.WhatsApp, rep.Emails, rep.Failures,
	))
	return rep, nil
}
