// Package notify рассылает двуязычные письма при смене состояния заявок и платежей.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/flosch/pongo2/v6"
	"go.uber.org/zap"

	"github.com/mmeshcher/festival-portal/internal/model"
	"github.com/mmeshcher/festival-portal/internal/observability"
)

// EmptyPlaceholder подставляется в шаблоны вместо незаполненных полей.
const EmptyPlaceholder = "-"

// ErrTemplateMissing возвращается, если для события нет шаблона на нужном языке.
var ErrTemplateMissing = errors.New("mail template missing")

// Store описывает хранилище текстов и журнала писем.
type Store interface {
	GetTexts(ctx context.Context) (*model.Texts, error)
	CreateEmail(ctx context.Context, e *model.Email) error
}

// Dispatcher выбирает шаблон, отрисовывает и отправляет письмо, а затем сохраняет его в журнал.
type Dispatcher struct {
	store   Store
	mailer  Mailer
	siteURL string
	logger  *zap.Logger
}

// NewDispatcher создаёт рассыльщик писем.
func NewDispatcher(store Store, mailer Mailer, siteURL string, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		store:   store,
		mailer:  mailer,
		siteURL: siteURL,
		logger:  logger.Named("notify"),
	}
}

// OnFilmCreated отправляет автору новой неоплаченной заявки письмо со ссылкой на оплату.
func (d *Dispatcher) OnFilmCreated(ctx context.Context, film *model.Film, year *model.Year) {
	if film.Status != model.FilmStatusUnpaid {
		return
	}
	_, err := d.Dispatch(ctx, model.MailFilmRegisteredUnpaid, film, RegistrationLink(d.siteURL, film), year)
	if err != nil {
		d.logger.Error("notify film created", zap.Int64("film_id", film.ID), zap.Error(err))
	}
}

// OnPaymentRecorded отправляет письмо об успешной регистрации или о неудачной оплате.
func (d *Dispatcher) OnPaymentRecorded(ctx context.Context, ev model.PaymentEvent) {
	if ev.Film == nil || ev.Payment == nil {
		return
	}

	var (
		kind model.MailKind
		link string
	)
	switch {
	case ev.Transitioned:
		kind = model.MailFilmPaid
	case ev.Payment.ValidSignature && ev.Payment.Type == model.PaymentTypeFilm &&
		ev.Payment.Status.IsFailure() && ev.PriorStatus == model.FilmStatusUnpaid:
		kind = model.MailFilmUnpaid
		link = RetryLink(d.siteURL, ev.Film.Lang(), ev.Payment.PaymentID)
	default:
		return
	}

	if _, err := d.Dispatch(ctx, kind, ev.Film, link, ev.Year); err != nil {
		d.logger.Error("notify payment recorded",
			zap.Int64("film_id", ev.Film.ID),
			zap.Int64("payment_id", ev.Payment.PaymentID),
			zap.Error(err),
		)
	}
}

// RemindUnpaid напоминает автору неоплаченной заявки о взносе.
func (d *Dispatcher) RemindUnpaid(ctx context.Context, film *model.Film, year *model.Year) (*model.Email, error) {
	return d.Dispatch(ctx, model.MailFilmStillUnpaid, film, RegistrationLink(d.siteURL, film), year)
}

// Dispatch отрисовывает шаблон kind на языке автора и отправляет его по адресу заявки.
// Ошибка доставки не возвращается: она отражается в признаке Sent сохранённого письма.
func (d *Dispatcher) Dispatch(ctx context.Context, kind model.MailKind, film *model.Film, link string, year *model.Year) (*model.Email, error) {
	texts, err := d.store.GetTexts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load texts: %w", err)
	}

	lang := film.Lang()
	tpl, ok := texts.Template(kind, lang)
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", ErrTemplateMissing, kind, lang)
	}

	data := pongo2.Context{
		"film":  filmContext(film),
		"link":  link,
		"empty": EmptyPlaceholder,
		"year":  yearContext(year),
	}

	message, err := render(tpl.Message, data, false)
	if err != nil {
		return nil, fmt.Errorf("render %s message: %w", kind, err)
	}
	html, err := render(tpl.MessageHTML, data, true)
	if err != nil {
		return nil, fmt.Errorf("render %s html: %w", kind, err)
	}

	e := &model.Email{
		RecipientList: film.Email,
		Subject:       tpl.Subject,
		Message:       message,
		MessageHTML:   html,
	}
	if err := d.deliver(ctx, texts.DefaultFromEmail, e, string(kind)); err != nil {
		return nil, err
	}
	return e, nil
}

// Resend повторно отправляет сохранённое письмо. Результат записывается как новое письмо.
func (d *Dispatcher) Resend(ctx context.Context, original *model.Email) (*model.Email, error) {
	texts, err := d.store.GetTexts(ctx)
	if err != nil {
		return nil, fmt.Errorf("load texts: %w", err)
	}

	e := &model.Email{
		RecipientList: original.RecipientList,
		Subject:       original.Subject,
		Message:       original.Message,
		MessageHTML:   original.MessageHTML,
	}
	if err := d.deliver(ctx, texts.DefaultFromEmail, e, "resend"); err != nil {
		return nil, err
	}
	return e, nil
}

func (d *Dispatcher) deliver(ctx context.Context, from string, e *model.Email, kind string) error {
	recipients := strings.Fields(e.RecipientList)
	msgs := make([]Message, 0, len(recipients))
	for _, to := range recipients {
		msgs = append(msgs, Message{
			From:    from,
			To:      to,
			Subject: e.Subject,
			Text:    e.Message,
			HTML:    e.MessageHTML,
		})
	}

	accepted, err := d.mailer.Send(ctx, msgs)
	e.Sent = len(recipients) > 0 && accepted == len(recipients)

	result := "sent"
	if !e.Sent {
		result = "failed"
		d.logger.Warn("email not delivered",
			zap.String("kind", kind),
			zap.String("recipients", e.RecipientList),
			zap.Int("accepted", accepted),
			zap.Error(err),
		)
	}
	observability.Emails.WithLabelValues(kind, result).Inc()

	if err := d.store.CreateEmail(ctx, e); err != nil {
		return fmt.Errorf("persist email: %w", err)
	}
	return nil
}

func render(src string, data pongo2.Context, autoescape bool) (string, error) {
	if !autoescape {
		src = "{% autoescape off %}" + src + "{% endautoescape %}"
	}
	tpl, err := pongo2.FromString(src)
	if err != nil {
		return "", err
	}
	return tpl.Execute(data)
}

func filmContext(f *model.Film) map[string]any {
	return map[string]any{
		"id":            f.ID,
		"first_name":    f.FirstName,
		"last_name":     f.LastName,
		"email":         f.Email,
		"production":    f.Production,
		"country":       f.Country,
		"phone":         f.Phone,
		"name":          f.Name,
		"time":          formatDuration(f.Time),
		"description":   f.Description,
		"year":          f.Year,
		"category":      string(f.Category),
		"genre":         f.Genre,
		"film_url":      f.FilmURL,
		"subtitles_url": f.SubtitlesURL,
		"trailer_url":   f.TrailerURL,
		"directing":     f.Directing,
		"camera":        f.Camera,
		"sound":         f.Sound,
		"cut":           f.Cut,
		"screenplay":    f.Screenplay,
		"starring":      f.Starring,
		"others":        f.Others,
		"status":        f.Status.Label(),
	}
}

func yearContext(y *model.Year) map[string]any {
	if y == nil {
		return nil
	}
	return map[string]any{
		"vol":       y.Vol,
		"roman_vol": y.RomanVol(),
		"name":      y.Name,
		"year":      y.Number(),
	}
}

func formatDuration(d time.Duration) string {
	total := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d", total/60, total%60)
}
