package notify

import (
	"fmt"
	"strings"

	"github.com/gosimple/slug"

	"github.com/mmeshcher/festival-portal/internal/model"
)

// Префиксы ссылок на оплату, отправляемых в письмах.
const (
	PayRegistrationPathCS = "/zaplatit-registraci"
	PayRegistrationPathEN = "/pay-registration"
	RepeatPaymentPathCS   = "/opakovat-platbu"
	RepeatPaymentPathEN   = "/repeat-payment"
)

// RegistrationLink возвращает ссылку на оплату регистрационного взноса заявки.
func RegistrationLink(siteURL string, f *model.Film) string {
	prefix := PayRegistrationPathEN
	if f.Lang() == model.LangCS {
		prefix = PayRegistrationPathCS
	}
	return fmt.Sprintf("%s%s/%d/%s/", strings.TrimRight(siteURL, "/"), prefix, f.ID, FilmSlug(f))
}

// RetryLink возвращает ссылку на повторную оплату после отменённого или ошибочного платежа.
func RetryLink(siteURL string, lang model.Lang, paymentID int64) string {
	prefix := RepeatPaymentPathEN
	if lang == model.LangCS {
		prefix = RepeatPaymentPathCS
	}
	return fmt.Sprintf("%s%s/%d/", strings.TrimRight(siteURL, "/"), prefix, paymentID)
}

// FilmSlug возвращает человекочитаемую часть ссылки по названию фильма.
func FilmSlug(f *model.Film) string {
	s := slug.Make(f.Name)
	if s == "" {
		return "film"
	}
	return s
}
