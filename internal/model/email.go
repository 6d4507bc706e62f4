package model

import "time"

// Email описывает автоматическое письмо, отправленное при смене состояния.
type Email struct {
	ID            int64     `json:"id"`
	RecipientList string    `json:"recipient_list"`
	Subject       string    `json:"subject"`
	Message       string    `json:"message"`
	MessageHTML   string    `json:"message_html"`
	CreatedAt     time.Time `json:"created_at"`
	Sent          bool      `json:"sent"`
}

// Lang — язык шаблона письма.
type Lang string

const (
	LangCS Lang = "cs"
	LangEN Lang = "en"
)

// MailKind определяет событие, для которого выбирается шаблон.
type MailKind string

const (
	MailFilmRegisteredUnpaid MailKind = "film_registered_unpaid"
	MailFilmPaid             MailKind = "film_paid"
	MailFilmUnpaid           MailKind = "film_unpaid"
	MailFilmStillUnpaid      MailKind = "film_still_unpaid"
)

// MailTemplate содержит тему и тела письма на одном языке.
type MailTemplate struct {
	Subject     string
	Message     string
	MessageHTML string
}

// Texts хранит шаблоны писем и адрес отправителя.
type Texts struct {
	DefaultFromEmail string
	Templates        map[MailKind]map[Lang]MailTemplate
}

// Template возвращает шаблон указанного вида на указанном языке.
func (t *Texts) Template(kind MailKind, lang Lang) (MailTemplate, bool) {
	if t == nil {
		return MailTemplate{}, false
	}
	byLang, ok := t.Templates[kind]
	if !ok {
		return MailTemplate{}, false
	}
	tpl, ok := byLang[lang]
	return tpl, ok
}
