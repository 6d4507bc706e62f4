package model

import (
	"errors"
	"time"
)

// FilmStatus описывает состояние заявки фильма.
type FilmStatus string

const (
	FilmStatusUnpaid     FilmStatus = "u"
	FilmStatusRegistered FilmStatus = "r"
	FilmStatusSelected   FilmStatus = "s"
	FilmStatusOut        FilmStatus = "o"
)

// ErrTransitionNotAllowed возвращается при попытке перехода, отсутствующего в графе состояний.
var ErrTransitionNotAllowed = errors.New("film status transition not allowed")

var filmTransitions = map[FilmStatus][]FilmStatus{
	FilmStatusUnpaid:     {FilmStatusRegistered, FilmStatusOut},
	FilmStatusRegistered: {FilmStatusSelected, FilmStatusOut},
	FilmStatusSelected:   {FilmStatusOut},
}

// Valid сообщает, известен ли статус.
func (s FilmStatus) Valid() bool {
	switch s {
	case FilmStatusUnpaid, FilmStatusRegistered, FilmStatusSelected, FilmStatusOut:
		return true
	}
	return false
}

// CanTransition сообщает, допустим ли переход из s в next.
func (s FilmStatus) CanTransition(next FilmStatus) bool {
	for _, to := range filmTransitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

// Label возвращает человекочитаемое название статуса.
func (s FilmStatus) Label() string {
	switch s {
	case FilmStatusUnpaid:
		return "neuhrazený poplatek"
	case FilmStatusRegistered:
		return "registrovaný"
	case FilmStatusSelected:
		return "vybraný"
	case FilmStatusOut:
		return "vyřazený"
	}
	return string(s)
}

// FilmCategory описывает категорию фильма.
type FilmCategory string

const (
	CategoryFiction     FilmCategory = "f"
	CategoryDocumentary FilmCategory = "d"
	CategoryAnimated    FilmCategory = "a"
)

// Valid сообщает, известна ли категория.
func (c FilmCategory) Valid() bool {
	switch c {
	case CategoryFiction, CategoryDocumentary, CategoryAnimated:
		return true
	}
	return false
}

// Genres содержит допустимые коды жанров.
var Genres = map[string]string{
	"ac": "akční",
	"de": "detektivní",
	"ad": "dobrodružný",
	"dr": "drama",
	"fa": "fantasy",
	"hi": "historický",
	"ho": "horor",
	"mu": "hudební",
	"co": "komedie",
	"cr": "kriminální",
	"ft": "pohádka",
	"fm": "rodinný",
	"ro": "romantický",
	"sf": "sci-fi",
	"th": "thriller",
	"wa": "válečný",
	"we": "western",
}

// domesticCountries получают письма на чешском.
var domesticCountries = map[string]bool{"CZ": true, "SK": true}

// Film описывает заявку фильма на фестиваль.
type Film struct {
	ID                int64
	FirstName         string
	LastName          string
	Email             string
	Production        string
	Country           string
	Phone             string
	Name              string
	Time              time.Duration
	Description       string
	Year              int
	Category          FilmCategory
	Genre             string
	FilmURL           string
	FilmPassword      string
	SubtitlesURL      string
	SubtitlesPassword string
	TrailerURL        string
	TrailerPassword   string
	Directing         string
	Camera            string
	Sound             string
	Cut               string
	Screenplay        string
	Starring          string
	Others            string
	TOR               bool
	GDPR              bool
	Attendance        bool
	Status            FilmStatus
	TechnicalCheck    *bool
	CreatedAt         time.Time
}

// Lang возвращает язык корреспонденции автора.
func (f *Film) Lang() Lang {
	if domesticCountries[f.Country] {
		return LangCS
	}
	return LangEN
}
