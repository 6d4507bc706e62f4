// Package validation содержит функции валидации входных данных.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/mmeshcher/festival-portal/internal/model"
)

// MinFilmYear — самый ранний допустимый год производства фильма.
const MinFilmYear = 1980

// ErrInvalid возвращается, если заявка не прошла проверку.
var ErrInvalid = errors.New("invalid submission")

var phoneRe = regexp.MustCompile(`^\+?1?\d{9,15}$`)

// FilmRequest — заявка фильма в том виде, в каком её присылает форма регистрации.
type FilmRequest struct {
	FirstName         string `json:"first_name" validate:"required,max=50"`
	LastName          string `json:"last_name" validate:"required,max=50"`
	Email             string `json:"email" validate:"required,email,max=254"`
	Production        string `json:"production" validate:"required,max=50"`
	Country           string `json:"country" validate:"required,len=2,alpha,uppercase"`
	Phone             string `json:"phone" validate:"omitempty,max=17,phone"`
	Name              string `json:"name" validate:"required,max=50"`
	Time              string `json:"time" validate:"required,filmtime"`
	Description       string `json:"description" validate:"required,max=200"`
	Year              int    `json:"year" validate:"required"`
	Category          string `json:"category" validate:"required,oneof=f d a"`
	Genre             string `json:"genre" validate:"required,genre"`
	FilmURL           string `json:"film_url" validate:"required,url"`
	FilmPassword      string `json:"film_password" validate:"max=64"`
	SubtitlesURL      string `json:"subtitles_url" validate:"required,url"`
	SubtitlesPassword string `json:"subtitles_password" validate:"max=64"`
	TrailerURL        string `json:"trailer_url" validate:"omitempty,url"`
	TrailerPassword   string `json:"trailer_password" validate:"max=64"`
	Directing         string `json:"directing" validate:"max=50"`
	Camera            string `json:"camera" validate:"max=50"`
	Sound             string `json:"sound" validate:"max=50"`
	Cut               string `json:"cut" validate:"max=50"`
	Screenplay        string `json:"screenplay" validate:"max=50"`
	Starring          string `json:"starring" validate:"max=200"`
	Others            string `json:"others" validate:"max=200"`
	TOR               bool   `json:"tor" validate:"required"`
	GDPR              bool   `json:"gdpr" validate:"required"`
	Attendance        bool   `json:"attendance"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phoneRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("genre", func(fl validator.FieldLevel) bool {
		_, ok := model.Genres[fl.Field().String()]
		return ok
	})
	_ = v.RegisterValidation("filmtime", func(fl validator.FieldLevel) bool {
		d, err := ParseFilmTime(fl.Field().String())
		return err == nil && d > 0
	})
	return v
}

// Film проверяет заявку и преобразует её в доменную модель.
// currentYear — год текущего выпуска фестиваля, верхняя граница года производства.
func Film(req *FilmRequest, currentYear int) (*model.Film, error) {
	var problems []string

	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return nil, fmt.Errorf("validate submission: %w", err)
		}
		for _, fe := range verrs {
			problems = append(problems, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
	}

	if req.Year != 0 && (req.Year < MinFilmYear || req.Year > currentYear) {
		problems = append(problems, fmt.Sprintf("year: must be between %d and %d", MinFilmYear, currentYear))
	}

	if len(problems) > 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
	}

	d, _ := ParseFilmTime(req.Time)

	return &model.Film{
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		Email:             req.Email,
		Production:        req.Production,
		Country:           req.Country,
		Phone:             req.Phone,
		Name:              req.Name,
		Time:              d,
		Description:       req.Description,
		Year:              req.Year,
		Category:          model.FilmCategory(req.Category),
		Genre:             req.Genre,
		FilmURL:           req.FilmURL,
		FilmPassword:      req.FilmPassword,
		SubtitlesURL:      req.SubtitlesURL,
		SubtitlesPassword: req.SubtitlesPassword,
		TrailerURL:        req.TrailerURL,
		TrailerPassword:   req.TrailerPassword,
		Directing:         req.Directing,
		Camera:            req.Camera,
		Sound:             req.Sound,
		Cut:               req.Cut,
		Screenplay:        req.Screenplay,
		Starring:          req.Starring,
		Others:            req.Others,
		TOR:               req.TOR,
		GDPR:              req.GDPR,
		Attendance:        req.Attendance,
		Status:            model.FilmStatusUnpaid,
	}, nil
}

// ParseFilmTime разбирает длительность фильма в формате mm:ss или hh:mm:ss.
func ParseFilmTime(s string) (time.Duration, error) {
	parts := strings.Split(s, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("%w: time %q", ErrInvalid, s)
	}

	var total int64
	for i, p := range parts {
		n, err := strconv.ParseInt(p, 10, 64)
		if err != nil || n < 0 {
			return 0, fmt.Errorf("%w: time %q", ErrInvalid, s)
		}
		if i > 0 && n > 59 {
			return 0, fmt.Errorf("%w: time %q", ErrInvalid, s)
		}
		total = total*60 + n
	}

	return time.Duration(total) * time.Second, nil
}
