package service

import (
	"context"
	"sync"
	"time"

	"github.com/mmeshcher/festival-portal/internal/model"
	"github.com/mmeshcher/festival-portal/internal/repository"
)

// fakeRepo хранит данные в памяти и воспроизводит уникальность paymentId
// и атомарный перевод заявки при записи платежа.
type fakeRepo struct {
	mu sync.Mutex

	nextID      int64
	films       map[int64]*model.Film
	payments    []*model.Payment
	users       map[string]*model.User
	evaluations []*model.Evaluation
	emails      []*model.Email
	texts       *model.Texts
	year        *model.Year

	recordErr  error
	getFilmCnt int
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		nextID: 100,
		films:  make(map[int64]*model.Film),
		users:  make(map[string]*model.User),
		texts:  testTexts(),
	}
}

func (r *fakeRepo) id() int64 {
	r.nextID++
	return r.nextID
}

func (r *fakeRepo) addFilm(f *model.Film) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *f
	r.films[f.ID] = &cp
}

func (r *fakeRepo) filmStatus(id int64) model.FilmStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.films[id].Status
}

func (r *fakeRepo) Close() error { return nil }

func (r *fakeRepo) CreateUser(ctx context.Context, login string, passwordHash []byte) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[login]; ok {
		return 0, repository.ErrUserExists
	}
	u := &model.User{ID: r.id(), Login: login, PasswordHash: passwordHash}
	r.users[login] = u
	return u.ID, nil
}

func (r *fakeRepo) GetUserByLogin(ctx context.Context, login string) (*model.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[login]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	return u, nil
}

func (r *fakeRepo) GetCurrentYear(ctx context.Context) (*model.Year, error) {
	if r.year == nil {
		return nil, repository.ErrYearNotFound
	}
	return r.year, nil
}

func (r *fakeRepo) CreateFilm(ctx context.Context, f *model.Film) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	f.ID = r.id()
	f.Status = model.FilmStatusUnpaid
	f.CreatedAt = time.Now()
	cp := *f
	r.films[f.ID] = &cp
	return nil
}

func (r *fakeRepo) GetFilm(ctx context.Context, id int64) (*model.Film, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.getFilmCnt++
	f, ok := r.films[id]
	if !ok {
		return nil, repository.ErrFilmNotFound
	}
	cp := *f
	return &cp, nil
}

func (r *fakeRepo) ListFilms(ctx context.Context, status model.FilmStatus) ([]model.Film, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.Film
	for _, f := range r.films {
		if status == "" || f.Status == status {
			res = append(res, *f)
		}
	}
	return res, nil
}

func (r *fakeRepo) UpdateFilmStatus(ctx context.Context, id int64, next model.FilmStatus) (model.FilmStatus, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.films[id]
	if !ok {
		return "", repository.ErrFilmNotFound
	}
	prev := f.Status
	if !prev.CanTransition(next) {
		return prev, model.ErrTransitionNotAllowed
	}
	f.Status = next
	return prev, nil
}

func (r *fakeRepo) RecordPayment(ctx context.Context, p *model.Payment) (repository.RecordResult, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.recordErr != nil {
		return repository.RecordResult{}, r.recordErr
	}
	for _, existing := range r.payments {
		if existing.PaymentID == p.PaymentID {
			return repository.RecordResult{}, repository.ErrDuplicatePayment
		}
	}

	var res repository.RecordResult
	var film *model.Film
	if p.FilmID != nil {
		f, ok := r.films[*p.FilmID]
		if !ok {
			return repository.RecordResult{}, repository.ErrFilmNotFound
		}
		film = f
		res.PriorStatus = f.Status
	}

	p.ID = r.id()
	p.CreatedAt = time.Now()
	cp := *p
	r.payments = append(r.payments, &cp)

	if p.Transitions() && res.PriorStatus == model.FilmStatusUnpaid {
		film.Status = model.FilmStatusRegistered
		res.Transitioned = true
	}
	return res, nil
}

func (r *fakeRepo) GetPaymentByPaymentID(ctx context.Context, paymentID int64) (*model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.PaymentID == paymentID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrPaymentNotFound
}

func (r *fakeRepo) GetPaymentsByFilm(ctx context.Context, filmID int64) ([]model.Payment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.Payment
	for _, p := range r.payments {
		if p.FilmID != nil && *p.FilmID == filmID {
			res = append(res, *p)
		}
	}
	return res, nil
}

func (r *fakeRepo) HasSuccessfulPayment(ctx context.Context, filmID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.payments {
		if p.FilmID != nil && *p.FilmID == filmID && p.ValidSignature &&
			p.Type == model.PaymentTypeFilm && !p.Status.IsFailure() {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepo) paymentCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payments)
}

func (r *fakeRepo) AddEvaluation(ctx context.Context, e *model.Evaluation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.films[e.FilmID]; !ok {
		return repository.ErrFilmNotFound
	}
	e.ID = r.id()
	r.evaluations = append(r.evaluations, e)
	return nil
}

func (r *fakeRepo) GetRating(ctx context.Context, filmID int64) (*model.Rating, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rating := &model.Rating{FilmID: filmID}
	sum := 0
	for _, e := range r.evaluations {
		if e.FilmID == filmID {
			sum += e.Like
			rating.Evaluations++
		}
	}
	if rating.Evaluations > 0 {
		avg := float64(sum) / float64(rating.Evaluations)
		rating.Average = &avg
	}
	return rating, nil
}

func (r *fakeRepo) GetTexts(ctx context.Context) (*model.Texts, error) {
	return r.texts, nil
}

func (r *fakeRepo) CreateEmail(ctx context.Context, e *model.Email) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	e.ID = r.id()
	r.emails = append(r.emails, e)
	return nil
}

func (r *fakeRepo) GetEmail(ctx context.Context, id int64) (*model.Email, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.emails {
		if e.ID == id {
			return e, nil
		}
	}
	return nil, repository.ErrEmailNotFound
}

func (r *fakeRepo) ListEmails(ctx context.Context, onlyFailed bool, limit int) ([]model.Email, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var res []model.Email
	for _, e := range r.emails {
		if onlyFailed && e.Sent {
			continue
		}
		res = append(res, *e)
		if len(res) == limit {
			break
		}
	}
	return res, nil
}

func (r *fakeRepo) sentEmails() []*model.Email {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*model.Email(nil), r.emails...)
}

func testTexts() *model.Texts {
	tpl := func(subject string) model.MailTemplate {
		return model.MailTemplate{
			Subject:     subject,
			Message:     subject + ": {{ film.name }} {{ link|default:empty }}",
			MessageHTML: "<p>" + subject + "</p>",
		}
	}
	return &model.Texts{
		DefaultFromEmail: "Festival <info@example.com>",
		Templates: map[model.MailKind]map[model.Lang]model.MailTemplate{
			model.MailFilmRegisteredUnpaid: {model.LangCS: tpl("film registrován nezaplacen"), model.LangEN: tpl("film registered unpaid")},
			model.MailFilmPaid:             {model.LangCS: tpl("film zaregistrován"), model.LangEN: tpl("film registered")},
			model.MailFilmUnpaid:           {model.LangCS: tpl("film nezaplacen"), model.LangEN: tpl("film unpaid")},
			model.MailFilmStillUnpaid:      {model.LangCS: tpl("film stále nezaplacen"), model.LangEN: tpl("film still unpaid")},
		},
	}
}
