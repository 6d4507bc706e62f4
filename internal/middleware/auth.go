// Package middleware содержит HTTP middleware портала фестиваля.
package middleware

import (
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type contextKey string

const staffIDKey contextKey = "staffID"

const (
	sessionCookieName = "staff_session"
	sessionCookieTTL  = 30 * 24 * time.Hour
)

// StaffAuth пропускает к служебным маршрутам только сотрудников с подписанным cookie.
type StaffAuth struct {
	secretKey []byte
}

// NewStaffAuth создаёт проверку сессий сотрудников. При пустом секрете ключ генерируется
// случайно, и сессии не переживают перезапуск процесса.
func NewStaffAuth(secret string) *StaffAuth {
	key := []byte(secret)
	if len(key) == 0 {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic("staff auth: read random key: " + err.Error())
		}
	}

	return &StaffAuth{
		secretKey: key,
	}
}

// Middleware проверяет cookie сессии и добавляет идентификатор сотрудника в контекст запроса.
func (a *StaffAuth) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(sessionCookieName)
		if err != nil {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		staffID, ok := a.parse(cookie.Value)
		if !ok {
			http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), staffIDKey, staffID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SetSessionCookie выдаёт сотруднику подписанный cookie сессии.
func (a *StaffAuth) SetSessionCookie(w http.ResponseWriter, staffID int64) {
	id := strconv.FormatInt(staffID, 10)

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    id + "." + a.sign(id),
		Path:     "/",
		Expires:  time.Now().Add(sessionCookieTTL),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie завершает сессию сотрудника.
func (a *StaffAuth) ClearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
}

func (a *StaffAuth) sign(id string) string {
	mac := hmac.New(sha256.New, a.secretKey)
	mac.Write([]byte(id))
	return hex.EncodeToString(mac.Sum(nil))
}

func (a *StaffAuth) parse(value string) (int64, bool) {
	id, signature, ok := strings.Cut(value, ".")
	if !ok {
		return 0, false
	}

	if !hmac.Equal([]byte(signature), []byte(a.sign(id))) {
		return 0, false
	}

	staffID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return 0, false
	}

	return staffID, true
}

// StaffIDFromContext извлекает идентификатор сотрудника из контекста запроса.
func StaffIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(staffIDKey).(int64)
	return id, ok
}
