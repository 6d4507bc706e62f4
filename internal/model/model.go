// Package model содержит доменные сущности портала фестиваля.
package model

import (
	"strings"
	"time"
)

// User представляет сотрудника фестиваля, оценивающего фильмы.
type User struct {
	ID           int64
	Login        string
	PasswordHash []byte
	CreatedAt    time.Time
}

// Year описывает ежегодный выпуск фестиваля.
type Year struct {
	ID        int64
	Vol       int
	Name      string
	DateStart time.Time
	DateEnd   time.Time
	Current   bool
}

// Number возвращает календарный год, в котором начинается выпуск.
func (y Year) Number() int {
	return y.DateStart.Year()
}

var (
	romanValues  = []int{1000, 900, 500, 400, 100, 90, 50, 40, 10, 9, 5, 4, 1}
	romanSymbols = []string{"M", "CM", "D", "CD", "C", "XC", "L", "XL", "X", "IX", "V", "IV", "I"}
)

// RomanVol возвращает номер выпуска римскими цифрами.
func (y Year) RomanVol() string {
	n := y.Vol
	var b strings.Builder
	for i, v := range romanValues {
		for n >= v {
			b.WriteString(romanSymbols[i])
			n -= v
		}
	}
	return b.String()
}

// Evaluation содержит оценку фильма сотрудником.
type Evaluation struct {
	ID        int64
	UserID    int64
	FilmID    int64
	Like      int
	Verbal    string
	Technical *bool
	CreatedAt time.Time
}

// Допустимый диапазон оценки.
const (
	MinLike = 0
	MaxLike = 5
)

// Rating содержит среднюю оценку фильма.
type Rating struct {
	FilmID      int64    `json:"film_id"`
	Average     *float64 `json:"average,omitempty"`
	Evaluations int      `json:"evaluations"`
}
