package thepay

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrInvalidValue возвращается для неположительной или нечитаемой суммы.
var ErrInvalidValue = errors.New("value must be positive")

// Amount хранит сумму в сотых долях валюты.
type Amount int64

// maxUnits — наибольшая целая часть, для которой сумма в сотых помещается в int64.
const maxUnits = (math.MaxInt64 - 99) / 100

// ParseAmount разбирает десятичную запись суммы вида "150", "150.5" или "150.00".
// Допускаются только цифры, необязательный ведущий минус и не более двух знаков после точки.
func ParseAmount(s string) (Amount, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidValue)
	}

	digits, negative := strings.CutPrefix(s, "-")

	whole, frac, hasFrac := strings.Cut(digits, ".")
	if whole == "" && hasFrac {
		whole = "0"
	}
	if !onlyDigits(whole) || (hasFrac && (!onlyDigits(frac) || len(frac) > 2)) {
		return 0, fmt.Errorf("%w: %q", ErrInvalidValue, s)
	}
	for len(frac) < 2 {
		frac += "0"
	}

	units, err := strconv.ParseInt(whole, 10, 64)
	if err != nil || units > maxUnits {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidValue, s)
	}
	cents, _ := strconv.ParseInt(frac, 10, 64)

	v := Amount(units*100 + cents)
	if negative {
		v = -v
	}
	return v, nil
}

func onlyDigits(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

// String форматирует сумму ровно с двумя знаками после точки.
func (a Amount) String() string {
	sign := ""
	v := int64(a)
	if v < 0 {
		sign = "-"
		v = -v
	}
	return fmt.Sprintf("%s%d.%02d", sign, v/100, v%100)
}

// UnmarshalText позволяет читать сумму из переменных окружения.
func (a *Amount) UnmarshalText(text []byte) error {
	v, err := ParseAmount(string(text))
	if err != nil {
		return err
	}
	*a = v
	return nil
}

// UnmarshalJSON принимает сумму как JSON-строку ("150.00") или как число (150, 150.5).
func (a *Amount) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}

	text := string(data)
	if strings.HasPrefix(text, `"`) {
		if err := json.Unmarshal(data, &text); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidValue, err)
		}
	}
	return a.UnmarshalText([]byte(text))
}
