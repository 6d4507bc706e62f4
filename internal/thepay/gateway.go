// Package thepay реализует протокол платёжного шлюза ThePay: подписанные параметры
// перенаправления на платёжную страницу и проверку подписи обратного вызова.
package thepay

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SignatureKey — имя поля с подписью.
const SignatureKey = "signature"

// Pair — фиксированная пара ключ/значение, добавляемая к каждому запросу (например, данные EET).
type Pair struct {
	Key   string
	Value string
}

// Pairs — упорядоченный список фиксированных пар.
type Pairs []Pair

// UnmarshalText читает пары из записи вида "k1=v1,k2=v2", сохраняя порядок.
func (ps *Pairs) UnmarshalText(text []byte) error {
	var out Pairs
	for _, item := range strings.Split(string(text), ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		k, v, ok := strings.Cut(item, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return fmt.Errorf("invalid pair %q: want key=value", item)
		}
		out = append(out, Pair{Key: k, Value: strings.TrimSpace(v)})
	}
	*ps = out
	return nil
}

// Gateway содержит реквизиты продавца в шлюзе.
type Gateway struct {
	MerchantID string
	AccountID  string
	Password   string
	GateURL    string
	// Extra добавляется к параметрам каждого платежа перед подписью.
	Extra []Pair
}

// Payment описывает параметры исходящего платежа.
type Payment struct {
	Value                  Amount
	Currency               string
	Description            string
	MerchantData           string
	CustomerEmail          string
	ReturnURL              string
	BackToEshopURL         string
	MerchantSpecificSymbol string
	SpecificSymbol         string
	Deposit                *bool
	IsRecurring            *bool
}

// Params строит упорядоченный набор параметров платежа без подписи.
func (g *Gateway) Params(p Payment) (*Params, error) {
	if p.Value <= 0 {
		return nil, fmt.Errorf("%w: %s", ErrInvalidValue, p.Value)
	}

	params := NewParams()
	params.SetOptional("merchantId", g.MerchantID)
	params.SetOptional("accountId", g.AccountID)
	params.Set("value", p.Value.String())
	params.SetOptional("currency", p.Currency)
	params.SetOptional("description", p.Description)
	params.SetOptional("merchantData", p.MerchantData)
	params.SetOptional("customerEmail", p.CustomerEmail)
	params.SetOptional("returnUrl", p.ReturnURL)
	params.SetOptional("backToEshopUrl", p.BackToEshopURL)
	params.SetOptional("merchantSpecificSymbol", p.MerchantSpecificSymbol)
	params.SetOptional("specificSymbol", p.SpecificSymbol)
	params.SetFlag("deposit", p.Deposit)
	params.SetFlag("isRecurring", p.IsRecurring)

	for _, e := range g.Extra {
		params.Set(e.Key, e.Value)
	}

	return params, nil
}

// SignedParams строит параметры платежа и добавляет подпись.
func (g *Gateway) SignedParams(p Payment) (*Params, error) {
	params, err := g.Params(p)
	if err != nil {
		return nil, err
	}
	return params.Sign(g.Password), nil
}

// RedirectURL возвращает адрес платёжной страницы с подписанными параметрами.
func (g *Gateway) RedirectURL(p Payment) (string, error) {
	params, err := g.SignedParams(p)
	if err != nil {
		return "", err
	}
	return joinQuery(g.GateURL, params.Encode()), nil
}

// WidgetOptions управляет внешним видом встраиваемой платёжной кнопки.
type WidgetOptions struct {
	Skin             string
	DisableButtonCSS bool
	DisablePopupCSS  bool
}

// Widget содержит данные для встраивания платёжной кнопки на страницу.
type Widget struct {
	GateURL     string `json:"gate_url"`
	Skin        string `json:"skin,omitempty"`
	QueryString string `json:"query_string"`
	Time        int64  `json:"time"`
}

// Widget строит данные для встраиваемой кнопки. Флаги оформления в подпись не входят.
func (g *Gateway) Widget(p Payment, opts WidgetOptions, now time.Time) (*Widget, error) {
	params, err := g.SignedParams(p)
	if err != nil {
		return nil, err
	}
	params.Set("disableButtonCss", strconv.FormatBool(opts.DisableButtonCSS))
	params.Set("disablePopupCss", strconv.FormatBool(opts.DisablePopupCSS))

	return &Widget{
		GateURL:     g.GateURL,
		Skin:        opts.Skin,
		QueryString: params.Encode(),
		Time:        now.Unix(),
	}, nil
}

func joinQuery(base, query string) string {
	if strings.Contains(base, "?") {
		return base + "&" + query
	}
	return base + "?" + query
}
