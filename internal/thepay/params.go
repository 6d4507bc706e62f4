package thepay

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"strings"
)

// Params — упорядоченный набор параметров запроса к шлюзу.
// Подпись считается в порядке добавления ключей, сортировка не применяется.
type Params struct {
	keys   []string
	values map[string]string
}

// NewParams создаёт пустой набор параметров.
func NewParams() *Params {
	return &Params{values: make(map[string]string)}
}

// Set задаёт значение. Существующий ключ сохраняет свою позицию.
func (p *Params) Set(key, value string) {
	if _, ok := p.values[key]; !ok {
		p.keys = append(p.keys, key)
	}
	p.values[key] = value
}

// SetOptional задаёт значение только если оно не пустое.
func (p *Params) SetOptional(key, value string) {
	if value != "" {
		p.Set(key, value)
	}
}

// SetFlag кодирует логический флаг как "1"/"0". nil пропускается.
func (p *Params) SetFlag(key string, value *bool) {
	if value == nil {
		return
	}
	if *value {
		p.Set(key, "1")
		return
	}
	p.Set(key, "0")
}

// Get возвращает значение параметра.
func (p *Params) Get(key string) (string, bool) {
	v, ok := p.values[key]
	return v, ok
}

// Keys возвращает ключи в порядке добавления.
func (p *Params) Keys() []string {
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Clone возвращает независимую копию набора.
func (p *Params) Clone() *Params {
	c := NewParams()
	for _, k := range p.keys {
		c.Set(k, p.values[k])
	}
	return c
}

// Encode сериализует параметры в query string, сохраняя порядок.
func (p *Params) Encode() string {
	var b strings.Builder
	for i, k := range p.keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(p.values[k]))
	}
	return b.String()
}

// Signature вычисляет подпись шлюза: md5 от "k1=v1&k2=v2&...&password=<secret>".
// Ключ signature в расчёт не входит.
func (p *Params) Signature(password string) string {
	var b strings.Builder
	for _, k := range p.keys {
		if k == SignatureKey {
			continue
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(p.values[k])
		b.WriteByte('&')
	}
	b.WriteString("password=")
	b.WriteString(password)

	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Sign возвращает копию набора с добавленным полем signature.
func (p *Params) Sign(password string) *Params {
	signed := p.Clone()
	signed.Set(SignatureKey, p.Signature(password))
	return signed
}

func signaturesEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
