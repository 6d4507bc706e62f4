package thepay

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// ErrInvalidMerchantData возвращается, если merchantData отсутствует или не является JSON-объектом.
var ErrInvalidMerchantData = errors.New("invalid merchant data")

// returnedKeys — поля обратного вызова в порядке подписи.
var returnedKeys = []string{
	"merchantId",
	"accountId",
	"value",
	"currency",
	"methodId",
	"description",
	"merchantData",
	"status",
	"paymentId",
	"ipRating",
	"isOffline",
	"needConfirm",
	"isConfirm",
	"customerAccountNumber",
	"customerAccountName",
}

// ReturnedPayment — разобранный обратный вызов шлюза.
type ReturnedPayment struct {
	params    *Params
	signature string
	dataType  string
	data      map[string]json.RawMessage
}

// ParseReturned извлекает поля обратного вызова и декодирует merchantData.
// Отсутствующие параметры в подпись не входят, пустые входят.
func ParseReturned(q url.Values) (*ReturnedPayment, error) {
	params := NewParams()
	for _, k := range returnedKeys {
		if q.Has(k) {
			params.Set(k, q.Get(k))
		}
	}

	raw, ok := params.Get("merchantData")
	if !ok {
		return nil, fmt.Errorf("%w: missing", ErrInvalidMerchantData)
	}

	dataType, data, err := decodeMerchantData(raw)
	if err != nil {
		return nil, err
	}

	return &ReturnedPayment{
		params:    params,
		signature: q.Get(SignatureKey),
		dataType:  dataType,
		data:      data,
	}, nil
}

func decodeMerchantData(raw string) (string, map[string]json.RawMessage, error) {
	var data map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw), &data); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidMerchantData, err)
	}
	if len(data) == 0 {
		return "", nil, fmt.Errorf("%w: empty object", ErrInvalidMerchantData)
	}

	// Тип определяется первым ключом объекта, поэтому порядок читается токенами.
	dec := json.NewDecoder(strings.NewReader(raw))
	if _, err := dec.Token(); err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidMerchantData, err)
	}
	tok, err := dec.Token()
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrInvalidMerchantData, err)
	}
	key, ok := tok.(string)
	if !ok {
		return "", nil, fmt.Errorf("%w: unexpected token", ErrInvalidMerchantData)
	}

	return key, data, nil
}

// SignatureValid пересчитывает подпись с тем же паролем и сравнивает её с присланной.
func (r *ReturnedPayment) SignatureValid(password string) bool {
	return signaturesEqual(r.signature, r.params.Signature(password))
}

// Type возвращает дискриминатор — первый ключ merchantData.
func (r *ReturnedPayment) Type() string {
	return r.dataType
}

// Ref возвращает числовую ссылку на бизнес-сущность, записанную под ключом key.
func (r *ReturnedPayment) Ref(key string) (int64, bool) {
	raw, ok := r.data[key]
	if !ok {
		return 0, false
	}

	var id int64
	if err := json.Unmarshal(raw, &id); err == nil {
		return id, true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// Get возвращает значение поля обратного вызова.
func (r *ReturnedPayment) Get(key string) string {
	v, _ := r.params.Get(key)
	return v
}

// MerchantData возвращает исходную строку merchantData.
func (r *ReturnedPayment) MerchantData() string {
	return r.Get("merchantData")
}

// Data возвращает декодированный merchantData.
func (r *ReturnedPayment) Data() map[string]json.RawMessage {
	return r.data
}

// MerchantData кодирует ссылку на бизнес-сущность, например {"f": 42}.
func MerchantData(kind string, id int64) string {
	b, _ := json.Marshal(kind)
	return fmt.Sprintf("{%s: %d}", b, id)
}
