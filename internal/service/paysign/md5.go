package paysign

import (
	"crypto/md5" //nolint:gosec // формат подписи задан каналом
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/fsdevblog/groph-pay/internal/domain"
)

const md5SignKey = "sign"

// fieldMap имена полей уведомления конкретного канала.
type fieldMap struct {
	OrderNo       string
	TradeNo       string
	Status        string
	SuccessValues []string
	FailureValues []string
	Amount        string
	// AmountInCents сумма приходит целым числом в сотых долях (копейки/феней), а не строкой
	// с десятичной точкой.
	AmountInCents bool
	Ack           string
}

// MD5Scheme схема с общим секретом: к канонической строке приписывается секрет,
// от результата берется MD5, сравнение без учета регистра.
type MD5Scheme struct {
	secret string
	fields fieldMap
}

func NewMD5Scheme(secret string, fields fieldMap) *MD5Scheme {
	return &MD5Scheme{secret: secret, fields: fields}
}

// NewWechatScheme MD5 схема с полями wechat-уведомления. Сумма в total_fee, в фенях.
func NewWechatScheme(secret string) *MD5Scheme {
	return NewMD5Scheme(secret, fieldMap{
		OrderNo:       "out_trade_no",
		TradeNo:       "transaction_id",
		Status:        "result_code",
		SuccessValues: []string{"SUCCESS"},
		FailureValues: []string{"FAIL", "PAYERROR", "CLOSED"},
		Amount:        "total_fee",
		AmountInCents: true,
		Ack:           `{"code":"SUCCESS","message":"OK"}`,
	})
}

// NewEpayScheme MD5 схема с полями агрегатора epay.
func NewEpayScheme(secret string) *MD5Scheme {
	return NewMD5Scheme(secret, fieldMap{
		OrderNo:       "out_trade_no",
		TradeNo:       "trade_no",
		Status:        "trade_status",
		SuccessValues: []string{"TRADE_SUCCESS"},
		FailureValues: []string{"TRADE_CLOSED"},
		Amount:        "money",
		Ack:           "success",
	})
}

func (m *MD5Scheme) Verify(params map[string]string) error {
	sign := params[md5SignKey]
	if sign == "" {
		return fmt.Errorf("%w: empty sign", domain.ErrSignatureInvalid)
	}

	expected := m.sign(params)
	if !strings.EqualFold(sign, expected) {
		return fmt.Errorf("%w: digest mismatch", domain.ErrSignatureInvalid)
	}
	return nil
}

// Sign считает подпись параметров. Экспортирован для тестов и для исходящих запросов к каналу.
func (m *MD5Scheme) Sign(params map[string]string) string {
	return m.sign(params)
}

func (m *MD5Scheme) sign(params map[string]string) string {
	payload := canonicalString(params, md5SignKey, "sign_type") + "&key=" + m.secret
	digest := md5.Sum([]byte(payload)) //nolint:gosec
	return hex.EncodeToString(digest[:])
}

func (m *MD5Scheme) Notification(params map[string]string) (*domain.PaymentNotification, error) {
	amount, amountErr := m.parseAmount(params[m.fields.Amount])
	if amountErr != nil {
		return nil, amountErr
	}

	status := params[m.fields.Status]

	return &domain.PaymentNotification{
		OrderNo:    params[m.fields.OrderNo],
		TradeNo:    params[m.fields.TradeNo],
		Succeeded:  containsValue(m.fields.SuccessValues, status),
		Failed:     containsValue(m.fields.FailureValues, status),
		PaidAmount: amount,
	}, nil
}

func containsValue(values []string, v string) bool {
	for _, value := range values {
		if value == v {
			return true
		}
	}
	return false
}

func (m *MD5Scheme) parseAmount(raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, nil
	}
	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("[paysign] amount `%s`: %s", raw, err.Error())
	}
	if m.fields.AmountInCents {
		amount = amount.Shift(-2) //nolint:mnd
	}
	return amount, nil
}

func (m *MD5Scheme) Ack() string {
	return m.fields.Ack
}
