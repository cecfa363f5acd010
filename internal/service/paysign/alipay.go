package paysign

import (
	"crypto"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/fsdevblog/groph-pay/internal/domain"
)

const (
	alipaySignKey     = "sign"
	alipaySignTypeKey = "sign_type"

	alipayStatusSuccess  = "TRADE_SUCCESS"
	alipayStatusFinished = "TRADE_FINISHED"
	alipayStatusClosed   = "TRADE_CLOSED"
)

// AlipayScheme асимметричная схема: уведомление подписано закрытым ключом канала,
// мы проверяем подпись SHA256WithRSA по зафиксированному публичному ключу.
type AlipayScheme struct {
	publicKey *rsa.PublicKey
}

// NewAlipayScheme принимает публичный ключ канала в PEM (PKIX либо PKCS1).
func NewAlipayScheme(publicKeyPEM []byte) (*AlipayScheme, error) {
	block, _ := pem.Decode(publicKeyPEM)
	if block == nil {
		return nil, errors.New("[paysign] alipay public key: no PEM block found")
	}

	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		rsaKey, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, errors.New("[paysign] alipay public key: not an RSA key")
		}
		return &AlipayScheme{publicKey: rsaKey}, nil
	}

	rsaKey, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, errors.Wrap(err, "[paysign] parsing alipay public key")
	}
	return &AlipayScheme{publicKey: rsaKey}, nil
}

func (a *AlipayScheme) Verify(params map[string]string) error {
	sign := params[alipaySignKey]
	if sign == "" {
		return fmt.Errorf("%w: empty sign", domain.ErrSignatureInvalid)
	}

	signature, decodeErr := base64.StdEncoding.DecodeString(sign)
	if decodeErr != nil {
		return fmt.Errorf("%w: sign is not base64", domain.ErrSignatureInvalid)
	}

	digest := sha256.Sum256([]byte(canonicalString(params, alipaySignKey, alipaySignTypeKey)))
	if err := rsa.VerifyPKCS1v15(a.publicKey, crypto.SHA256, digest[:], signature); err != nil {
		return fmt.Errorf("%w: rsa verification failed", domain.ErrSignatureInvalid)
	}
	return nil
}

func (a *AlipayScheme) Notification(params map[string]string) (*domain.PaymentNotification, error) {
	status := params["trade_status"]
	amount, amountErr := decimal.NewFromString(params["total_amount"])
	if amountErr != nil && params["total_amount"] != "" {
		return nil, fmt.Errorf("[paysign] alipay total_amount `%s`: %s", params["total_amount"], amountErr.Error())
	}

	return &domain.PaymentNotification{
		OrderNo:    params["out_trade_no"],
		TradeNo:    params["trade_no"],
		Succeeded:  status == alipayStatusSuccess || status == alipayStatusFinished,
		Failed:     status == alipayStatusClosed,
		PaidAmount: amount,
	}, nil
}

func (a *AlipayScheme) Ack() string {
	return "success"
}
