package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/fsdevblog/groph-pay/internal/domain"
	"github.com/fsdevblog/groph-pay/internal/service/paysign"
)

// webhookFailBody каналы по ответу, отличному от своего ack, повторяют доставку. Подробности
// отказа (подпись, внутренности канала) наружу не уходят.
const webhookFailBody = "fail"

type WebhooksHandler struct {
	paymentSvs PaymentServicer
}

func NewWebhooksHandler(paymentSvs PaymentServicer) *WebhooksHandler {
	return &WebhooksHandler{
		paymentSvs: paymentSvs,
	}
}

// Notify POST RouteGroup + WebhookRoute. Принимает уведомление платежного канала:
// form-encoded либо JSON, в зависимости от канала.
func (w *WebhooksHandler) Notify(c *gin.Context) {
	channel := domain.PaymentChannel(c.Param("channel"))

	params, paramsErr := notificationParams(c)
	if paramsErr != nil {
		_ = c.Error(paramsErr).SetType(gin.ErrorTypePrivate)
		c.String(http.StatusBadRequest, webhookFailBody)
		return
	}

	reqCtx, cancel := context.WithTimeout(c, WebhookServiceTimeout)
	defer cancel()

	ack, err := w.paymentSvs.HandleNotification(reqCtx, channel, params)
	if err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, domain.ErrSignatureInvalid),
			errors.Is(err, domain.ErrRecordNotFound),
			errors.Is(err, domain.ErrInvalidStateTransition),
			errors.Is(err, paysign.ErrUnknownChannel):
			// ожидаемые отказы: канал получит failure-статус и повторит доставку
		default:
			status = http.StatusInternalServerError
		}
		_ = c.Error(err).SetType(gin.ErrorTypePrivate)
		c.String(status, webhookFailBody)
		return
	}

	if strings.HasPrefix(ack, "{") {
		c.Data(http.StatusOK, "application/json; charset=utf-8", []byte(ack))
		return
	}
	c.String(http.StatusOK, ack)
}

// notificationParams разбирает параметры уведомления в плоскую мапу. JSON каналы шлют объект
// строка-строка, остальные — form-encoded тело (query-параметры тоже учитываются).
func notificationParams(c *gin.Context) (map[string]string, error) {
	if strings.Contains(c.ContentType(), "application/json") {
		var params map[string]string
		if err := json.NewDecoder(c.Request.Body).Decode(&params); err != nil {
			return nil, err //nolint:wrapcheck
		}
		return params, nil
	}

	if err := c.Request.ParseForm(); err != nil {
		return nil, err //nolint:wrapcheck
	}
	params := make(map[string]string, len(c.Request.Form))
	for key, values := range c.Request.Form {
		if len(values) > 0 {
			params[key] = values[0]
		}
	}
	return params, nil
}
