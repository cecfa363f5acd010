package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/fsdevblog/groph-pay/internal/domain"
	"github.com/fsdevblog/groph-pay/internal/service"
)

type OrdersHandler struct {
	orderSvs OrderServicer
}

func NewOrdersHandler(orderSvs OrderServicer) *OrdersHandler {
	return &OrdersHandler{
		orderSvs: orderSvs,
	}
}

type CheckoutParams struct {
	ProductID string `json:"product_id" binding:"required"`
	Channel   string `json:"channel"    binding:"required,oneof=alipay wechat epay"`
}

type OrderResponse struct {
	OrderNo   string    `json:"order_no"`
	ProductID string    `json:"product_id"`
	Amount    float64   `json:"amount"`
	Credits   int64     `json:"credits"`
	Channel   string    `json:"channel"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	PaidAt    string    `json:"paid_at,omitempty"`
}

// Create POST RouteGroup + OrdersRoute. Старт покупки: заказ создается в статусе pending,
// оплаченным его может сделать только вебхук канала.
func (o *OrdersHandler) Create(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	var params CheckoutParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		_ = c.AbortWithError(http.StatusBadRequest, bindErr).SetType(gin.ErrorTypeBind)
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	order, err := o.orderSvs.Checkout(reqCtx, currentUserID, params.ProductID, domain.PaymentChannel(params.Channel))
	if err != nil {
		if errors.Is(err, service.ErrUnknownProduct) {
			c.AbortWithStatus(http.StatusUnprocessableEntity)
			return
		}
		_ = c.AbortWithError(http.StatusInternalServerError, err).SetType(gin.ErrorTypePrivate)
		return
	}

	c.JSON(http.StatusCreated, orderResponse(*order))
}

// Index GET RouteGroup + OrdersRoute.
func (o *OrdersHandler) Index(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	orders, err := o.orderSvs.GetByUserID(reqCtx, currentUserID)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err).SetType(gin.ErrorTypePrivate)
		return
	}

	if len(orders) == 0 {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}

	var response = make([]OrderResponse, len(orders))
	for i, order := range orders {
		response[i] = orderResponse(order)
	}
	c.JSON(http.StatusOK, response)
}

func orderResponse(order domain.Order) OrderResponse {
	resp := OrderResponse{
		OrderNo:   order.OrderNo,
		ProductID: order.ProductID,
		Amount:    order.Amount.InexactFloat64(),
		Credits:   service.CreditsForAmount(order.Amount),
		Channel:   string(order.Channel),
		Status:    string(order.Status),
		CreatedAt: order.CreatedAt,
	}
	if order.PaidAt != nil {
		resp.PaidAt = order.PaidAt.Format(time.RFC3339)
	}
	return resp
}
