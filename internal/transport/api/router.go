package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/fsdevblog/groph-pay/internal/transport/api/middlewares"
)

const (
	DefaultServiceTimeout = 3 * time.Second
	// WebhookServiceTimeout обработка вебхука пишет в две транзакции, даем запас.
	WebhookServiceTimeout = 5 * time.Second
	// GenerationServiceTimeout включает вызов внешнего сервиса генерации.
	GenerationServiceTimeout = 30 * time.Second
)

const (
	RouteGroup        = "/api"
	WebhookRoute      = "/webhooks/:channel"
	OrdersRoute       = "/user/orders"
	BalanceRoute      = "/user/balance"
	TransactionsRoute = "/user/balance/transactions"
	ReferralCodeRoute = "/user/referral/code"
	ReferralRoute     = "/user/referral"
	GenerationsRoute  = "/user/generations"
)

type RouterArgs struct {
	Logger          *logrus.Logger
	OrderService    OrderServicer
	PaymentService  PaymentServicer
	BlService       BalanceServicer
	ReferralService ReferralServicer
	MeterService    MeterServicer
	Generator       Generator
	JWTSecretKey    []byte
}

func New(args RouterArgs) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if args.Logger != nil {
		r.Use(middlewares.Logger(args.Logger))
	}
	r.Use(middlewares.Errors())

	ordersHandler := NewOrdersHandler(args.OrderService)
	webhooksHandler := NewWebhooksHandler(args.PaymentService)
	balanceHandler := NewBalanceHandler(args.BlService)
	referralHandler := NewReferralHandler(args.ReferralService)
	generationsHandler := NewGenerationsHandler(args.MeterService, args.Generator)

	api := r.Group(RouteGroup)

	// вебхуки аутентифицируются подписью канала, а не JWT.
	api.POST(WebhookRoute, webhooksHandler.Notify)

	api.Use(middlewares.AuthRequired(args.JWTSecretKey))
	// ниже все роуты группы требуют авторизованного пользователя.
	api.POST(OrdersRoute, ordersHandler.Create)
	api.GET(OrdersRoute, ordersHandler.Index)

	api.GET(BalanceRoute, balanceHandler.Index)
	api.GET(TransactionsRoute, balanceHandler.Transactions)

	api.GET(ReferralCodeRoute, referralHandler.Code)
	api.POST(ReferralRoute, referralHandler.Activate)

	api.POST(GenerationsRoute, generationsHandler.Create)
	return r
}
