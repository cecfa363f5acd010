package app

import (
	"context"
	"fmt"

	"github.com/fsdevblog/groph-pay/internal/repository/repoargs"

	"github.com/fsdevblog/groph-pay/internal/transport/genclient"
	"github.com/fsdevblog/groph-pay/internal/transport/sweep"

	"github.com/fsdevblog/groph-pay/pkg/uow"

	"github.com/fsdevblog/groph-pay/internal/config"
	"github.com/fsdevblog/groph-pay/internal/domain"
	"github.com/fsdevblog/groph-pay/internal/repository/pgrepo"
	"github.com/fsdevblog/groph-pay/internal/service"
	"github.com/fsdevblog/groph-pay/internal/service/paysign"
	"github.com/fsdevblog/groph-pay/internal/transport/api"
	"github.com/sirupsen/logrus"

	// driver for migration applying postgres.
	_ "github.com/golang-migrate/migrate/v4/database/postgres" //nolint:revive
	// driver to get migrations from files (*.sql in our case).
	"os/signal"
	"syscall"

	_ "github.com/golang-migrate/migrate/v4/source/file" //nolint:revive
	"github.com/jackc/pgx/v5/pgxpool"
)

type App struct {
	Config *config.Config
	Logger *logrus.Logger
}

func New(conf *config.Config, l *logrus.Logger) *App {
	return &App{
		Config: conf,
		Logger: l,
	}
}

func (a *App) Run() error {
	notifyCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.Logger.Infof("Starting app on %s", a.Config.RunAddress)
	conn, connErr := pgrepo.Connect(notifyCtx, a.Config.MigrationsDir, a.Config.DatabaseDSN, a.Logger)
	if connErr != nil {
		return fmt.Errorf("app run: %s", connErr.Error())
	}
	defer conn.Close()

	unitOfWork, uowErr := initUOW(conn)
	if uowErr != nil {
		return fmt.Errorf("app run: %s", uowErr.Error())
	}

	registry, regErr := a.initPaysign()
	if regErr != nil {
		return fmt.Errorf("app run: %s", regErr.Error())
	}

	services, sErr := service.Factory(unitOfWork, registry, a.Logger)
	if sErr != nil {
		return fmt.Errorf("app run: %s", sErr.Error())
	}

	router := api.New(api.RouterArgs{
		Logger:          a.Logger,
		OrderService:    services.OrderService,
		PaymentService:  services.PaymentService,
		BlService:       services.CreditService,
		ReferralService: services.ReferralService,
		MeterService:    services.GateService,
		Generator:       genclient.New(a.Config.GenerationAPIAddress),
		JWTSecretKey:    []byte(a.Config.JWTUserSecret),
	})

	errChan := make(chan error, 1)

	go func() {
		if runErr := router.Run(a.Config.RunAddress); runErr != nil {
			errChan <- runErr
		}
	}()

	processor := sweep.New(services.PaymentService, a.Logger).
		SetInterval(a.Config.SweepInterval).
		SetSweepWorkers(5).   //nolint:mnd
		SetLimitPerSweep(100) //nolint:mnd

	go processor.Run(notifyCtx)

	select {
	case <-notifyCtx.Done():
		return notifyCtx.Err() //nolint:wrapcheck
	case err := <-errChan:
		return err
	}
}

// initPaysign собирает реестр схем подписи. Канал без настроенного ключа не регистрируется:
// его вебхуки будут отклонены как неизвестный канал.
func (a *App) initPaysign() (*paysign.Registry, error) {
	registry := paysign.NewRegistry()

	if a.Config.AlipayPublicKey != "" {
		alipay, alipayErr := paysign.NewAlipayScheme([]byte(a.Config.AlipayPublicKey))
		if alipayErr != nil {
			return nil, fmt.Errorf("init paysign: %s", alipayErr.Error())
		}
		registry.Register(domain.ChannelAlipay, alipay)
	}

	if a.Config.WechatAPISecret != "" {
		registry.Register(domain.ChannelWechat, paysign.NewWechatScheme(a.Config.WechatAPISecret))
	}

	if a.Config.EpaySecret != "" {
		registry.Register(domain.ChannelEpay, paysign.NewEpayScheme(a.Config.EpaySecret))
	}

	return registry, nil
}

func initUOW(conn *pgxpool.Pool) (*uow.UnitOfWork, error) {
	unitOfWork := uow.NewUnitOfWork(conn)

	// order repo
	orderRepoFactoryFn := func(dbtx uow.DBTX) uow.Repository {
		return pgrepo.NewOrderRepository(dbtx)
	}
	if regErr := unitOfWork.Register(uow.RepositoryName(repoargs.OrderRepoName), orderRepoFactoryFn); regErr != nil {
		return nil, fmt.Errorf("init UOW: %s", regErr.Error())
	}

	// credit repo
	creditRepoFactoryFn := func(dbtx uow.DBTX) uow.Repository {
		return pgrepo.NewCreditRepository(dbtx)
	}
	if regErr := unitOfWork.Register(uow.RepositoryName(repoargs.CreditRepoName), creditRepoFactoryFn); regErr != nil {
		return nil, fmt.Errorf("init UOW: %s", regErr.Error())
	}

	// referral repo
	referralRepoFactoryFn := func(dbtx uow.DBTX) uow.Repository {
		return pgrepo.NewReferralRepository(dbtx)
	}
	if regErr := unitOfWork.Register(uow.RepositoryName(repoargs.ReferralRepoName), referralRepoFactoryFn); regErr != nil {
		return nil, fmt.Errorf("init UOW: %s", regErr.Error())
	}

	return unitOfWork, nil
}
