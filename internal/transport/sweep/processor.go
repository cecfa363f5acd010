// Package sweep досчитывает кредиты за оплаченные заказы, по которым начисление не прошло
// в момент обработки вебхука.
package sweep

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/fsdevblog/groph-pay/internal/domain"
)

const (
	defaultServiceTimeout      = 3 * time.Second
	defaultGrantTimeout        = 5 * time.Second
	defaultInterval            = 30 * time.Second
	defaultLimitPerSweep  uint = 100
	defaultSweepWorkers   uint = 5
)

// Processor находит оплаченные заказы без транзакции покупки и повторяет начисление.
// Начисление идемпотентно, поэтому гонка с живой обработкой вебхука безопасна.
type Processor struct {
	svs           Servicer
	l             *logrus.Entry
	interval      time.Duration
	limitPerSweep uint
	sweepWorkers  uint
}

// New создает новый экземпляр фонового досчета начислений.
func New(svs Servicer, l *logrus.Logger) *Processor {
	loggerEntry := l.WithFields(logrus.Fields{
		"component": "sweep",
		"module":    "processor",
	})

	return &Processor{
		svs:           svs,
		l:             loggerEntry,
		interval:      defaultInterval,
		limitPerSweep: defaultLimitPerSweep,
		sweepWorkers:  defaultSweepWorkers,
	}
}

// SetInterval устанавливает паузу между проходами.
func (p *Processor) SetInterval(interval time.Duration) *Processor {
	p.interval = interval
	return p
}

// SetLimitPerSweep устанавливает кол-во заказов, обрабатываемых за один проход.
func (p *Processor) SetLimitPerSweep(limit uint) *Processor {
	p.limitPerSweep = limit
	return p
}

// SetSweepWorkers устанавливает кол-во воркеров, начисляющих кредиты.
func (p *Processor) SetSweepWorkers(workers uint) *Processor {
	p.sweepWorkers = workers
	return p
}

// Run запускает досчет в бесконечном цикле до отмены контекста.
//
// Алгоритм работы:
//  1. В каждом проходе запрашивает через сервисный слой список оплаченных заказов без
//     начисления. Объем списка лимитируется через SetLimitPerSweep.
//  2. Для каждого прохода создаются N воркеров (кол-во настраивается через SetSweepWorkers),
//     которые повторяют начисление по ключу идемпотентности заказа.
//  3. Между проходами — пауза SetInterval; пустой список не считается ошибкой.
func (p *Processor) Run(ctx context.Context) {
	p.l.WithFields(logrus.Fields{
		"interval":      p.interval,
		"limitPerSweep": p.limitPerSweep,
		"sweepWorkers":  p.sweepWorkers,
	}).Info("Starting")

	for {
		if err := p.process(ctx); err != nil && !errors.Is(err, ErrNoOrders) {
			p.l.WithError(err).Error("sweep error")
		}

		select {
		case <-ctx.Done():
			p.l.Info("Got stop signal, exiting...")
			return
		case <-time.After(p.interval):
		}
	}
}

// Sweep выполняет один проход досчета. Используется в Run и напрямую в тестах.
func (p *Processor) Sweep(ctx context.Context) error {
	return p.process(ctx)
}

func (p *Processor) process(ctx context.Context) error {
	orders, ordersErr := p.produce(ctx)
	if ordersErr != nil {
		return fmt.Errorf("process: %w", ordersErr)
	}

	granted := p.runWorkers(ctx, orders)
	p.l.WithFields(logrus.Fields{
		"found":   len(orders),
		"granted": granted,
	}).Info("sweep pass done")

	return nil
}

// workerResult результат повторного начисления по одному заказу.
type workerResult struct {
	WorkerID uint
	Order    *domain.Order
	Error    error
}

// runWorkers запускает параллельных воркеров для повторного начисления и ожидает конца их
// работы. Реализует паттерн fan-out/fan-in. Возвращает число успешных начислений.
func (p *Processor) runWorkers(ctx context.Context, orders []domain.Order) int {
	var taskCh = make(chan *domain.Order, len(orders))

	for _, order := range orders {
		taskCh <- &order
	}
	close(taskCh)

	wg := new(sync.WaitGroup)
	wg.Add(int(p.sweepWorkers)) // nolint:gosec

	var resultCh = make(chan *workerResult, len(orders))

	for i := range p.sweepWorkers {
		go p.worker(ctx, wg, i+1, taskCh, resultCh)
	}
	wg.Wait()

	close(resultCh)

	var granted int
	for result := range resultCh {
		l := p.l.WithFields(logrus.Fields{
			"worker":  result.WorkerID,
			"orderID": result.Order.ID,
			"orderNo": result.Order.OrderNo,
		})
		if result.Error != nil {
			l.WithError(result.Error).Error("grant credits for order")
			continue
		}
		l.Info("credits granted")
		granted++
	}
	return granted
}

// worker обрабатывает заказы из канала и отправляет результаты начисления.
func (p *Processor) worker(
	ctx context.Context,
	wg *sync.WaitGroup,
	workerID uint,
	taskCh <-chan *domain.Order,
	resultCh chan<- *workerResult,
) {
	defer wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-taskCh:
			if !ok {
				return
			}
			grantCtx, cancel := context.WithTimeout(ctx, defaultGrantTimeout)
			grantErr := p.svs.GrantForOrder(grantCtx, *task)
			cancel()

			resultCh <- &workerResult{
				WorkerID: workerID,
				Order:    task,
				Error:    grantErr,
			}
		}
	}
}

// produce получает список оплаченных заказов без начисления.
// Возвращает ErrNoOrders, если такие заказы отсутствуют.
func (p *Processor) produce(ctx context.Context) ([]domain.Order, error) {
	produceCtx, cancel := context.WithTimeout(ctx, defaultServiceTimeout)
	defer cancel()

	orders, ordersErr := p.svs.PaidUncredited(produceCtx, p.limitPerSweep)
	if ordersErr != nil {
		return nil, fmt.Errorf("produce: %w", ordersErr)
	}

	if len(orders) == 0 {
		return nil, ErrNoOrders
	}
	return orders, nil
}
