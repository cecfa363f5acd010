package service

import (
	"errors"

	"github.com/shopspring/decimal"
)

// CreditsPerUnit единственный источник курса обмена: сколько кредитов дает одна денежная
// единица. Кредиты за покупку всегда считаются через CreditsForAmount от фактически
// оплаченной суммы, нигде больше курс не объявляется.
const CreditsPerUnit = 100

// Награды реферальной программы, в кредитах.
const (
	ReferrerReward int64 = 500
	RefereeReward  int64 = 200
)

// GenerationCost стоимость одного метеризуемого вызова генерации, в кредитах.
const GenerationCost int64 = 10

var ErrUnknownProduct = errors.New("unknown product")

func CreditsForAmount(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(CreditsPerUnit)).IntPart()
}

type Product struct {
	ID    string
	Name  string
	Price decimal.Decimal
}

// Кредиты за продукт не хранятся отдельно: они выводятся из цены через курс.
var products = map[string]Product{
	"pack_s": {ID: "pack_s", Name: "Starter pack", Price: decimal.NewFromFloat(6.00)},
	"pack_m": {ID: "pack_m", Name: "Standard pack", Price: decimal.NewFromFloat(30.00)},
	"pack_l": {ID: "pack_l", Name: "Pro pack", Price: decimal.NewFromFloat(68.00)},
}

func ProductByID(id string) (Product, error) {
	product, ok := products[id]
	if !ok {
		return Product{}, ErrUnknownProduct
	}
	return product, nil
}
