package services

import (
	"time"

	"cafe_pos_backend/internal/repositories"
)

// Deps bundles the collaborators shared by the order lifecycle services.
type Deps struct {
	Transactor   repositories.Transactor
	Orders       repositories.OrderRepository
	OrderRecords repositories.OrderRecordRepository
	Stock        repositories.StockRepository
	Recipes      repositories.RecipeRepository
	Customers    repositories.CustomerRepository
	Products     repositories.ProductRepository
	Dispatcher   *Dispatcher

	// Clock and Sleep default to time.Now and time.Sleep.
	Clock func() time.Time
	Sleep func(time.Duration)
}

func (d Deps) withDefaults() Deps {
	if d.Clock == nil {
		d.Clock = time.Now
	}
	if d.Sleep == nil {
		d.Sleep = time.Sleep
	}
	if d.Dispatcher == nil {
		d.Dispatcher = NewDispatcher(nil, 0)
	}
	return d
}
