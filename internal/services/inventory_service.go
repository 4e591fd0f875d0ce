package services

import (
	"context"
	"errors"
	"fmt"

	"cafe_pos_backend/internal/models"
	"cafe_pos_backend/internal/repositories"
	"cafe_pos_backend/pkg/utils"

	"github.com/shopspring/decimal"
)

// OrderRef identifies the order a ledger entry belongs to.
type OrderRef struct {
	ID     int64
	Number string
}

func refOf(order *models.Order) OrderRef {
	return OrderRef{ID: order.ID, Number: order.OrderNumber}
}

// InventoryService is the inventory ledger. Methods taking an executor run
// inside the caller's transaction.
type InventoryService interface {
	Reserve(ctx context.Context, executor repositories.SQLExecutor, lines []models.StockLine) error
	Deduct(ctx context.Context, executor repositories.SQLExecutor, ref OrderRef, lines []models.StockLine, actor models.Actor) ([]models.StockUpdate, error)
	Restore(ctx context.Context, executor repositories.SQLExecutor, ref OrderRef, lines []models.StockLine, actor models.Actor, reason string) ([]models.StockUpdate, error)
	RestoreOrder(ctx context.Context, executor repositories.SQLExecutor, ref OrderRef, actor models.Actor, reason string) ([]models.StockUpdate, error)
	HasDeducted(ctx context.Context, executor repositories.SQLExecutor, orderID int64) (bool, error)

	// ProcessAlerts runs after commit. Failures are logged, never returned.
	ProcessAlerts(ctx context.Context, updates []models.StockUpdate) []models.StockAlert
	GetUnreadAlerts(ctx context.Context) ([]models.StockAlert, error)
	MarkAlertRead(ctx context.Context, alertID int64) error
}

type inventoryService struct {
	deps     Deps
	expander *RecipeExpander
}

// NewInventoryService creates the inventory ledger service.
func NewInventoryService(deps Deps) InventoryService {
	return newInventoryService(deps.withDefaults())
}

func newInventoryService(deps Deps) *inventoryService {
	return &inventoryService{deps: deps, expander: NewRecipeExpander(deps.Recipes)}
}

// aggregateLines merges lines per product, keeping first-appearance order.
func aggregateLines(lines []models.StockLine) []models.StockLine {
	index := make(map[int64]int, len(lines))
	out := make([]models.StockLine, 0, len(lines))
	for _, line := range lines {
		if line.Quantity <= 0 {
			continue
		}
		if i, ok := index[line.ProductID]; ok {
			out[i].Quantity += line.Quantity
			continue
		}
		index[line.ProductID] = len(out)
		out = append(out, line)
	}
	return out
}

func productIDsOf(lines []models.StockLine) []int64 {
	ids := make([]int64, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.ProductID)
	}
	return ids
}

func ingredientIDsOf(reqs []models.IngredientRequirement) []int64 {
	ids := make([]int64, 0, len(reqs))
	for _, r := range reqs {
		ids = append(ids, r.IngredientID)
	}
	return ids
}

func (s *inventoryService) lockProducts(ctx context.Context, executor repositories.SQLExecutor, lines []models.StockLine) (map[int64]models.Stock, error) {
	stocks, err := s.deps.Stock.LockProductStocks(ctx, executor, productIDsOf(lines))
	if err != nil {
		return nil, translateRepoError(err, "stock", 0)
	}
	byProduct := make(map[int64]models.Stock, len(stocks))
	for _, st := range stocks {
		byProduct[st.ProductID] = st
	}
	return byProduct, nil
}

func (s *inventoryService) lockIngredients(ctx context.Context, executor repositories.SQLExecutor, reqs []models.IngredientRequirement) (map[int64]models.IngredientStock, error) {
	stocks, err := s.deps.Stock.LockIngredientStocks(ctx, executor, ingredientIDsOf(reqs))
	if err != nil {
		return nil, translateRepoError(err, "ingredient stock", 0)
	}
	byIngredient := make(map[int64]models.IngredientStock, len(stocks))
	for _, st := range stocks {
		byIngredient[st.IngredientID] = st
	}
	return byIngredient, nil
}

// Reserve locks the tracked stock rows of lines and fails on the first product
// whose available quantity is below the requested total. It writes nothing.
func (s *inventoryService) Reserve(ctx context.Context, executor repositories.SQLExecutor, lines []models.StockLine) error {
	merged := aggregateLines(lines)
	if len(merged) == 0 {
		return nil
	}
	stocks, err := s.lockProducts(ctx, executor, merged)
	if err != nil {
		return err
	}
	for _, line := range merged {
		st, tracked := stocks[line.ProductID]
		if !tracked {
			continue
		}
		if st.Quantity < line.Quantity {
			return &InsufficientStockError{ProductID: line.ProductID, Available: st.Quantity, Requested: line.Quantity}
		}
	}
	return nil
}

func saleReason(ref OrderRef) string {
	return fmt.Sprintf("Sale for order %s", ref.Number)
}

// Deduct records a SALE for every tracked product and ingredient of lines
// that has not yet been deducted for ref. Calling it again for the same order
// is a no-op. Products use a guarded decrement; ingredients are clamped at zero.
func (s *inventoryService) Deduct(ctx context.Context, executor repositories.SQLExecutor, ref OrderRef, lines []models.StockLine, actor models.Actor) ([]models.StockUpdate, error) {
	merged := aggregateLines(lines)
	if len(merged) == 0 {
		return nil, nil
	}
	updates := []models.StockUpdate{}
	orderID := ref.ID

	stocks, err := s.lockProducts(ctx, executor, merged)
	if err != nil {
		return nil, err
	}
	for _, line := range merged {
		st, tracked := stocks[line.ProductID]
		if !tracked {
			continue
		}
		done, err := s.deps.Stock.HasSaleTransaction(ctx, executor, ref.ID, models.StockTargetProduct, line.ProductID)
		if err != nil {
			return nil, translateRepoError(err, "stock transaction", ref.ID)
		}
		if done {
			continue
		}

		after, err := s.deps.Stock.DecrementProductStock(ctx, executor, line.ProductID, line.Quantity)
		if err != nil {
			if errors.Is(err, repositories.ErrStockGuard) {
				return nil, &InsufficientStockError{ProductID: line.ProductID, Available: st.Quantity, Requested: line.Quantity}
			}
			return nil, translateRepoError(err, "stock", line.ProductID)
		}
		productID := line.ProductID
		if _, err := s.deps.Stock.CreateTransaction(ctx, executor, &models.StockTransaction{
			ProductID: &productID,
			OrderID:   &orderID,
			Type:      models.StockTransactionSale,
			Quantity:  decimal.NewFromInt(int64(line.Quantity)),
			Reason:    saleReason(ref),
			CreatedBy: actor.UserID,
		}); err != nil {
			return nil, translateRepoError(err, "stock transaction", ref.ID)
		}
		updates = append(updates, models.StockUpdate{
			Target:      models.StockTargetProduct,
			ID:          line.ProductID,
			OldQuantity: decimal.NewFromInt(int64(st.Quantity)),
			NewQuantity: decimal.NewFromInt(int64(after.Quantity)),
			MinStock:    decimal.NewFromInt(int64(after.MinStock)),
		})
	}

	reqs, err := s.expander.Expand(ctx, executor, merged)
	if err != nil {
		return nil, err
	}
	if len(reqs) == 0 {
		return updates, nil
	}
	ingredients, err := s.lockIngredients(ctx, executor, reqs)
	if err != nil {
		return nil, err
	}
	for _, req := range reqs {
		st, tracked := ingredients[req.IngredientID]
		if !tracked {
			continue
		}
		done, err := s.deps.Stock.HasSaleTransaction(ctx, executor, ref.ID, models.StockTargetIngredient, req.IngredientID)
		if err != nil {
			return nil, translateRepoError(err, "stock transaction", ref.ID)
		}
		if done {
			continue
		}

		after, err := s.deps.Stock.DecrementIngredientStock(ctx, executor, req.IngredientID, req.Quantity)
		if err != nil {
			return nil, translateRepoError(err, "ingredient stock", req.IngredientID)
		}
		// The ledger records what was actually taken so a later restore is exact.
		taken := st.Quantity.Sub(after.Quantity)
		if taken.LessThan(req.Quantity) {
			utils.LogWarn(nil, "Ingredient stock clamped at zero", map[string]interface{}{
				"order_number":  ref.Number,
				"ingredient_id": req.IngredientID,
				"required":      req.Quantity.String(),
				"available":     st.Quantity.String(),
			})
		}
		if taken.IsPositive() {
			ingredientID := req.IngredientID
			if _, err := s.deps.Stock.CreateTransaction(ctx, executor, &models.StockTransaction{
				IngredientID: &ingredientID,
				OrderID:      &orderID,
				Type:         models.StockTransactionSale,
				Quantity:     taken,
				Reason:       saleReason(ref),
				CreatedBy:    actor.UserID,
			}); err != nil {
				return nil, translateRepoError(err, "stock transaction", ref.ID)
			}
		}
		updates = append(updates, models.StockUpdate{
			Target:      models.StockTargetIngredient,
			ID:          req.IngredientID,
			OldQuantity: st.Quantity,
			NewQuantity: after.Quantity,
			MinStock:    after.MinStock,
		})
	}
	return updates, nil
}

// Restore puts lines back into stock, product rows and their recipe
// ingredients, writing RETURN ledger rows. Each target is capped at what the
// order's ledger still holds, so piecewise returns never restore more than
// the SALE rows took.
func (s *inventoryService) Restore(ctx context.Context, executor repositories.SQLExecutor, ref OrderRef, lines []models.StockLine, actor models.Actor, reason string) ([]models.StockUpdate, error) {
	merged := aggregateLines(lines)
	if len(merged) == 0 {
		return nil, nil
	}
	balance, err := s.ledgerBalance(ctx, executor, ref.ID)
	if err != nil {
		return nil, err
	}
	stocks, err := s.lockProducts(ctx, executor, merged)
	if err != nil {
		return nil, err
	}

	updates := []models.StockUpdate{}
	for _, line := range merged {
		if _, tracked := stocks[line.ProductID]; !tracked {
			continue
		}
		qty := decimal.Min(decimal.NewFromInt(int64(line.Quantity)), balance.products[line.ProductID])
		if !qty.IsPositive() {
			continue
		}
		update, err := s.restoreProduct(ctx, executor, ref, line.ProductID, int(qty.IntPart()), actor, reason)
		if err != nil {
			return nil, err
		}
		updates = append(updates, update)
	}

	reqs, err := s.expander.Expand(ctx, executor, merged)
	if err != nil {
		return nil, err
	}
	ingredients, err := s.lockIngredients(ctx, executor, reqs)
	if err != nil {
		return nil, err
	}
	for _, req := range reqs {
		if _, tracked := ingredients[req.IngredientID]; !tracked {
			continue
		}
		qty := decimal.Min(req.Quantity, balance.ingredients[req.IngredientID])
		if !qty.IsPositive() {
			continue
		}
		update, err := s.restoreIngredient(ctx, executor, ref, req.IngredientID, qty, actor, reason)
		if err != nil {
			return nil, err
		}
		updates = append(updates, update)
	}
	return updates, nil
}

// RestoreOrder reverses whatever the order's ledger still holds: SALE
// quantities less any RETURN rows already written.
func (s *inventoryService) RestoreOrder(ctx context.Context, executor repositories.SQLExecutor, ref OrderRef, actor models.Actor, reason string) ([]models.StockUpdate, error) {
	balance, err := s.ledgerBalance(ctx, executor, ref.ID)
	if err != nil {
		return nil, err
	}
	if len(balance.productOrder) == 0 && len(balance.ingredientOrder) == 0 {
		return nil, nil
	}

	ingredientReqs := make([]models.IngredientRequirement, 0, len(balance.ingredientOrder))
	for _, id := range balance.ingredientOrder {
		ingredientReqs = append(ingredientReqs, models.IngredientRequirement{IngredientID: id})
	}
	// Lock in the same order as Deduct.
	if _, err := s.deps.Stock.LockProductStocks(ctx, executor, balance.productOrder); err != nil {
		return nil, translateRepoError(err, "stock", 0)
	}
	if _, err := s.lockIngredients(ctx, executor, ingredientReqs); err != nil {
		return nil, err
	}

	updates := make([]models.StockUpdate, 0, len(balance.productOrder)+len(balance.ingredientOrder))
	for _, id := range balance.productOrder {
		qty := balance.products[id]
		if !qty.IsPositive() {
			continue
		}
		update, err := s.restoreProduct(ctx, executor, ref, id, int(qty.IntPart()), actor, reason)
		if err != nil {
			return nil, err
		}
		updates = append(updates, update)
	}
	for _, id := range balance.ingredientOrder {
		qty := balance.ingredients[id]
		if !qty.IsPositive() {
			continue
		}
		update, err := s.restoreIngredient(ctx, executor, ref, id, qty, actor, reason)
		if err != nil {
			return nil, err
		}
		updates = append(updates, update)
	}
	return updates, nil
}

// orderBalance is the stock an order still holds per target.
type orderBalance struct {
	products        map[int64]decimal.Decimal
	ingredients     map[int64]decimal.Decimal
	productOrder    []int64
	ingredientOrder []int64
}

func (s *inventoryService) ledgerBalance(ctx context.Context, executor repositories.SQLExecutor, orderID int64) (*orderBalance, error) {
	rows, err := s.deps.Stock.GetTransactionsByOrderID(ctx, executor, orderID, models.StockTransactionSale, models.StockTransactionReturn)
	if err != nil {
		return nil, translateRepoError(err, "stock transaction", orderID)
	}
	return balanceOf(rows), nil
}

// balanceOf nets SALE rows against RETURN rows. Targets appear in the order
// of their SALE rows; a RETURN with no matching SALE is ignored.
func balanceOf(rows []models.StockTransaction) *orderBalance {
	b := &orderBalance{products: map[int64]decimal.Decimal{}, ingredients: map[int64]decimal.Decimal{}}
	for _, row := range rows {
		if row.Type != models.StockTransactionSale {
			continue
		}
		switch {
		case row.ProductID != nil:
			if _, ok := b.products[*row.ProductID]; !ok {
				b.productOrder = append(b.productOrder, *row.ProductID)
			}
			b.products[*row.ProductID] = b.products[*row.ProductID].Add(row.Quantity)
		case row.IngredientID != nil:
			if _, ok := b.ingredients[*row.IngredientID]; !ok {
				b.ingredientOrder = append(b.ingredientOrder, *row.IngredientID)
			}
			b.ingredients[*row.IngredientID] = b.ingredients[*row.IngredientID].Add(row.Quantity)
		}
	}
	for _, row := range rows {
		if row.Type != models.StockTransactionReturn {
			continue
		}
		switch {
		case row.ProductID != nil:
			if sold, ok := b.products[*row.ProductID]; ok {
				b.products[*row.ProductID] = sold.Sub(row.Quantity)
			}
		case row.IngredientID != nil:
			if sold, ok := b.ingredients[*row.IngredientID]; ok {
				b.ingredients[*row.IngredientID] = sold.Sub(row.Quantity)
			}
		}
	}
	return b
}

func (s *inventoryService) restoreProduct(ctx context.Context, executor repositories.SQLExecutor, ref OrderRef, productID int64, qty int, actor models.Actor, reason string) (models.StockUpdate, error) {
	after, err := s.deps.Stock.IncrementProductStock(ctx, executor, productID, qty)
	if err != nil {
		return models.StockUpdate{}, translateRepoError(err, "stock", productID)
	}
	orderID := ref.ID
	if _, err := s.deps.Stock.CreateTransaction(ctx, executor, &models.StockTransaction{
		ProductID: &productID,
		OrderID:   &orderID,
		Type:      models.StockTransactionReturn,
		Quantity:  decimal.NewFromInt(int64(qty)),
		Reason:    reason,
		CreatedBy: actor.UserID,
	}); err != nil {
		return models.StockUpdate{}, translateRepoError(err, "stock transaction", ref.ID)
	}
	return models.StockUpdate{
		Target:      models.StockTargetProduct,
		ID:          productID,
		OldQuantity: decimal.NewFromInt(int64(after.Quantity - qty)),
		NewQuantity: decimal.NewFromInt(int64(after.Quantity)),
		MinStock:    decimal.NewFromInt(int64(after.MinStock)),
	}, nil
}

func (s *inventoryService) restoreIngredient(ctx context.Context, executor repositories.SQLExecutor, ref OrderRef, ingredientID int64, qty decimal.Decimal, actor models.Actor, reason string) (models.StockUpdate, error) {
	after, err := s.deps.Stock.IncrementIngredientStock(ctx, executor, ingredientID, qty)
	if err != nil {
		return models.StockUpdate{}, translateRepoError(err, "ingredient stock", ingredientID)
	}
	orderID := ref.ID
	if _, err := s.deps.Stock.CreateTransaction(ctx, executor, &models.StockTransaction{
		IngredientID: &ingredientID,
		OrderID:      &orderID,
		Type:         models.StockTransactionReturn,
		Quantity:     qty,
		Reason:       reason,
		CreatedBy:    actor.UserID,
	}); err != nil {
		return models.StockUpdate{}, translateRepoError(err, "stock transaction", ref.ID)
	}
	return models.StockUpdate{
		Target:      models.StockTargetIngredient,
		ID:          ingredientID,
		OldQuantity: after.Quantity.Sub(qty),
		NewQuantity: after.Quantity,
		MinStock:    after.MinStock,
	}, nil
}

func (s *inventoryService) HasDeducted(ctx context.Context, executor repositories.SQLExecutor, orderID int64) (bool, error) {
	sales, err := s.deps.Stock.GetTransactionsByOrderID(ctx, executor, orderID, models.StockTransactionSale)
	if err != nil {
		return false, translateRepoError(err, "stock transaction", orderID)
	}
	return len(sales) > 0, nil
}

// classifyAlert returns the alert type for a quantity at or below its
// minimum, or "" when no alert is due.
func classifyAlert(quantity, minStock decimal.Decimal) models.StockAlertType {
	if quantity.GreaterThan(minStock) {
		return ""
	}
	if quantity.IsZero() {
		return models.StockAlertOutOfStock
	}
	return models.StockAlertLow
}

func (s *inventoryService) ProcessAlerts(ctx context.Context, updates []models.StockUpdate) []models.StockAlert {
	var created []models.StockAlert
	executor := s.deps.Transactor.Executor()
	for _, u := range updates {
		alertType := classifyAlert(u.NewQuantity, u.MinStock)
		if alertType == "" {
			continue
		}
		exists, err := s.deps.Stock.HasUnreadAlert(ctx, executor, u.Target, u.ID, alertType)
		if err != nil {
			utils.LogError(err, "Failed to check stock alerts", map[string]interface{}{"target": string(u.Target), "id": u.ID})
			continue
		}
		if exists {
			continue
		}

		alert := models.StockAlert{
			AlertType: alertType,
			Quantity:  u.NewQuantity,
			MinStock:  u.MinStock,
		}
		id := u.ID
		if u.Target == models.StockTargetIngredient {
			alert.IngredientID = &id
		} else {
			alert.ProductID = &id
		}
		if _, err := s.deps.Stock.CreateAlert(ctx, executor, &alert); err != nil {
			utils.LogError(err, "Failed to create stock alert", map[string]interface{}{"target": string(u.Target), "id": u.ID})
			continue
		}
		utils.LogInfo("Stock alert created", map[string]interface{}{
			"target":     string(u.Target),
			"id":         u.ID,
			"alert_type": string(alertType),
			"quantity":   u.NewQuantity.String(),
		})
		created = append(created, alert)
	}
	return created
}

func (s *inventoryService) GetUnreadAlerts(ctx context.Context) ([]models.StockAlert, error) {
	alerts, err := s.deps.Stock.GetUnreadAlerts(ctx, s.deps.Transactor.Executor())
	if err != nil {
		return nil, fmt.Errorf("failed to get stock alerts: %w", err)
	}
	return alerts, nil
}

func (s *inventoryService) MarkAlertRead(ctx context.Context, alertID int64) error {
	if err := s.deps.Stock.MarkAlertRead(ctx, s.deps.Transactor.Executor(), alertID); err != nil {
		return translateRepoError(err, "stock alert", alertID)
	}
	return nil
}
