package services

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"cafe_pos_backend/internal/models"
	"cafe_pos_backend/internal/repositories"

	"github.com/shopspring/decimal"
)

// memData is the full state of the in-memory store. It is copied wholesale
// at transaction start and put back when the transaction fails.
type memData struct {
	seq           int64
	orders        map[int64]models.Order
	items         map[int64][]models.OrderItem
	stocks        map[int64]models.Stock
	ingredients   map[int64]models.IngredientStock
	recipes       []models.Recipe
	menu          map[int64]decimal.Decimal
	stockTxns     []models.StockTransaction
	alerts        []models.StockAlert
	customers     map[int64]models.Customer
	loyaltyTxns   []models.LoyaltyTransaction
	cancellations []models.OrderCancellation
	returns       []models.OrderReturn
	splits        []models.OrderSplit
	merges        []models.OrderMerge
}

func (d *memData) clone() *memData {
	c := *d
	c.orders = make(map[int64]models.Order, len(d.orders))
	for k, v := range d.orders {
		c.orders[k] = v
	}
	c.items = make(map[int64][]models.OrderItem, len(d.items))
	for k, v := range d.items {
		c.items[k] = append([]models.OrderItem(nil), v...)
	}
	c.stocks = make(map[int64]models.Stock, len(d.stocks))
	for k, v := range d.stocks {
		c.stocks[k] = v
	}
	c.ingredients = make(map[int64]models.IngredientStock, len(d.ingredients))
	for k, v := range d.ingredients {
		c.ingredients[k] = v
	}
	c.customers = make(map[int64]models.Customer, len(d.customers))
	for k, v := range d.customers {
		c.customers[k] = v
	}
	c.recipes = append([]models.Recipe(nil), d.recipes...)
	c.stockTxns = append([]models.StockTransaction(nil), d.stockTxns...)
	c.alerts = append([]models.StockAlert(nil), d.alerts...)
	c.loyaltyTxns = append([]models.LoyaltyTransaction(nil), d.loyaltyTxns...)
	c.cancellations = append([]models.OrderCancellation(nil), d.cancellations...)
	c.returns = append([]models.OrderReturn(nil), d.returns...)
	c.splits = append([]models.OrderSplit(nil), d.splits...)
	c.merges = append([]models.OrderMerge(nil), d.merges...)
	return &c
}

// memStore implements every repository the services use plus the Transactor.
// Transactions are serialized, which stands in for the row locks taken by
// the SQL repositories.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex
	data *memData
}

func newMemStore() *memStore {
	return &memStore{data: &memData{
		orders:      map[int64]models.Order{},
		items:       map[int64][]models.OrderItem{},
		stocks:      map[int64]models.Stock{},
		ingredients: map[int64]models.IngredientStock{},
		customers:   map[int64]models.Customer{},
		menu:        map[int64]decimal.Decimal{},
	}}
}

var (
	_ repositories.Transactor            = (*memStore)(nil)
	_ repositories.OrderRepository       = (*memStore)(nil)
	_ repositories.OrderRecordRepository = (*memStore)(nil)
	_ repositories.StockRepository       = (*memStore)(nil)
	_ repositories.RecipeRepository      = (*memStore)(nil)
	_ repositories.CustomerRepository    = (*memStore)(nil)
	_ repositories.ProductRepository     = (*memStore)(nil)
)

func (m *memStore) nextID() int64 {
	m.data.seq++
	return m.data.seq
}

func (m *memStore) WithinTx(ctx context.Context, fn func(tx repositories.SQLExecutor) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.data.clone()
	m.mu.Unlock()

	if err := fn(nil); err != nil {
		m.mu.Lock()
		m.data = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) Executor() repositories.SQLExecutor { return nil }

// --- seeding and inspection helpers ---

func (m *memStore) seedStock(productID int64, quantity, minStock int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.stocks[productID] = models.Stock{ID: m.nextID(), ProductID: productID, Quantity: quantity, MinStock: minStock, Unit: "pcs", IsActive: true}
}

func (m *memStore) seedIngredient(ingredientID int64, quantity, minStock string, unit string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.ingredients[ingredientID] = models.IngredientStock{
		ID:           m.nextID(),
		IngredientID: ingredientID,
		Quantity:     decimal.RequireFromString(quantity),
		MinStock:     decimal.RequireFromString(minStock),
		Unit:         unit,
		IsActive:     true,
	}
}

func (m *memStore) seedRecipe(productID, ingredientID int64, perUnit, unit string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.recipes = append(m.data.recipes, models.Recipe{
		ProductID:       productID,
		IngredientID:    ingredientID,
		QuantityPerUnit: decimal.RequireFromString(perUnit),
		Unit:            unit,
	})
}

func (m *memStore) seedMenuPrice(productID int64, price int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data.menu[productID] = decimal.NewFromInt(price)
}

func (m *memStore) seedCustomer(phone string, points int) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID()
	m.data.customers[id] = models.Customer{ID: id, Phone: phone, LoyaltyPoints: points, MembershipLevel: MembershipLevelFor(points)}
	return id
}

func (m *memStore) seedOrder(order models.Order, items ...models.OrderItem) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	order.ID = m.nextID()
	if order.OrderNumber == "" {
		order.OrderNumber = fmt.Sprintf("SEED-%d", order.ID)
	}
	if order.PaymentStatus == "" {
		order.PaymentStatus = models.PaymentStatusPending
	}
	for _, item := range items {
		item.ID = m.nextID()
		item.OrderID = order.ID
		item.Subtotal = item.CalculateSubtotal()
		order.TotalAmount = order.TotalAmount.Add(item.Subtotal)
		m.data.items[order.ID] = append(m.data.items[order.ID], item)
	}
	m.data.orders[order.ID] = order
	return order.ID
}

func (m *memStore) productQty(productID int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.stocks[productID].Quantity
}

func (m *memStore) ingredientQty(ingredientID int64) decimal.Decimal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.ingredients[ingredientID].Quantity
}

func (m *memStore) order(id int64) models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	o := m.data.orders[id]
	o.Items = append([]models.OrderItem(nil), m.data.items[id]...)
	return o
}

func (m *memStore) ordersWithStatus(status models.OrderStatus) []models.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Order
	for _, o := range m.data.orders {
		if o.Status == status {
			o.Items = append([]models.OrderItem(nil), m.data.items[o.ID]...)
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (m *memStore) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.data.orders)
}

func (m *memStore) ledger(orderID int64, kind models.StockTransactionType) []models.StockTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.StockTransaction
	for _, t := range m.data.stockTxns {
		if t.OrderID != nil && *t.OrderID == orderID && t.Type == kind {
			out = append(out, t)
		}
	}
	return out
}

func (m *memStore) loyaltyRows(customerID int64) []models.LoyaltyTransaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.LoyaltyTransaction
	for _, t := range m.data.loyaltyTxns {
		if t.CustomerID == customerID {
			out = append(out, t)
		}
	}
	return out
}

func (m *memStore) customer(id int64) models.Customer {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data.customers[id]
}

// --- OrderRepository ---

func (m *memStore) CreateOrder(ctx context.Context, _ repositories.SQLExecutor, order *models.Order) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.data.orders {
		if o.OrderNumber == order.OrderNumber {
			return 0, fmt.Errorf("%w: orders_order_number_key", repositories.ErrDuplicateKey)
		}
		if order.Status == models.OrderStatusCreating && o.Status == models.OrderStatusCreating &&
			o.OrderCreator == order.OrderCreator && o.CreatorName == order.CreatorName {
			return 0, fmt.Errorf("%w: idx_orders_single_draft", repositories.ErrDuplicateKey)
		}
	}
	order.ID = m.nextID()
	if order.PaymentStatus == "" {
		order.PaymentStatus = models.PaymentStatusPending
	}
	stored := *order
	stored.Items = nil
	m.data.orders[order.ID] = stored
	return order.ID, nil
}

func (m *memStore) GetOrderByID(ctx context.Context, _ repositories.SQLExecutor, orderID int64) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.data.orders[orderID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &o, nil
}

func (m *memStore) GetOrderForUpdate(ctx context.Context, executor repositories.SQLExecutor, orderID int64) (*models.Order, error) {
	return m.GetOrderByID(ctx, executor, orderID)
}

func (m *memStore) GetOrders(ctx context.Context, _ repositories.SQLExecutor, filters models.OrderFilters) ([]models.Order, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	statuses := map[models.OrderStatus]bool{}
	for _, s := range filters.Statuses {
		statuses[s] = true
	}
	var out []models.Order
	for _, o := range m.data.orders {
		if len(statuses) > 0 && !statuses[o.Status] {
			continue
		}
		if filters.CreatorName != nil && o.CreatorName != *filters.CreatorName {
			continue
		}
		if filters.ActiveOnly && (o.Status.IsTerminal() || len(m.data.items[o.ID]) == 0) {
			continue
		}
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, len(out), nil
}

func (m *memStore) OrderNumberExists(ctx context.Context, _ repositories.SQLExecutor, orderNumber string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.data.orders {
		if o.OrderNumber == orderNumber {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) UpdateOrder(ctx context.Context, _ repositories.SQLExecutor, order *models.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data.orders[order.ID]; !ok {
		return repositories.ErrNotFound
	}
	stored := *order
	stored.Items = nil
	m.data.orders[order.ID] = stored
	return nil
}

func (m *memStore) DeleteOrder(ctx context.Context, _ repositories.SQLExecutor, orderID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data.orders[orderID]; !ok {
		return repositories.ErrNotFound
	}
	delete(m.data.orders, orderID)
	delete(m.data.items, orderID)
	return nil
}

func (m *memStore) FindDraftForUpdate(ctx context.Context, _ repositories.SQLExecutor, kind models.CreatorKind, creatorName string) (*models.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.data.orders {
		if o.Status == models.OrderStatusCreating && o.OrderCreator == kind && o.CreatorName == creatorName {
			return &o, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memStore) DeleteDrafts(ctx context.Context, _ repositories.SQLExecutor, kind models.CreatorKind, creatorName string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for id, o := range m.data.orders {
		if o.Status == models.OrderStatusCreating && o.OrderCreator == kind && o.CreatorName == creatorName {
			delete(m.data.orders, id)
			delete(m.data.items, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *memStore) CreateOrderItem(ctx context.Context, _ repositories.SQLExecutor, item *models.OrderItem) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data.orders[item.OrderID]; !ok {
		return 0, fmt.Errorf("%w: order_items_order_id_fkey", repositories.ErrDatabaseError)
	}
	item.ID = m.nextID()
	m.data.items[item.OrderID] = append(m.data.items[item.OrderID], *item)
	return item.ID, nil
}

func (m *memStore) GetOrderItemsByOrderID(ctx context.Context, _ repositories.SQLExecutor, orderID int64) ([]models.OrderItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.OrderItem{}, m.data.items[orderID]...), nil
}

func (m *memStore) DeleteOrderItemsByOrderID(ctx context.Context, _ repositories.SQLExecutor, orderID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := int64(len(m.data.items[orderID]))
	delete(m.data.items, orderID)
	return n, nil
}

// --- StockRepository ---

func (m *memStore) LockProductStocks(ctx context.Context, _ repositories.SQLExecutor, productIDs []int64) ([]models.Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Stock
	for _, id := range productIDs {
		if st, ok := m.data.stocks[id]; ok && st.IsActive {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProductID < out[j].ProductID })
	return out, nil
}

func (m *memStore) DecrementProductStock(ctx context.Context, _ repositories.SQLExecutor, productID int64, quantity int) (*models.Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.data.stocks[productID]
	if !ok || !st.IsActive || st.Quantity < quantity {
		return nil, repositories.ErrStockGuard
	}
	st.Quantity -= quantity
	m.data.stocks[productID] = st
	return &st, nil
}

func (m *memStore) IncrementProductStock(ctx context.Context, _ repositories.SQLExecutor, productID int64, quantity int) (*models.Stock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.data.stocks[productID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	st.Quantity += quantity
	m.data.stocks[productID] = st
	return &st, nil
}

func (m *memStore) LockIngredientStocks(ctx context.Context, _ repositories.SQLExecutor, ingredientIDs []int64) ([]models.IngredientStock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.IngredientStock
	for _, id := range ingredientIDs {
		if st, ok := m.data.ingredients[id]; ok && st.IsActive {
			out = append(out, st)
		}
	}
	return out, nil
}

func (m *memStore) DecrementIngredientStock(ctx context.Context, _ repositories.SQLExecutor, ingredientID int64, quantity decimal.Decimal) (*models.IngredientStock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.data.ingredients[ingredientID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	st.Quantity = decimal.Max(st.Quantity.Sub(quantity), decimal.Zero)
	m.data.ingredients[ingredientID] = st
	return &st, nil
}

func (m *memStore) IncrementIngredientStock(ctx context.Context, _ repositories.SQLExecutor, ingredientID int64, quantity decimal.Decimal) (*models.IngredientStock, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st, ok := m.data.ingredients[ingredientID]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	st.Quantity = st.Quantity.Add(quantity)
	m.data.ingredients[ingredientID] = st
	return &st, nil
}

func matchesTarget(t models.StockTransaction, target models.StockTargetKind, targetID int64) bool {
	if target == models.StockTargetIngredient {
		return t.IngredientID != nil && *t.IngredientID == targetID
	}
	return t.ProductID != nil && *t.ProductID == targetID
}

func (m *memStore) HasSaleTransaction(ctx context.Context, _ repositories.SQLExecutor, orderID int64, target models.StockTargetKind, targetID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.data.stockTxns {
		if t.Type == models.StockTransactionSale && t.OrderID != nil && *t.OrderID == orderID && matchesTarget(t, target, targetID) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CreateTransaction(ctx context.Context, _ repositories.SQLExecutor, txn *models.StockTransaction) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if (txn.ProductID == nil) == (txn.IngredientID == nil) {
		return 0, fmt.Errorf("%w: stock_transactions_target_check", repositories.ErrDatabaseError)
	}
	if txn.Type == models.StockTransactionSale && txn.OrderID != nil {
		target, id := models.StockTargetProduct, int64(0)
		if txn.ProductID != nil {
			id = *txn.ProductID
		} else {
			target, id = models.StockTargetIngredient, *txn.IngredientID
		}
		for _, t := range m.data.stockTxns {
			if t.Type == models.StockTransactionSale && t.OrderID != nil && *t.OrderID == *txn.OrderID && matchesTarget(t, target, id) {
				return 0, fmt.Errorf("%w: idx_stock_transactions_sale", repositories.ErrDuplicateKey)
			}
		}
	}
	txn.ID = m.nextID()
	m.data.stockTxns = append(m.data.stockTxns, *txn)
	return txn.ID, nil
}

func (m *memStore) GetTransactionsByOrderID(ctx context.Context, _ repositories.SQLExecutor, orderID int64, types ...models.StockTransactionType) ([]models.StockTransaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.StockTransaction
	for _, t := range m.data.stockTxns {
		if t.OrderID == nil || *t.OrderID != orderID {
			continue
		}
		if len(types) > 0 && !slices.Contains(types, t.Type) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func (m *memStore) HasUnreadAlert(ctx context.Context, _ repositories.SQLExecutor, target models.StockTargetKind, targetID int64, alertType models.StockAlertType) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.data.alerts {
		if a.IsRead || a.AlertType != alertType {
			continue
		}
		if target == models.StockTargetIngredient && a.IngredientID != nil && *a.IngredientID == targetID {
			return true, nil
		}
		if target == models.StockTargetProduct && a.ProductID != nil && *a.ProductID == targetID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CreateAlert(ctx context.Context, _ repositories.SQLExecutor, alert *models.StockAlert) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	alert.ID = m.nextID()
	m.data.alerts = append(m.data.alerts, *alert)
	return alert.ID, nil
}

func (m *memStore) GetUnreadAlerts(ctx context.Context, _ repositories.SQLExecutor) ([]models.StockAlert, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.StockAlert{}
	for _, a := range m.data.alerts {
		if !a.IsRead {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *memStore) MarkAlertRead(ctx context.Context, _ repositories.SQLExecutor, alertID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.data.alerts {
		if m.data.alerts[i].ID == alertID {
			m.data.alerts[i].IsRead = true
			return nil
		}
	}
	return repositories.ErrNotFound
}

// --- RecipeRepository ---

func (m *memStore) GetRecipesForProducts(ctx context.Context, _ repositories.SQLExecutor, productIDs []int64) ([]models.Recipe, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wanted := make(map[int64]bool, len(productIDs))
	for _, id := range productIDs {
		wanted[id] = true
	}
	var out []models.Recipe
	for _, r := range m.data.recipes {
		if wanted[r.ProductID] {
			out = append(out, r)
		}
	}
	return out, nil
}

// --- ProductRepository ---

func (m *memStore) GetMenuPrices(ctx context.Context, _ repositories.SQLExecutor, productIDs []int64) (map[int64]decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int64]decimal.Decimal, len(productIDs))
	for _, id := range productIDs {
		if price, ok := m.data.menu[id]; ok {
			out[id] = price
		}
	}
	return out, nil
}

// --- CustomerRepository ---

func (m *memStore) EnsureCustomerByPhone(ctx context.Context, _ repositories.SQLExecutor, phone string, name *string) (*models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.data.customers {
		if c.Phone == phone {
			return &c, nil
		}
	}
	c := models.Customer{ID: m.nextID(), Phone: phone, Name: name, MembershipLevel: models.MembershipBronze}
	m.data.customers[c.ID] = c
	return &c, nil
}

func (m *memStore) GetCustomerByID(ctx context.Context, _ repositories.SQLExecutor, id int64) (*models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.data.customers[id]
	if !ok {
		return nil, repositories.ErrNotFound
	}
	return &c, nil
}

func (m *memStore) GetCustomerByIDForUpdate(ctx context.Context, executor repositories.SQLExecutor, id int64) (*models.Customer, error) {
	return m.GetCustomerByID(ctx, executor, id)
}

func (m *memStore) GetCustomerByPhone(ctx context.Context, _ repositories.SQLExecutor, phone string) (*models.Customer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.data.customers {
		if c.Phone == phone {
			return &c, nil
		}
	}
	return nil, repositories.ErrNotFound
}

func (m *memStore) UpdateLoyalty(ctx context.Context, _ repositories.SQLExecutor, customer *models.Customer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data.customers[customer.ID]; !ok {
		return repositories.ErrNotFound
	}
	m.data.customers[customer.ID] = *customer
	return nil
}

func (m *memStore) HasEarnTransaction(ctx context.Context, _ repositories.SQLExecutor, orderID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.data.loyaltyTxns {
		if t.Type == models.LoyaltyEarn && t.OrderID != nil && *t.OrderID == orderID {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CreateLoyaltyTransaction(ctx context.Context, _ repositories.SQLExecutor, txn *models.LoyaltyTransaction) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if txn.Type == models.LoyaltyEarn && txn.OrderID != nil {
		for _, t := range m.data.loyaltyTxns {
			if t.Type == models.LoyaltyEarn && t.OrderID != nil && *t.OrderID == *txn.OrderID {
				return 0, fmt.Errorf("%w: idx_loyalty_transactions_earn", repositories.ErrDuplicateKey)
			}
		}
	}
	txn.ID = m.nextID()
	m.data.loyaltyTxns = append(m.data.loyaltyTxns, *txn)
	return txn.ID, nil
}

// --- OrderRecordRepository ---

func (m *memStore) CreateCancellation(ctx context.Context, _ repositories.SQLExecutor, cancellation *models.OrderCancellation) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.data.cancellations {
		if c.OrderID == cancellation.OrderID {
			return 0, fmt.Errorf("%w: order_cancellations_order_id_key", repositories.ErrDuplicateKey)
		}
	}
	cancellation.ID = m.nextID()
	m.data.cancellations = append(m.data.cancellations, *cancellation)
	return cancellation.ID, nil
}

func (m *memStore) CreateReturn(ctx context.Context, _ repositories.SQLExecutor, ret *models.OrderReturn) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ret.ID = m.nextID()
	for i := range ret.Items {
		ret.Items[i].ID = m.nextID()
		ret.Items[i].ReturnID = ret.ID
	}
	stored := *ret
	stored.Items = append([]models.OrderReturnItem(nil), ret.Items...)
	m.data.returns = append(m.data.returns, stored)
	return ret.ID, nil
}

func (m *memStore) GetReturnedQuantities(ctx context.Context, _ repositories.SQLExecutor, orderID int64) (map[int64]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := map[int64]int{}
	for _, r := range m.data.returns {
		if r.OrderID != orderID {
			continue
		}
		for _, item := range r.Items {
			out[item.OrderItemID] += item.Quantity
		}
	}
	return out, nil
}

func (m *memStore) CreateSplit(ctx context.Context, _ repositories.SQLExecutor, split *models.OrderSplit) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	split.ID = m.nextID()
	m.data.splits = append(m.data.splits, *split)
	return split.ID, nil
}

func (m *memStore) CreateMerge(ctx context.Context, _ repositories.SQLExecutor, merge *models.OrderMerge) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	merge.ID = m.nextID()
	m.data.merges = append(m.data.merges, *merge)
	return merge.ID, nil
}

// --- notifier and clock ---

type captureNotifier struct {
	mu     sync.Mutex
	events []models.Event
}

func (n *captureNotifier) Notify(ctx context.Context, event models.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
	return nil
}

func (n *captureNotifier) kinds() []models.EventKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]models.EventKind, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Kind())
	}
	return out
}

// tickingClock advances one millisecond per call so consecutive order numbers differ.
func tickingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	now := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		now = now.Add(time.Millisecond)
		return now
	}
}

type testEnv struct {
	store    *memStore
	notifier *captureNotifier
	deps     Deps
	orders   OrderService
	drafts   DraftService
	loyalty  LoyaltyService
	stock    InventoryService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	store := newMemStore()
	notifier := &captureNotifier{}
	deps := Deps{
		Transactor:   store,
		Orders:       store,
		OrderRecords: store,
		Stock:        store,
		Recipes:      store,
		Customers:    store,
		Products:     store,
		Dispatcher:   NewDispatcher(notifier, time.Second),
		Clock:        tickingClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)),
		Sleep:        func(time.Duration) {},
	}
	return &testEnv{
		store:    store,
		notifier: notifier,
		deps:     deps,
		orders:   NewOrderService(deps),
		drafts:   NewDraftService(deps),
		loyalty:  NewLoyaltyService(deps),
		stock:    NewInventoryService(deps),
	}
}

// events waits for the dispatcher and returns the delivered event kinds.
func (e *testEnv) events() []models.EventKind {
	e.deps.Dispatcher.Wait()
	return e.notifier.kinds()
}

var (
	staffActorID = int64(7)
	staffActor   = models.Actor{UserID: &staffActorID, Username: "alice"}
)

func itemInput(productID int64, qty int, price int64) OrderItemInput {
	return OrderItemInput{ProductID: productID, Quantity: qty, UnitPrice: decimal.NewFromInt(price)}
}

func strPtr(s string) *string { return &s }

func int64Ptr(v int64) *int64 { return &v }
