package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/telehostca/chatbot-backend/internal/models"
	"github.com/telehostca/chatbot-backend/internal/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// DatabaseStore implements Store on top of the legacy PostgreSQL database
type DatabaseStore struct {
	db          *gorm.DB
	minStock    float64
	defaultRate float64
}

// NewDatabaseStore wraps an open gorm connection
func NewDatabaseStore(db *gorm.DB, minStock, defaultRate float64) *DatabaseStore {
	return &DatabaseStore{db: db, minStock: minStock, defaultRate: defaultRate}
}

// AutoMigrate creates the tables owned by the conversation engine
func (d *DatabaseStore) AutoMigrate() error {
	return d.db.AutoMigrate(
		&models.WhatsAppSession{},
		&models.Customer{},
		&models.Product{},
		&models.ExchangeRate{},
		&models.SearchLog{},
		&models.CartLine{},
		&models.Bank{},
		&models.Order{},
		&models.OrderItem{},
		&models.PaymentProof{},
	)
}

// Ping checks the underlying connection
func (d *DatabaseStore) Ping(ctx context.Context) error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%v: %w", err, ErrDuplicate)
	}
	return err
}

// Session operations

func (d *DatabaseStore) FindSession(ctx context.Context, phone string) (*models.WhatsAppSession, error) {
	var session models.WhatsAppSession
	err := d.db.WithContext(ctx).Where("phone_number = ?", phone).First(&session).Error
	if err != nil {
		return nil, translate(err)
	}
	return &session, nil
}

func (d *DatabaseStore) CreateSession(ctx context.Context, phone string) (*models.WhatsAppSession, error) {
	session := &models.WhatsAppSession{
		PhoneNumber:    phone,
		Context:        models.ContextNewClient,
		LastActivityAt: time.Now(),
		IsActive:       true,
	}
	if err := d.db.WithContext(ctx).Create(session).Error; err != nil {
		return nil, translate(err)
	}
	return session, nil
}

func (d *DatabaseStore) SaveSession(ctx context.Context, session *models.WhatsAppSession) (*models.WhatsAppSession, error) {
	// Select("*") so false booleans and nil flow states are written too
	if err := d.db.WithContext(ctx).Select("*").Save(session).Error; err != nil {
		return nil, translate(err)
	}
	return session, nil
}

func (d *DatabaseStore) SweepInactive(ctx context.Context, cutoff time.Time) (int64, error) {
	res := d.db.WithContext(ctx).Model(&models.WhatsAppSession{}).
		Where("is_active = ? AND last_activity_at < ?", true, cutoff).
		Update("is_active", false)
	return res.RowsAffected, res.Error
}

// Customer operations

func (d *DatabaseStore) FindByPhoneCandidates(ctx context.Context, candidates []string) (*models.Customer, error) {
	if len(candidates) == 0 {
		return nil, ErrNotFound
	}
	var customer models.Customer
	err := d.db.WithContext(ctx).
		Where("is_active = ? AND is_disabled = ?", true, false).
		Where("phone1 IN ? OR phone2 IN ?", candidates, candidates).
		Clauses(clause.OrderBy{Expression: clause.Expr{
			SQL:  "CASE WHEN phone1 IN ? THEN 0 ELSE 1 END, last_activity_at DESC NULLS LAST",
			Vars: []interface{}{candidates},
		}}).
		First(&customer).Error
	if err != nil {
		return nil, translate(err)
	}
	return &customer, nil
}

func (d *DatabaseStore) FindByID(ctx context.Context, idNumbers []string) (*models.Customer, error) {
	if len(idNumbers) == 0 {
		return nil, ErrNotFound
	}
	upper := make([]string, len(idNumbers))
	for i, id := range idNumbers {
		upper[i] = strings.ToUpper(id)
	}
	var customer models.Customer
	err := d.db.WithContext(ctx).
		Where("is_active = ? AND is_disabled = ?", true, false).
		Where("UPPER(id_number) IN ?", upper).
		Order("last_activity_at DESC NULLS LAST").
		First(&customer).Error
	if err != nil {
		return nil, translate(err)
	}
	return &customer, nil
}

func (d *DatabaseStore) CreateCustomer(ctx context.Context, customer *models.Customer) (*models.Customer, error) {
	customer.IsActive = true
	if err := d.db.WithContext(ctx).Create(customer).Error; err != nil {
		return nil, translate(err)
	}
	return customer, nil
}

// Catalog operations

func (d *DatabaseStore) SearchExact(ctx context.Context, term string) ([]models.Product, error) {
	term = utils.FoldText(strings.TrimSpace(term))
	if term == "" {
		return nil, nil
	}
	var rows []models.Product
	err := d.db.WithContext(ctx).
		Where("stock > ?", d.minStock).
		Where(foldedName+" LIKE ?", "%"+escapeLike(term)+"%").
		Clauses(clause.OrderBy{Expression: clause.Expr{
			SQL:  "CASE WHEN " + foldedName + " LIKE ? THEN 0 ELSE 1 END, stock DESC, LENGTH(name) ASC",
			Vars: []interface{}{escapeLike(term) + "%"},
		}}).
		Limit(ExactSearchLimit).
		Find(&rows).Error
	return rows, err
}

func (d *DatabaseStore) SearchByWords(ctx context.Context, words []string) ([]models.Product, error) {
	words = SignificantWords(words)
	if len(words) == 0 {
		return nil, nil
	}
	q := d.db.WithContext(ctx).Where("stock > ?", d.minStock)
	for _, w := range words {
		q = q.Where(foldedName+" LIKE ?", "%"+escapeLike(w)+"%")
	}
	var rows []models.Product
	err := q.Order("stock DESC").Order("name ASC").Limit(WordSearchLimit).Find(&rows).Error
	return rows, err
}

func (d *DatabaseStore) FindProduct(ctx context.Context, code string) (*models.Product, error) {
	var product models.Product
	if err := d.db.WithContext(ctx).Where("code = ?", code).First(&product).Error; err != nil {
		return nil, translate(err)
	}
	return &product, nil
}

// foldedName lower-cases the product name and strips the accents used in Spanish,
// so it compares against utils.FoldText output without the unaccent extension
const foldedName = "translate(lower(name), 'áéíóúüñàèìòùâêîôû', 'aeiouunaeiouaeiou')"

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// Order operations

func orderItemFrom(orderID uint, l models.CartLine) models.OrderItem {
	return models.OrderItem{
		OrderID:      orderID,
		ProductCode:  l.ProductCode,
		ProductName:  l.ProductName,
		PriceUSD:     l.PriceUSD,
		TaxRate:      l.TaxRate,
		Quantity:     l.Quantity,
		ExchangeRate: l.ExchangeRate,
	}
}

func orderResult(o *models.Order) *models.OrderResult {
	return &models.OrderResult{
		OrderID:     o.ID,
		OrderNumber: o.OrderNumber,
		TotalUSD:    o.TotalUSD,
		TotalBs:     o.TotalBs,
	}
}

// CreateOrderFromCart is idempotent per set of cart lines: a retry returns the order already created
func (d *DatabaseStore) CreateOrderFromCart(ctx context.Context, customer *models.Customer, lines []models.CartLine, method string) (*models.OrderResult, error) {
	if len(lines) == 0 {
		return nil, fmt.Errorf("order without lines")
	}
	key := utils.OrderKey(lines[0].PhoneNumber, models.LineIDs(lines))
	if existing, err := d.findOrderByKey(ctx, key); err == nil {
		return orderResult(existing), nil
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	totals := models.ComputeTotals(lines)
	order := &models.Order{
		OrderNumber:   utils.GenerateOrderNumber(),
		CartKey:       key,
		CustomerCode:  customer.Code,
		PhoneNumber:   lines[0].PhoneNumber,
		PaymentMethod: method,
		TotalUSD:      totals.TotalUSD,
		TotalBs:       totals.TotalBs,
		Status:        models.OrderStatusPending,
	}
	for _, l := range lines {
		order.Items = append(order.Items, orderItemFrom(0, l))
	}
	if err := d.db.WithContext(ctx).Create(order).Error; err != nil {
		err = translate(err)
		if !errors.Is(err, ErrDuplicate) {
			return nil, err
		}
		// lost a race with a concurrent retry
		existing, findErr := d.findOrderByKey(ctx, key)
		if findErr != nil {
			return nil, err
		}
		return orderResult(existing), nil
	}
	return orderResult(order), nil
}

func (d *DatabaseStore) findOrderByKey(ctx context.Context, key string) (*models.Order, error) {
	var order models.Order
	if err := d.db.WithContext(ctx).Where("cart_key = ?", key).First(&order).Error; err != nil {
		return nil, translate(err)
	}
	return &order, nil
}

func (d *DatabaseStore) RecordPaymentProof(ctx context.Context, proof *models.PaymentProof) error {
	return translate(d.db.WithContext(ctx).Create(proof).Error)
}

func (d *DatabaseStore) ListBanks(ctx context.Context) ([]models.Bank, error) {
	var banks []models.Bank
	err := d.db.WithContext(ctx).Order("code ASC").Find(&banks).Error
	return banks, err
}

// Cart operations

func (d *DatabaseStore) ActiveLines(ctx context.Context, phone string) ([]models.CartLine, error) {
	var lines []models.CartLine
	err := d.db.WithContext(ctx).
		Where("phone_number = ? AND status = ?", phone, models.CartStatusActive).
		Order("id ASC").
		Find(&lines).Error
	return lines, err
}

func (d *DatabaseStore) FindActiveLine(ctx context.Context, phone, productCode string) (*models.CartLine, error) {
	var line models.CartLine
	err := d.db.WithContext(ctx).
		Where("phone_number = ? AND product_code = ? AND status = ?", phone, productCode, models.CartStatusActive).
		First(&line).Error
	if err != nil {
		return nil, translate(err)
	}
	return &line, nil
}

func (d *DatabaseStore) CreateLine(ctx context.Context, line *models.CartLine) (*models.CartLine, error) {
	line.Status = models.CartStatusActive
	if err := d.db.WithContext(ctx).Create(line).Error; err != nil {
		return nil, translate(err)
	}
	return line, nil
}

func (d *DatabaseStore) UpdateLine(ctx context.Context, line *models.CartLine) error {
	res := d.db.WithContext(ctx).Model(&models.CartLine{}).
		Where("id = ? AND status = ?", line.ID, models.CartStatusActive).
		Update("quantity", line.Quantity)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("cart line %d: %w", line.ID, ErrNotFound)
	}
	return nil
}

func (d *DatabaseStore) SetLineStatus(ctx context.Context, id uint, status string) error {
	if !models.CanTransition(models.CartStatusActive, status) {
		return fmt.Errorf("cart line %d: invalid status %s", id, status)
	}
	res := d.db.WithContext(ctx).Model(&models.CartLine{}).
		Where("id = ? AND status = ?", id, models.CartStatusActive).
		Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("cart line %d: %w", id, ErrNotFound)
	}
	return nil
}

func (d *DatabaseStore) ClearLines(ctx context.Context, phone string) (int64, error) {
	res := d.db.WithContext(ctx).Model(&models.CartLine{}).
		Where("phone_number = ? AND status = ?", phone, models.CartStatusActive).
		Update("status", models.CartStatusCleared)
	return res.RowsAffected, res.Error
}

func (d *DatabaseStore) ExpireLines(ctx context.Context, cutoff time.Time) (int64, error) {
	res := d.db.WithContext(ctx).Model(&models.CartLine{}).
		Where("status = ? AND updated_at < ?", models.CartStatusActive, cutoff).
		Update("status", models.CartStatusExpired)
	return res.RowsAffected, res.Error
}

// Search history operations

func (d *DatabaseStore) RecordSearch(ctx context.Context, phone, term string, resultCount int) error {
	return d.db.WithContext(ctx).Create(&models.SearchLog{
		PhoneNumber: phone,
		Term:        term,
		ResultCount: resultCount,
	}).Error
}

func (d *DatabaseStore) RecentSuccessful(ctx context.Context, phone string, limit int) ([]string, error) {
	var terms []string
	err := d.db.WithContext(ctx).Model(&models.SearchLog{}).
		Select("term").
		Where("phone_number = ? AND result_count > 0", phone).
		Group("term").
		Order("MAX(created_at) DESC").
		Limit(limit).
		Pluck("term", &terms).Error
	return terms, err
}

// Rate operations

func (d *DatabaseStore) CurrentRate(ctx context.Context) (float64, error) {
	var rate models.ExchangeRate
	err := d.db.WithContext(ctx).Order("effective_at DESC").First(&rate).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return d.defaultRate, nil
	}
	if err != nil {
		return 0, err
	}
	return rate.Rate, nil
}
