package storage

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/telehostca/chatbot-backend/internal/models"
	"github.com/telehostca/chatbot-backend/internal/utils"
)

// MemoryStore holds all data in memory for local runs and tests
type MemoryStore struct {
	sessions  map[string]*models.WhatsAppSession
	customers map[string]*models.Customer
	products  map[string]*models.Product
	lines     map[uint]*models.CartLine
	orders    map[uint]*models.Order
	proofs    map[uint]*models.PaymentProof
	banks     []models.Bank
	searches  []models.SearchLog
	rate      float64
	minStock  float64

	// faults maps an operation name to the error it returns
	faults map[string]error

	// Mutexes for thread safety
	sessionMu  sync.RWMutex
	customerMu sync.RWMutex
	catalogMu  sync.RWMutex
	cartMu     sync.RWMutex
	orderMu    sync.RWMutex
	faultMu    sync.RWMutex

	// Counters for ID generation
	sessionCounter  uint
	customerCounter uint
	lineCounter     uint
	orderCounter    uint
	proofCounter    uint
	searchCounter   uint
}

// NewMemoryStore creates a new in-memory storage. Products at or below minStock are not searchable.
func NewMemoryStore(minStock float64) *MemoryStore {
	return &MemoryStore{
		sessions:  make(map[string]*models.WhatsAppSession),
		customers: make(map[string]*models.Customer),
		products:  make(map[string]*models.Product),
		lines:     make(map[uint]*models.CartLine),
		orders:    make(map[uint]*models.Order),
		proofs:    make(map[uint]*models.PaymentProof),
		faults:    make(map[string]error),
		rate:      1,
		minStock:  minStock,
	}
}

// Fail makes the named operation (e.g. "SearchExact") return err. A nil err clears the fault.
func (m *MemoryStore) Fail(op string, err error) {
	m.faultMu.Lock()
	defer m.faultMu.Unlock()
	if err == nil {
		delete(m.faults, op)
		return
	}
	m.faults[op] = err
}

func (m *MemoryStore) fault(op string) error {
	m.faultMu.RLock()
	defer m.faultMu.RUnlock()
	return m.faults[op]
}

// Ping always succeeds
func (m *MemoryStore) Ping(ctx context.Context) error {
	return m.fault("Ping")
}

// Seeding helpers

// AddProduct inserts or replaces a catalog row
func (m *MemoryStore) AddProduct(p models.Product) {
	m.catalogMu.Lock()
	defer m.catalogMu.Unlock()
	m.products[p.Code] = &p
}

// AddBank appends a bank to the bank list
func (m *MemoryStore) AddBank(b models.Bank) {
	m.orderMu.Lock()
	defer m.orderMu.Unlock()
	m.banks = append(m.banks, b)
}

// AddCustomer inserts a customer record as-is
func (m *MemoryStore) AddCustomer(c models.Customer) {
	m.customerMu.Lock()
	defer m.customerMu.Unlock()
	m.customerCounter++
	c.ID = m.customerCounter
	if c.Code == "" {
		c.Code = c.IDNumber
	}
	m.customers[c.Code] = &c
}

// SetRate sets the exchange rate returned by CurrentRate
func (m *MemoryStore) SetRate(rate float64) {
	m.catalogMu.Lock()
	defer m.catalogMu.Unlock()
	m.rate = rate
}

// Orders returns every order created so far
func (m *MemoryStore) Orders() []models.Order {
	m.orderMu.RLock()
	defer m.orderMu.RUnlock()
	out := make([]models.Order, 0, len(m.orders))
	for _, o := range m.orders {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// PaymentProofs returns every recorded proof
func (m *MemoryStore) PaymentProofs() []models.PaymentProof {
	m.orderMu.RLock()
	defer m.orderMu.RUnlock()
	out := make([]models.PaymentProof, 0, len(m.proofs))
	for _, p := range m.proofs {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Session operations

func cloneSession(s *models.WhatsAppSession) *models.WhatsAppSession {
	c := *s
	if s.Search != nil {
		search := *s.Search
		search.Groups = make([]models.SearchGroup, len(s.Search.Groups))
		for i, g := range s.Search.Groups {
			search.Groups[i] = models.SearchGroup{Term: g.Term, Items: append([]models.SearchItem(nil), g.Items...)}
		}
		c.Search = &search
	}
	if s.Payment != nil {
		p := *s.Payment
		c.Payment = &p
	}
	if s.Registration != nil {
		r := *s.Registration
		c.Registration = &r
	}
	return &c
}

func (m *MemoryStore) FindSession(ctx context.Context, phone string) (*models.WhatsAppSession, error) {
	if err := m.fault("FindSession"); err != nil {
		return nil, err
	}
	m.sessionMu.RLock()
	defer m.sessionMu.RUnlock()

	session, exists := m.sessions[phone]
	if !exists {
		return nil, ErrNotFound
	}
	return cloneSession(session), nil
}

func (m *MemoryStore) CreateSession(ctx context.Context, phone string) (*models.WhatsAppSession, error) {
	if err := m.fault("CreateSession"); err != nil {
		return nil, err
	}
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	if _, exists := m.sessions[phone]; exists {
		return nil, fmt.Errorf("session %s: %w", phone, ErrDuplicate)
	}
	m.sessionCounter++
	now := time.Now()
	session := &models.WhatsAppSession{
		PhoneNumber:    phone,
		Context:        models.ContextNewClient,
		LastActivityAt: now,
		IsActive:       true,
	}
	session.ID = m.sessionCounter
	session.CreatedAt = now
	session.UpdatedAt = now
	m.sessions[phone] = session
	return cloneSession(session), nil
}

func (m *MemoryStore) SaveSession(ctx context.Context, session *models.WhatsAppSession) (*models.WhatsAppSession, error) {
	if err := m.fault("SaveSession"); err != nil {
		return nil, err
	}
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	session.UpdatedAt = time.Now()
	m.sessions[session.PhoneNumber] = cloneSession(session)
	return session, nil
}

func (m *MemoryStore) SweepInactive(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := m.fault("SweepInactive"); err != nil {
		return 0, err
	}
	m.sessionMu.Lock()
	defer m.sessionMu.Unlock()

	var count int64
	for _, s := range m.sessions {
		if s.IsActive && s.LastActivityAt.Before(cutoff) {
			s.IsActive = false
			count++
		}
	}
	return count, nil
}

// Customer operations

func (m *MemoryStore) FindByPhoneCandidates(ctx context.Context, candidates []string) (*models.Customer, error) {
	if err := m.fault("FindByPhoneCandidates"); err != nil {
		return nil, err
	}
	m.customerMu.RLock()
	defer m.customerMu.RUnlock()

	wanted := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		wanted[c] = true
	}

	var matches []CustomerMatch
	for _, c := range m.customers {
		if !c.Eligible() {
			continue
		}
		switch {
		case wanted[c.Phone1]:
			matches = append(matches, CustomerMatch{Customer: c, Primary: true})
		case wanted[c.Phone2]:
			matches = append(matches, CustomerMatch{Customer: c})
		}
	}
	best := BestCustomerMatch(matches)
	if best == nil {
		return nil, ErrNotFound
	}
	found := *best
	return &found, nil
}

func (m *MemoryStore) FindByID(ctx context.Context, idNumbers []string) (*models.Customer, error) {
	if err := m.fault("FindByID"); err != nil {
		return nil, err
	}
	m.customerMu.RLock()
	defer m.customerMu.RUnlock()

	var matches []CustomerMatch
	for _, id := range idNumbers {
		for _, c := range m.customers {
			if c.Eligible() && strings.EqualFold(c.IDNumber, id) {
				matches = append(matches, CustomerMatch{Customer: c, Primary: true})
			}
		}
	}
	best := BestCustomerMatch(matches)
	if best == nil {
		return nil, ErrNotFound
	}
	found := *best
	return &found, nil
}

func (m *MemoryStore) CreateCustomer(ctx context.Context, customer *models.Customer) (*models.Customer, error) {
	if err := m.fault("CreateCustomer"); err != nil {
		return nil, err
	}
	if err := customer.BeforeCreate(nil); err != nil {
		return nil, err
	}
	m.customerMu.Lock()
	defer m.customerMu.Unlock()

	if _, exists := m.customers[customer.Code]; exists {
		return nil, fmt.Errorf("customer %s: %w", customer.Code, ErrDuplicate)
	}
	m.customerCounter++
	c := *customer
	c.ID = m.customerCounter
	c.IsActive = true
	c.CreatedAt = time.Now()
	m.customers[c.Code] = &c
	created := c
	return &created, nil
}

// CustomerMatch is a directory hit with the field it matched on
type CustomerMatch struct {
	Customer *models.Customer
	Primary  bool
}

// BestCustomerMatch prefers primary-field matches, then the most recently active record
func BestCustomerMatch(matches []CustomerMatch) *models.Customer {
	if len(matches) == 0 {
		return nil
	}
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Primary != matches[j].Primary {
			return matches[i].Primary
		}
		ai, aj := matches[i].Customer.LastActivityAt, matches[j].Customer.LastActivityAt
		switch {
		case ai == nil && aj == nil:
			return matches[i].Customer.Code < matches[j].Customer.Code
		case ai == nil:
			return false
		case aj == nil:
			return true
		}
		return ai.After(*aj)
	})
	return matches[0].Customer
}

// Catalog operations

func (m *MemoryStore) SearchExact(ctx context.Context, term string) ([]models.Product, error) {
	if err := m.fault("SearchExact"); err != nil {
		return nil, err
	}
	term = utils.FoldText(strings.TrimSpace(term))
	if term == "" {
		return nil, nil
	}
	m.catalogMu.RLock()
	defer m.catalogMu.RUnlock()

	var rows []models.Product
	for _, p := range m.products {
		if p.Stock > m.minStock && strings.Contains(utils.FoldText(p.Name), term) {
			rows = append(rows, *p)
		}
	}
	RankExact(rows, term)
	if len(rows) > ExactSearchLimit {
		rows = rows[:ExactSearchLimit]
	}
	return rows, nil
}

func (m *MemoryStore) SearchByWords(ctx context.Context, words []string) ([]models.Product, error) {
	if err := m.fault("SearchByWords"); err != nil {
		return nil, err
	}
	words = SignificantWords(words)
	if len(words) == 0 {
		return nil, nil
	}
	m.catalogMu.RLock()
	defer m.catalogMu.RUnlock()

	var rows []models.Product
	for _, p := range m.products {
		if p.Stock <= m.minStock {
			continue
		}
		name := utils.FoldText(p.Name)
		all := true
		for _, w := range words {
			if !strings.Contains(name, w) {
				all = false
				break
			}
		}
		if all {
			rows = append(rows, *p)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Stock != rows[j].Stock {
			return rows[i].Stock > rows[j].Stock
		}
		return rows[i].Name < rows[j].Name
	})
	if len(rows) > WordSearchLimit {
		rows = rows[:WordSearchLimit]
	}
	return rows, nil
}

func (m *MemoryStore) FindProduct(ctx context.Context, code string) (*models.Product, error) {
	if err := m.fault("FindProduct"); err != nil {
		return nil, err
	}
	m.catalogMu.RLock()
	defer m.catalogMu.RUnlock()
	p, ok := m.products[code]
	if !ok {
		return nil, ErrNotFound
	}
	product := *p
	return &product, nil
}

// RankExact orders substring hits: names starting with the term, then stock descending, then shortest name.
// Names and term are compared without accents.
func RankExact(rows []models.Product, term string) {
	term = utils.FoldText(term)
	sort.SliceStable(rows, func(i, j int) bool {
		pi := strings.HasPrefix(utils.FoldText(rows[i].Name), term)
		pj := strings.HasPrefix(utils.FoldText(rows[j].Name), term)
		if pi != pj {
			return pi
		}
		if rows[i].Stock != rows[j].Stock {
			return rows[i].Stock > rows[j].Stock
		}
		if len(rows[i].Name) != len(rows[j].Name) {
			return len(rows[i].Name) < len(rows[j].Name)
		}
		return rows[i].Code < rows[j].Code
	})
}

// SignificantWords keeps folded words of at least MinWordLength characters
func SignificantWords(words []string) []string {
	var out []string
	for _, w := range words {
		w = utils.FoldText(strings.TrimSpace(w))
		if len([]rune(w)) >= MinWordLength {
			out = append(out, w)
		}
	}
	return out
}

// Order operations

func (m *MemoryStore) CreateOrderFromCart(ctx context.Context, customer *models.Customer, lines []models.CartLine, method string) (*models.OrderResult, error) {
	if err := m.fault("CreateOrderFromCart"); err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fmt.Errorf("order without lines")
	}
	key := utils.OrderKey(lines[0].PhoneNumber, models.LineIDs(lines))
	m.orderMu.Lock()
	defer m.orderMu.Unlock()

	for _, o := range m.orders {
		if o.CartKey == key {
			return orderResult(o), nil
		}
	}

	m.orderCounter++
	totals := models.ComputeTotals(lines)
	order := &models.Order{
		ID:            m.orderCounter,
		OrderNumber:   fmt.Sprintf("PED%06d", m.orderCounter),
		CartKey:       key,
		CustomerCode:  customer.Code,
		PhoneNumber:   lines[0].PhoneNumber,
		PaymentMethod: method,
		TotalUSD:      totals.TotalUSD,
		TotalBs:       totals.TotalBs,
		Status:        models.OrderStatusPending,
		CreatedAt:     time.Now(),
	}
	for _, l := range lines {
		order.Items = append(order.Items, orderItemFrom(order.ID, l))
	}
	m.orders[order.ID] = order
	return orderResult(order), nil
}

func (m *MemoryStore) RecordPaymentProof(ctx context.Context, proof *models.PaymentProof) error {
	if err := m.fault("RecordPaymentProof"); err != nil {
		return err
	}
	m.orderMu.Lock()
	defer m.orderMu.Unlock()

	if _, exists := m.orders[proof.OrderID]; !exists {
		return fmt.Errorf("order %d: %w", proof.OrderID, ErrNotFound)
	}
	for _, p := range m.proofs {
		if p.OrderID == proof.OrderID {
			return fmt.Errorf("payment proof for order %d: %w", proof.OrderID, ErrDuplicate)
		}
	}
	m.proofCounter++
	p := *proof
	p.ID = m.proofCounter
	p.CreatedAt = time.Now()
	m.proofs[p.ID] = &p
	proof.ID = p.ID
	return nil
}

func (m *MemoryStore) ListBanks(ctx context.Context) ([]models.Bank, error) {
	if err := m.fault("ListBanks"); err != nil {
		return nil, err
	}
	m.orderMu.RLock()
	defer m.orderMu.RUnlock()
	return append([]models.Bank(nil), m.banks...), nil
}

// Cart operations

func (m *MemoryStore) ActiveLines(ctx context.Context, phone string) ([]models.CartLine, error) {
	if err := m.fault("ActiveLines"); err != nil {
		return nil, err
	}
	m.cartMu.RLock()
	defer m.cartMu.RUnlock()

	var out []models.CartLine
	for _, l := range m.lines {
		if l.PhoneNumber == phone && l.Status == models.CartStatusActive {
			out = append(out, *l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *MemoryStore) FindActiveLine(ctx context.Context, phone, productCode string) (*models.CartLine, error) {
	if err := m.fault("FindActiveLine"); err != nil {
		return nil, err
	}
	m.cartMu.RLock()
	defer m.cartMu.RUnlock()

	for _, l := range m.lines {
		if l.PhoneNumber == phone && l.ProductCode == productCode && l.Status == models.CartStatusActive {
			found := *l
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

func (m *MemoryStore) CreateLine(ctx context.Context, line *models.CartLine) (*models.CartLine, error) {
	if err := m.fault("CreateLine"); err != nil {
		return nil, err
	}
	m.cartMu.Lock()
	defer m.cartMu.Unlock()

	m.lineCounter++
	now := time.Now()
	l := *line
	l.ID = m.lineCounter
	l.Status = models.CartStatusActive
	l.CreatedAt = now
	l.UpdatedAt = now
	m.lines[l.ID] = &l
	created := l
	return &created, nil
}

func (m *MemoryStore) UpdateLine(ctx context.Context, line *models.CartLine) error {
	if err := m.fault("UpdateLine"); err != nil {
		return err
	}
	m.cartMu.Lock()
	defer m.cartMu.Unlock()

	existing, exists := m.lines[line.ID]
	if !exists {
		return fmt.Errorf("cart line %d: %w", line.ID, ErrNotFound)
	}
	existing.Quantity = line.Quantity
	existing.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) SetLineStatus(ctx context.Context, id uint, status string) error {
	if err := m.fault("SetLineStatus"); err != nil {
		return err
	}
	m.cartMu.Lock()
	defer m.cartMu.Unlock()

	existing, exists := m.lines[id]
	if !exists {
		return fmt.Errorf("cart line %d: %w", id, ErrNotFound)
	}
	if !models.CanTransition(existing.Status, status) {
		return fmt.Errorf("cart line %d: cannot move from %s to %s", id, existing.Status, status)
	}
	existing.Status = status
	existing.UpdatedAt = time.Now()
	return nil
}

func (m *MemoryStore) ClearLines(ctx context.Context, phone string) (int64, error) {
	if err := m.fault("ClearLines"); err != nil {
		return 0, err
	}
	m.cartMu.Lock()
	defer m.cartMu.Unlock()

	var count int64
	for _, l := range m.lines {
		if l.PhoneNumber == phone && l.Status == models.CartStatusActive {
			l.Status = models.CartStatusCleared
			l.UpdatedAt = time.Now()
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) ExpireLines(ctx context.Context, cutoff time.Time) (int64, error) {
	if err := m.fault("ExpireLines"); err != nil {
		return 0, err
	}
	m.cartMu.Lock()
	defer m.cartMu.Unlock()

	var count int64
	for _, l := range m.lines {
		if l.Status == models.CartStatusActive && l.UpdatedAt.Before(cutoff) {
			l.Status = models.CartStatusExpired
			count++
		}
	}
	return count, nil
}

// Search history operations

func (m *MemoryStore) RecordSearch(ctx context.Context, phone, term string, resultCount int) error {
	if err := m.fault("RecordSearch"); err != nil {
		return err
	}
	m.catalogMu.Lock()
	defer m.catalogMu.Unlock()

	m.searchCounter++
	m.searches = append(m.searches, models.SearchLog{
		ID:          m.searchCounter,
		PhoneNumber: phone,
		Term:        term,
		ResultCount: resultCount,
		CreatedAt:   time.Now(),
	})
	return nil
}

func (m *MemoryStore) RecentSuccessful(ctx context.Context, phone string, limit int) ([]string, error) {
	if err := m.fault("RecentSuccessful"); err != nil {
		return nil, err
	}
	m.catalogMu.RLock()
	defer m.catalogMu.RUnlock()

	seen := make(map[string]bool)
	var terms []string
	for i := len(m.searches) - 1; i >= 0 && len(terms) < limit; i-- {
		s := m.searches[i]
		if s.PhoneNumber != phone || s.ResultCount == 0 || seen[s.Term] {
			continue
		}
		seen[s.Term] = true
		terms = append(terms, s.Term)
	}
	return terms, nil
}

// Rate operations

func (m *MemoryStore) CurrentRate(ctx context.Context) (float64, error) {
	if err := m.fault("CurrentRate"); err != nil {
		return 0, err
	}
	m.catalogMu.RLock()
	defer m.catalogMu.RUnlock()
	return m.rate, nil
}
