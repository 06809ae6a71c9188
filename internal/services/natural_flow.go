package services

import (
	"context"
	"errors"
	"time"

	"github.com/telehostca/chatbot-backend/internal/logger"
	"github.com/telehostca/chatbot-backend/internal/models"
	"github.com/telehostca/chatbot-backend/internal/storage"
	"github.com/telehostca/chatbot-backend/internal/utils"
)

// EngineOptions tunes the conversation engine
type EngineOptions struct {
	SessionTimeout  time.Duration
	DefaultIDLetter string
}

// Engine orchestrates one conversational turn: session, identity, intent, and the handler
// selected by the session context
type Engine struct {
	sessions  *SessionManager
	customers *CustomerResolver
	search    *SearchService
	cart      *CartLedger
	checkout  *CheckoutService
	channel   Channel
	log       *logger.Logger
}

// NewEngine wires the engine over a store. A nil channel falls back to logging replies.
func NewEngine(store storage.Store, channel Channel, l *logger.Logger, opts EngineOptions) *Engine {
	if channel == nil {
		channel = NewLogChannel(l)
	}
	cart := NewCartLedger(store, store, store)
	return &Engine{
		sessions:  NewSessionManager(store, opts.SessionTimeout, l),
		customers: NewCustomerResolver(store, opts.DefaultIDLetter, l),
		search:    NewSearchService(store, store, l),
		cart:      cart,
		checkout:  NewCheckoutService(store, store, cart, opts.DefaultIDLetter, l),
		channel:   channel,
		log:       l,
	}
}

// Sessions exposes the session manager, used by the sweeper
func (e *Engine) Sessions() *SessionManager {
	return e.sessions
}

// Channel returns the outbound channel
func (e *Engine) Channel() Channel {
	return e.channel
}

// ProcessMessage handles an inbound message and delivers the reply through the channel
func (e *Engine) ProcessMessage(ctx context.Context, from, text string) (string, error) {
	reply := e.HandleMessage(ctx, from, text)
	if err := e.channel.Send(ctx, from, reply); err != nil {
		return reply, err
	}
	return reply, nil
}

// HandleMessage runs one turn and returns the reply. It never fails: faults become the
// technical-difficulty reply carrying a correlation id, and the session is left as it was.
func (e *Engine) HandleMessage(ctx context.Context, from, text string) (reply string) {
	identity := NormalizePhone(from)
	correlationID := utils.NewCorrelationID()
	log := e.log.With("correlation_id", correlationID, "phone", identity)

	defer func() {
		if r := recover(); r != nil {
			log.Errorw("Panic while handling message", "panic", r)
			reply = TechnicalDifficulty(correlationID)
		}
	}()

	if identity == "" {
		log.Warnw("Message without a usable sender address", "from", from)
		return TechnicalDifficulty(correlationID)
	}

	unlock := e.sessions.Lock(identity)
	defer unlock()

	loaded, err := e.sessions.Load(ctx, identity)
	if err != nil {
		return e.fault(log, correlationID, "", err)
	}
	session := loaded.Session

	reply, err = e.turn(ctx, loaded, text)
	if err != nil {
		return e.fault(log, correlationID, session.Context, err)
	}

	e.sessions.RecordTurn(session, text, reply)
	if err := e.sessions.Save(ctx, session); err != nil {
		return e.fault(log, correlationID, session.Context, err)
	}
	return reply
}

func (e *Engine) fault(log *logger.Logger, correlationID, sessionContext string, err error) string {
	var ce *CollaboratorError
	if errors.As(err, &ce) {
		ce.CorrelationID = correlationID
		log.Errorw("Collaborator fault", "op", ce.Op, "context", sessionContext, "error", ce.Err)
	} else {
		log.Errorw("Turn failed", "context", sessionContext, "error", err)
	}
	return TechnicalDifficulty(correlationID)
}

func (e *Engine) turn(ctx context.Context, loaded *LoadedSession, text string) (string, error) {
	session := loaded.Session

	firstTurn := session.MessageCount == 0 && !session.Authenticated
	if firstTurn {
		e.customers.AutoAuthenticate(ctx, session)
	}

	if session.IsPaymentContext() {
		return e.checkout.Handle(ctx, session, text)
	}
	if session.Context == models.ContextNewClientRegistration {
		return e.handleRegistration(ctx, session, text)
	}

	intent := ClassifyIntent(text, session.Context)
	intent.Entities = ExtractEntities(intent.Type, text)

	if (firstTurn || loaded.Reactivated) && (intent.Type == IntentGreeting || intent.Type == IntentUnknown) {
		if loaded.Reactivated {
			return WelcomeBack(session.CustomerName), nil
		}
		return e.welcome(session), nil
	}

	switch intent.Type {
	case IntentIdentification:
		return e.identify(ctx, session, text)
	case IntentMenuOption:
		return e.handleMenuOption(ctx, session, intent.Entities.MenuOption)
	case IntentProductSearch:
		return e.handleSearch(ctx, session, intent.Entities)
	case IntentCartAction:
		return e.handleCart(ctx, session, intent.Entities)
	case IntentGreeting:
		return e.welcome(session), nil
	case IntentHelp:
		return Help(), nil
	}

	if !session.Authenticated && session.Context == models.ContextNewClient {
		return WelcomeNew(), nil
	}
	return Unknown(), nil
}

func (e *Engine) welcome(session *models.WhatsAppSession) string {
	if session.Authenticated {
		return WelcomeKnown(session.CustomerName)
	}
	return WelcomeNew()
}

// identify looks up an ID number. An identified session keeps its customer.
func (e *Engine) identify(ctx context.Context, session *models.WhatsAppSession, text string) (string, error) {
	if session.Authenticated {
		return AlreadyIdentified(session.CustomerName, session.CustomerIDNumber), nil
	}
	outcome, err := e.customers.IdentifyByID(ctx, session, text)
	if err != nil {
		return "", err
	}
	switch outcome {
	case IdentifyFound:
		return WelcomeKnown(session.CustomerName), nil
	case IdentifyRegister:
		return AskName(session.Registration.IDNumber), nil
	}
	return AskIDNumber(), nil
}

func (e *Engine) handleRegistration(ctx context.Context, session *models.WhatsAppSession, text string) (string, error) {
	if IsCancel(text) {
		session.Registration = nil
		session.Context = models.ContextNewClient
		return RegistrationCancelled(), nil
	}
	if session.Registration == nil {
		session.Context = models.ContextNewClient
		return AskIDNumber(), nil
	}
	// a different ID number restarts the lookup
	if _, digits := ExtractIDNumber(text); digits != "" {
		return e.identify(ctx, session, text)
	}
	if !ValidName(text) {
		return InvalidName(), nil
	}

	customer, err := e.customers.Register(ctx, session, text)
	if err != nil {
		return "", err
	}
	return RegistrationDone(customer), nil
}

func (e *Engine) handleMenuOption(ctx context.Context, session *models.WhatsAppSession, option int) (string, error) {
	switch option {
	case 1:
		session.Context = models.ContextProductSearch
		return SearchPrompt(), nil
	case 2:
		return e.viewCart(ctx, session)
	case 3:
		return e.checkout.Begin(ctx, session)
	case 4:
		return Help(), nil
	case 5:
		session.Deauthenticate()
		return Goodbye(), nil
	}
	return Unknown(), nil
}

func (e *Engine) handleSearch(ctx context.Context, session *models.WhatsAppSession, ents Entities) (string, error) {
	session.Context = models.ContextProductSearch
	if len(ents.SearchTerms) == 0 {
		return SearchPrompt(), nil
	}

	outcome, err := e.search.Search(ctx, session.PhoneNumber, ents)
	if err != nil {
		return "", err
	}
	session.SearchCount++
	if !outcome.Found() {
		return NoResults(outcome.Query, outcome.Alternatives), nil
	}
	session.Search = outcome.Results
	return SearchResults(outcome.Results), nil
}

func (e *Engine) viewCart(ctx context.Context, session *models.WhatsAppSession) (string, error) {
	totals, err := e.cart.Totals(ctx, session.PhoneNumber)
	if err != nil {
		return "", err
	}
	return CartView(totals), nil
}

func (e *Engine) handleCart(ctx context.Context, session *models.WhatsAppSession, ents Entities) (string, error) {
	switch ents.Action {
	case ActionView:
		return e.viewCart(ctx, session)
	case ActionClear:
		if _, err := e.cart.Clear(ctx, session.PhoneNumber); err != nil {
			return "", err
		}
		return CartCleared(), nil
	case ActionCheckout:
		return e.checkout.Begin(ctx, session)
	case ActionRemove:
		return e.removeLine(ctx, session, ents.Ref)
	case ActionUpdate:
		return e.updateLine(ctx, session, ents)
	}
	return e.addItem(ctx, session, ents)
}

func (e *Engine) addItem(ctx context.Context, session *models.WhatsAppSession, ents Entities) (string, error) {
	if session.Search == nil {
		return NeedSearchFirst(), nil
	}
	if !ents.Ref.Valid() {
		return AskWhichProduct(), nil
	}
	item, ok := session.Search.Resolve(ents.Ref.Group, ents.Ref.Index)
	if !ok {
		return RefNotFound(ents.Ref), nil
	}

	if _, err := e.cart.Add(ctx, session.PhoneNumber, item.Code, ents.Quantity); err != nil {
		return "", err
	}
	totals, err := e.cart.Totals(ctx, session.PhoneNumber)
	if err != nil {
		return "", err
	}
	session.Context = models.ContextProductSearch
	return ItemAdded(item, ents.Quantity, totals), nil
}

// removeLine drops the Nth line of the cart as listed by CartView
func (e *Engine) removeLine(ctx context.Context, session *models.WhatsAppSession, ref ProductRef) (string, error) {
	if !ref.Valid() {
		return AskWhichProduct(), nil
	}
	totals, err := e.cart.Totals(ctx, session.PhoneNumber)
	if err != nil {
		return "", err
	}
	if ref.Index > len(totals.Lines) {
		return CartLineNotFound(ref.Index), nil
	}
	line := totals.Lines[ref.Index-1]

	if _, err := e.cart.Remove(ctx, session.PhoneNumber, line.ProductCode); err != nil {
		return "", err
	}
	totals, err = e.cart.Totals(ctx, session.PhoneNumber)
	if err != nil {
		return "", err
	}
	return ItemRemoved(line.ProductName, totals), nil
}

// updateLine sets the quantity of the Nth cart line
func (e *Engine) updateLine(ctx context.Context, session *models.WhatsAppSession, ents Entities) (string, error) {
	if !ents.Ref.Valid() {
		return AskQuantityChange(), nil
	}
	totals, err := e.cart.Totals(ctx, session.PhoneNumber)
	if err != nil {
		return "", err
	}
	if ents.Ref.Index > len(totals.Lines) {
		return CartLineNotFound(ents.Ref.Index), nil
	}
	line := totals.Lines[ents.Ref.Index-1]

	if err := e.cart.UpdateQuantity(ctx, session.PhoneNumber, line.ProductCode, ents.Quantity); err != nil {
		return "", err
	}
	totals, err = e.cart.Totals(ctx, session.PhoneNumber)
	if err != nil {
		return "", err
	}
	if ents.Quantity <= 0 {
		return ItemRemoved(line.ProductName, totals), nil
	}
	return QuantityUpdated(line.ProductName, ents.Quantity, totals), nil
}
