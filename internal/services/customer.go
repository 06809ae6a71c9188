package services

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/telehostca/chatbot-backend/internal/logger"
	"github.com/telehostca/chatbot-backend/internal/models"
	"github.com/telehostca/chatbot-backend/internal/storage"
)

// IdentifyOutcome is the result of an explicit identification attempt
type IdentifyOutcome int

const (
	IdentifyInvalid IdentifyOutcome = iota
	IdentifyFound
	IdentifyRegister
)

var (
	personName = regexp.MustCompile(`^\p{L}+(\s+\p{L}+)+$`)
	idLetters  = []string{"V", "E", "J"}
)

// CustomerResolver authenticates sessions against the customer directory
type CustomerResolver struct {
	directory     storage.CustomerDirectory
	defaultLetter string
	log           *logger.Logger
}

// NewCustomerResolver creates a resolver over the directory. defaultLetter prefixes
// ID numbers typed without a type letter when registering.
func NewCustomerResolver(directory storage.CustomerDirectory, defaultLetter string, l *logger.Logger) *CustomerResolver {
	if defaultLetter == "" {
		defaultLetter = "V"
	}
	return &CustomerResolver{directory: directory, defaultLetter: defaultLetter, log: l}
}

// AutoAuthenticate tries to recognize the sender by phone. It fails open: a directory fault
// leaves the session on the new-customer path and is only logged.
func (r *CustomerResolver) AutoAuthenticate(ctx context.Context, session *models.WhatsAppSession) bool {
	customer, err := r.directory.FindByPhoneCandidates(ctx, PhoneCandidates(session.PhoneNumber))
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			r.log.Warnw("Customer lookup by phone failed, continuing unauthenticated",
				"phone", session.PhoneNumber, "error", err)
		}
		session.IsNewCustomer = true
		session.Authenticated = false
		session.Context = models.ContextNewClient
		return false
	}

	session.Authenticate(customer)
	r.log.Infow("Customer authenticated by phone", "phone", session.PhoneNumber, "customer", customer.Code)
	return true
}

// IDCandidates lists the stored formats an ID number may have
func IDCandidates(letter, digits string) []string {
	if letter != "" {
		return []string{letter + digits, digits, letter + "-" + digits}
	}
	out := []string{digits}
	for _, l := range idLetters {
		out = append(out, l+digits)
	}
	return out
}

// IdentifyByID looks the customer up by ID number. On a miss the session enters the
// registration sub-flow holding the ID number.
func (r *CustomerResolver) IdentifyByID(ctx context.Context, session *models.WhatsAppSession, text string) (IdentifyOutcome, error) {
	letter, digits := ExtractIDNumber(text)
	if digits == "" {
		return IdentifyInvalid, nil
	}

	customer, err := r.directory.FindByID(ctx, IDCandidates(letter, digits))
	switch {
	case err == nil:
		session.Authenticate(customer)
		session.Registration = nil
		r.log.Infow("Customer identified by ID", "phone", session.PhoneNumber, "customer", customer.Code)
		return IdentifyFound, nil
	case errors.Is(err, storage.ErrNotFound):
		if letter == "" {
			letter = r.defaultLetter
		}
		session.Registration = &models.PendingRegistration{IDNumber: letter + digits}
		session.Context = models.ContextNewClientRegistration
		session.IsNewCustomer = true
		return IdentifyRegister, nil
	default:
		return IdentifyInvalid, collaboratorFault("directory.FindByID", err)
	}
}

// ValidName reports whether the text is a full name: two or more words of letters only
func ValidName(text string) bool {
	return personName.MatchString(strings.TrimSpace(text))
}

// Register creates the directory record for a pending registration and authenticates the session
func (r *CustomerResolver) Register(ctx context.Context, session *models.WhatsAppSession, name string) (*models.Customer, error) {
	if session.Registration == nil {
		return nil, errors.New("no registration in progress")
	}
	name = strings.Join(strings.Fields(name), " ")
	customer := &models.Customer{
		Code:     session.Registration.IDNumber,
		Name:     strings.ToUpper(name),
		IDNumber: session.Registration.IDNumber,
		Phone1:   session.PhoneNumber,
		IsActive: true,
	}

	created, err := r.directory.CreateCustomer(ctx, customer)
	if errors.Is(err, storage.ErrDuplicate) {
		// registered concurrently or from another phone: use the existing record
		created, err = r.directory.FindByID(ctx, []string{customer.IDNumber})
	}
	if err != nil {
		return nil, collaboratorFault("directory.CreateCustomer", err)
	}

	session.Authenticate(created)
	session.IsNewCustomer = true
	session.Registration = nil
	r.log.Infow("Customer registered", "phone", session.PhoneNumber, "customer", created.Code)
	return created, nil
}
