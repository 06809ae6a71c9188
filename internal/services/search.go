package services

import (
	"context"
	"strconv"
	"strings"

	"github.com/telehostca/chatbot-backend/internal/logger"
	"github.com/telehostca/chatbot-backend/internal/models"
	"github.com/telehostca/chatbot-backend/internal/storage"
)

const (
	maxShownSingle   = 10
	maxShownPerGroup = 5
	maxAlternatives  = 3
	historyLookback  = 20
)

// SearchOutcome is what one customer search produced
type SearchOutcome struct {
	Query        string
	Results      *models.SearchContext // nil when nothing was found
	Alternatives []string
}

// Found reports whether any sub-search returned rows
func (o *SearchOutcome) Found() bool {
	return o.Results != nil
}

// SearchService runs the product search cascade
type SearchService struct {
	catalog storage.Catalog
	history storage.SearchHistory
	log     *logger.Logger
}

// NewSearchService creates a search service
func NewSearchService(catalog storage.Catalog, history storage.SearchHistory, l *logger.Logger) *SearchService {
	return &SearchService{catalog: catalog, history: history, log: l}
}

// Cascade returns in-stock rows for one phrase: substring match first, then all-words match
func (s *SearchService) Cascade(ctx context.Context, term string) ([]models.Product, error) {
	rows, err := s.catalog.SearchExact(ctx, term)
	if err != nil {
		return nil, collaboratorFault("catalog.SearchExact", err)
	}
	if len(rows) > 0 {
		return rows, nil
	}

	rows, err = s.catalog.SearchByWords(ctx, strings.Fields(term))
	if err != nil {
		return nil, collaboratorFault("catalog.SearchByWords", err)
	}
	return rows, nil
}

// Search runs every sub-term of the phrase and builds the result set the customer can pick from
func (s *SearchService) Search(ctx context.Context, phone string, ents Entities) (*SearchOutcome, error) {
	outcome := &SearchOutcome{Query: ents.SearchPhrase}
	if len(ents.SearchTerms) == 0 {
		return outcome, nil
	}

	multi := ents.MultiSearch()
	sc := &models.SearchContext{Query: ents.SearchPhrase}
	total := 0
	for g, term := range ents.SearchTerms {
		rows, err := s.Cascade(ctx, term)
		if err != nil {
			return nil, err
		}
		s.record(ctx, phone, term, len(rows))

		limit := maxShownSingle
		if multi {
			limit = maxShownPerGroup
		}
		group := models.SearchGroup{Term: term}
		for i, p := range rows {
			if i == limit {
				break
			}
			label := strconv.Itoa(i + 1)
			if multi {
				label = strconv.Itoa(g+1) + "." + label
			}
			group.Items = append(group.Items, models.SearchItem{
				Label: label,
				Code:  p.Code,
				Name:  p.Name,
				Price: p.PriceUSD,
			})
		}
		total += len(group.Items)
		sc.Groups = append(sc.Groups, group)
	}

	if total > 0 {
		outcome.Results = sc
		return outcome, nil
	}
	outcome.Alternatives = s.alternatives(ctx, phone, ents.SearchTerms)
	return outcome, nil
}

func (s *SearchService) record(ctx context.Context, phone, term string, count int) {
	if err := s.history.RecordSearch(ctx, phone, term, count); err != nil {
		s.log.Warnw("Failed to record search", "phone", phone, "term", term, "error", err)
	}
}

// alternatives picks recent successful searches sharing a word with the failed query
func (s *SearchService) alternatives(ctx context.Context, phone string, terms []string) []string {
	recent, err := s.history.RecentSuccessful(ctx, phone, historyLookback)
	if err != nil {
		s.log.Warnw("Failed to read search history", "phone", phone, "error", err)
		return nil
	}
	return SuggestAlternatives(terms, recent, maxAlternatives)
}

// SuggestAlternatives keeps, in order, the previous terms that share a word with the query
func SuggestAlternatives(query []string, previous []string, limit int) []string {
	tokens := make(map[string]bool)
	asked := make(map[string]bool)
	for _, t := range query {
		asked[t] = true
		for _, w := range strings.Fields(t) {
			tokens[w] = true
		}
	}

	var out []string
	for _, p := range previous {
		if len(out) == limit {
			break
		}
		if asked[p] {
			continue
		}
		for _, w := range strings.Fields(p) {
			if tokens[w] {
				out = append(out, p)
				break
			}
		}
	}
	return out
}
