package services

import (
	"math"
	"regexp"
	"strings"
	"unicode"

	"github.com/telehostca/chatbot-backend/internal/models"
	"github.com/telehostca/chatbot-backend/internal/utils"
)

// IntentType is the classified purpose of one inbound message
type IntentType string

const (
	IntentProductSearch  IntentType = "product_search"
	IntentCartAction     IntentType = "cart_action"
	IntentMenuOption     IntentType = "menu_option"
	IntentIdentification IntentType = "identification"
	IntentGreeting       IntentType = "greeting"
	IntentHelp           IntentType = "help"
	IntentUnknown        IntentType = "unknown"
)

// Intent is a transient classification result
type Intent struct {
	Type       IntentType
	Confidence float64
	Entities   Entities
}

const (
	shortCircuitConfidence = 0.8
	acceptConfidence       = 0.6
	browsingConfidence     = 0.7
	lengthBonusPerWord     = 0.02
	maxLengthBonus         = 0.1
	contextBonus           = 0.1
)

const ordinalWords = `primer[oa]?|segund[oa]|tercer[oa]?|cuart[oa]|quint[oa]|sext[oa]|septim[oa]|setim[oa]|octav[oa]|noven[oa]|decim[oa]`

// intentRule is one row of the pattern table: any matching pattern selects the intent
type intentRule struct {
	Intent   IntentType
	Base     float64
	Patterns []*regexp.Regexp
}

func compileRule(intent IntentType, base float64, patterns ...string) intentRule {
	rule := intentRule{Intent: intent, Base: base}
	for _, p := range patterns {
		rule.Patterns = append(rule.Patterns, regexp.MustCompile(p))
	}
	return rule
}

// intentRules is matched against normalized text (lower case, no accents, no punctuation)
var intentRules = map[IntentType]intentRule{
	IntentProductSearch: compileRule(IntentProductSearch, 0.6,
		`^(busco|buscar|buscame|busca|necesito|quiero|quisiera|dame|deme|tienes|tienen|tiene|hay|venden|vendes|consigo)\b`,
		`\b(precio|precios|cuanto cuesta|cuanto vale|cuanto sale|costo|disponible|disponibles)\b`,
		`\b(me gustaria|estoy buscando|ando buscando|me interesa)\b`,
		`\b(catalogo|productos)\b`,
	),
	IntentCartAction: compileRule(IntentCartAction, 0.75,
		`^(agregar|agrega|agregame|agregue|anadir|anade|anademe|sumar|suma|meter|mete|poner|pon|add)\b`,
		`^(quiero|quisiera|dame|deme|llevo|me llevo)\s+(el|la|los|las)?\s*(\d+(\.\d+)?|`+ordinalWords+`)\b`,
		`\b(producto|item|articulo|opcion)\s*(numero|nro)?\s*\d+(\.\d+)?\b`,
		`^(el|la)\s+(\d+(\.\d+)?|`+ordinalWords+`)$`,
		`^(`+ordinalWords+`)$`,
		`^\d{1,2}(\.\d{1,2})?$`,
		`^\d+\s+(unidades?\s+)?(del?|de la)\s+`,
		`\b(ver|mostrar|muestrame|revisar|consultar)\s+(el\s+|mi\s+)?carrito\b`,
		`^(mi\s+)?carrito$`,
		`^(eliminar|elimina|quitar|quita|borrar|borra|sacar|saca|remover)\b`,
		`^(cambiar|cambia|modificar|modifica|actualizar|actualiza)\b`,
		`\b(vaciar|limpiar)(\s+el)?(\s+carrito)?\b`,
		`\b(pagar|finalizar|checkout|procesar pedido|confirmar pedido|hacer pedido|terminar compra|proceder al pago)\b`,
	),
	IntentMenuOption: compileRule(IntentMenuOption, 0.8,
		`^[1-5]$`,
		`^opcion\s+[1-5]$`,
	),
	IntentIdentification: compileRule(IntentIdentification, 0.75,
		`^[vejgp]?\s*\d{6,9}$`,
		`\b[vejgp]\s?\d{6,9}\b`,
		`^[vejgp]?\s*\d{1,3}\.\d{3}\.\d{3}$`,
		`\b(cedula|rif|ci|documento|identificacion)\b`,
	),
	IntentGreeting: compileRule(IntentGreeting, 0.7,
		`^(hola+|buenas|buenos dias|buen dia|buenas tardes|buenas noches|saludos|hey|hello|hi|que tal)\b`,
	),
	IntentHelp: compileRule(IntentHelp, 0.7,
		`\b(ayuda|help|como funciona|como compro|que puedo hacer|instrucciones)\b`,
		`^(menu|inicio|opciones)$`,
	),
}

var defaultPriority = []IntentType{
	IntentProductSearch, IntentCartAction, IntentGreeting, IntentHelp, IntentIdentification, IntentMenuOption,
}

var contextPriority = map[string][]IntentType{
	models.ContextProductSearch: {
		IntentCartAction, IntentProductSearch, IntentGreeting, IntentHelp, IntentMenuOption, IntentIdentification,
	},
	models.ContextMenu: {
		IntentMenuOption, IntentCartAction, IntentProductSearch, IntentGreeting, IntentHelp, IntentIdentification,
	},
	models.ContextNewClient: {
		IntentIdentification, IntentGreeting, IntentHelp, IntentProductSearch, IntentCartAction, IntentMenuOption,
	},
	models.ContextNewClientRegistration: {
		IntentIdentification, IntentGreeting, IntentHelp, IntentProductSearch, IntentCartAction, IntentMenuOption,
	},
}

// contextAffinity lists the intents that get the context bonus in each context
var contextAffinity = map[string][]IntentType{
	models.ContextProductSearch:         {IntentProductSearch, IntentCartAction},
	models.ContextMenu:                  {IntentMenuOption},
	models.ContextNewClient:             {IntentIdentification},
	models.ContextNewClientRegistration: {IntentIdentification},
}

// PriorityFor returns the order in which intents are tried in a context
func PriorityFor(context string) []IntentType {
	if order, ok := contextPriority[context]; ok {
		return order
	}
	return defaultPriority
}

// ClassifyIntent maps text to an intent. It does no I/O and is deterministic for a (text, context) pair.
func ClassifyIntent(text, context string) Intent {
	normalized := NormalizeText(text)
	if normalized == "" {
		return Intent{Type: IntentUnknown}
	}
	words := len(strings.Fields(normalized))

	best := Intent{Type: IntentUnknown}
	for _, intentType := range PriorityFor(context) {
		rule := intentRules[intentType]
		if !rule.matches(normalized) {
			continue
		}
		score := confidence(rule, words, context)
		if score > best.Confidence {
			best = Intent{Type: intentType, Confidence: score}
		}
		if score > shortCircuitConfidence {
			break
		}
	}

	if best.Confidence >= acceptConfidence {
		return best
	}
	if context == models.ContextProductSearch {
		// a bare utterance while browsing is a new query
		return Intent{Type: IntentProductSearch, Confidence: browsingConfidence}
	}
	return Intent{Type: IntentUnknown, Confidence: best.Confidence}
}

func (r intentRule) matches(text string) bool {
	for _, p := range r.Patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func confidence(rule intentRule, words int, context string) float64 {
	score := rule.Base + math.Min(float64(words)*lengthBonusPerWord, maxLengthBonus)
	for _, affine := range contextAffinity[context] {
		if affine == rule.Intent {
			score += contextBonus
			break
		}
	}
	return math.Min(math.Round(score*100)/100, 1)
}

var spaces = regexp.MustCompile(`\s+`)

// FoldText lower-cases text and strips diacritics
func FoldText(text string) string {
	return utils.FoldText(text)
}

// NormalizeText folds text and turns punctuation into spaces, keeping decimal points between digits
func NormalizeText(text string) string {
	rs := []rune(FoldText(text))
	var b strings.Builder
	for i, r := range rs {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '.' && i > 0 && i < len(rs)-1 && unicode.IsDigit(rs[i-1]) && unicode.IsDigit(rs[i+1]):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.TrimSpace(spaces.ReplaceAllString(b.String(), " "))
}
