package services

import (
	"regexp"
	"strconv"
	"strings"
)

// CartAction is the verb class of a cart_action message
type CartAction string

const (
	ActionAdd      CartAction = "add"
	ActionView     CartAction = "view"
	ActionRemove   CartAction = "remove"
	ActionUpdate   CartAction = "update"
	ActionClear    CartAction = "clear"
	ActionCheckout CartAction = "checkout"
)

const (
	minQuantity   = 1
	maxQuantity   = 20
	minMenuOption = 1
	maxMenuOption = 5
)

// ProductRef points into the last search results. Group is 0 for a flat ordinal ("el 3")
// and 1-based for a grouped one ("1.2" is the second item of the first sub-search).
type ProductRef struct {
	Group int
	Index int
}

// Valid reports whether a reference was found
func (r ProductRef) Valid() bool {
	return r.Index > 0
}

func (r ProductRef) String() string {
	if r.Group > 0 {
		return strconv.Itoa(r.Group) + "." + strconv.Itoa(r.Index)
	}
	return strconv.Itoa(r.Index)
}

// Entities holds the structured values pulled out of one message
type Entities struct {
	SearchPhrase string
	SearchTerms  []string // more than one for conjoined searches

	Action   CartAction
	Ref      ProductRef
	Quantity int

	IDLetter string // V, E, J, G, P or empty
	IDDigits string

	MenuOption int
}

// MultiSearch reports whether the phrase held several conjoined searches
func (e Entities) MultiSearch() bool {
	return len(e.SearchTerms) > 1
}

var (
	searchSeparators = regexp.MustCompile(`[,;]|\s+(y|tambien|con)\s+`)
	searchFillers    = map[string]bool{
		"quiero": true, "quisiera": true, "busco": true, "buscar": true, "buscame": true, "busca": true,
		"necesito": true, "dame": true, "deme": true, "me": true, "das": true, "tienes": true, "tienen": true,
		"tiene": true, "hay": true, "venden": true, "vendes": true, "consigo": true, "tambien": true,
		"el": true, "la": true, "los": true, "las": true, "un": true, "una": true, "unos": true, "unas": true,
		"de": true, "del": true, "algo": true, "por": true, "favor": true, "precio": true, "precios": true,
		"cuanto": true, "cuesta": true, "vale": true, "sale": true, "gustaria": true, "estoy": true,
		"ando": true, "buscando": true, "interesa": true, "y": true, "con": true, "hola": true,
	}

	quantityAndRef = regexp.MustCompile(`(\d+)\s+(?:unidades?\s+)?(?:del?|de la)\s+(?:(?:producto|item|articulo|numero|nro)\s*)?(?:(?:el|la)\s+)?(\d+(?:\.\d+)?)`)
	quantityOnly   = regexp.MustCompile(`(\d+)\s*(?:unidades?|uds?|unds?)\b`)
	keywordRef     = regexp.MustCompile(`\b(?:producto|item|articulo|opcion|numero|nro)\s*(?:numero\s*|nro\s*)?(\d+(?:\.\d+)?)\b`)
	ordinalRef     = regexp.MustCompile(`\b(` + ordinalWords + `)\b`)
	bareRef        = regexp.MustCompile(`\b(\d+(?:\.\d+)?)\b`)
	quantityChange = regexp.MustCompile(`\b(\d+)\s+(?:a|por)\s+(\d+)\b`)

	idNumber   = regexp.MustCompile(`(?:^|[^0-9a-z])([vejgp])?[\s-]?(\d{6,9})(?:$|[^0-9])`)
	digitDots  = regexp.MustCompile(`(\d)\.(\d)`)
	menuOption = regexp.MustCompile(`\b([0-9])\b`)
)

var ordinalValues = map[string]int{
	"primer": 1, "primero": 1, "primera": 1,
	"segundo": 2, "segunda": 2,
	"tercer": 3, "tercero": 3, "tercera": 3,
	"cuarto": 4, "cuarta": 4,
	"quinto": 5, "quinta": 5,
	"sexto": 6, "sexta": 6,
	"septimo": 7, "septima": 7, "setimo": 7, "setima": 7,
	"octavo": 8, "octava": 8,
	"noveno": 9, "novena": 9,
	"decimo": 10, "decima": 10,
}

// ExtractEntities pulls the values the winning intent needs out of the raw text
func ExtractEntities(intent IntentType, text string) Entities {
	switch intent {
	case IntentProductSearch:
		return extractSearch(text)
	case IntentCartAction:
		return extractCart(NormalizeText(text))
	case IntentIdentification:
		letter, digits := ExtractIDNumber(text)
		return Entities{IDLetter: letter, IDDigits: digits}
	case IntentMenuOption:
		return Entities{MenuOption: extractMenuOption(NormalizeText(text))}
	}
	return Entities{}
}

func extractSearch(text string) Entities {
	folded := FoldText(text)
	var terms []string
	for _, part := range searchSeparators.Split(folded, -1) {
		if term := CleanSearchPhrase(part); len([]rune(term)) >= 2 {
			terms = append(terms, term)
		}
	}
	e := Entities{SearchPhrase: CleanSearchPhrase(folded)}
	if len(terms) > 1 {
		e.SearchTerms = terms
	} else if e.SearchPhrase != "" {
		e.SearchTerms = []string{e.SearchPhrase}
	}
	return e
}

// CleanSearchPhrase strips punctuation and leading filler words
func CleanSearchPhrase(text string) string {
	words := strings.Fields(strings.ReplaceAll(NormalizeText(text), ".", " "))
	for len(words) > 0 && searchFillers[words[0]] {
		words = words[1:]
	}
	// "por favor" at the end
	for len(words) > 0 && (words[len(words)-1] == "favor" || words[len(words)-1] == "por") {
		words = words[:len(words)-1]
	}
	return strings.Join(words, " ")
}

func extractCart(text string) Entities {
	e := Entities{Action: cartActionOf(text), Quantity: minQuantity}

	// "cambiar el 2 a 3": cart line 2 gets quantity 3, and 0 removes it
	if e.Action == ActionUpdate {
		if m := quantityChange.FindStringSubmatch(text); m != nil {
			e.Ref = ProductRef{Index: atoi(m[1])}
			e.Quantity = min(atoi(m[2]), maxQuantity)
		}
		return e
	}

	if m := quantityAndRef.FindStringSubmatch(text); m != nil {
		e.Quantity = clampQuantity(atoi(m[1]))
		e.Ref = parseRef(m[2])
		return e
	}

	rest := text
	if m := quantityOnly.FindStringSubmatchIndex(rest); m != nil {
		e.Quantity = clampQuantity(atoi(rest[m[2]:m[3]]))
		rest = rest[:m[0]] + " " + rest[m[1]:]
	}

	switch {
	case keywordRef.MatchString(rest):
		e.Ref = parseRef(keywordRef.FindStringSubmatch(rest)[1])
	case ordinalRef.MatchString(rest):
		e.Ref = ProductRef{Index: ordinalValues[ordinalRef.FindStringSubmatch(rest)[1]]}
	case bareRef.MatchString(rest):
		e.Ref = parseRef(bareRef.FindStringSubmatch(rest)[1])
	}
	return e
}

// checked in order: the first matching class wins
var cartActions = []struct {
	action  CartAction
	pattern *regexp.Regexp
}{
	{ActionClear, regexp.MustCompile(`\b(vaciar|limpiar)\b`)},
	{ActionCheckout, regexp.MustCompile(`\b(pagar|finalizar|checkout|procesar pedido|confirmar pedido|hacer pedido|terminar compra|proceder al pago)\b`)},
	{ActionUpdate, regexp.MustCompile(`^(cambiar|cambia|modificar|modifica|actualizar|actualiza)\b`)},
	{ActionRemove, regexp.MustCompile(`^(eliminar|elimina|quitar|quita|borrar|borra|sacar|saca|remover)\b`)},
	{ActionView, regexp.MustCompile(`^carrito$|^mi carrito$|\b(ver|mostrar|muestrame|revisar|consultar)\s+(el\s+|mi\s+)?carrito\b`)},
}

func cartActionOf(text string) CartAction {
	for _, a := range cartActions {
		if a.pattern.MatchString(text) {
			return a.action
		}
	}
	return ActionAdd
}

func parseRef(s string) ProductRef {
	if group, index, ok := strings.Cut(s, "."); ok {
		return ProductRef{Group: atoi(group), Index: atoi(index)}
	}
	return ProductRef{Index: atoi(s)}
}

func clampQuantity(q int) int {
	if q < minQuantity {
		return minQuantity
	}
	if q > maxQuantity {
		return maxQuantity
	}
	return q
}

func atoi(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

// ExtractIDNumber finds a 6-9 digit ID number anywhere in the text, with its optional type letter
func ExtractIDNumber(text string) (letter, digits string) {
	s := digitDots.ReplaceAllString(FoldText(text), "$1$2")
	// twice, since "12.345.678" overlaps
	s = digitDots.ReplaceAllString(s, "$1$2")
	m := idNumber.FindStringSubmatch(s)
	if m == nil {
		return "", ""
	}
	return strings.ToUpper(m[1]), m[2]
}

func extractMenuOption(text string) int {
	m := menuOption.FindStringSubmatch(text)
	if m == nil {
		return 0
	}
	n := atoi(m[1])
	if n < minMenuOption || n > maxMenuOption {
		return 0
	}
	return n
}
