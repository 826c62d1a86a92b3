package identity

import (
	"regexp"
	"strings"
)

// MaxLoginLength bounds logins so they fit the lobby views
const MaxLoginLength = 32

var stopSymbols = regexp.MustCompile(`[\\.+*?^$\[\](){}/'#:!=|<>"%&]`)

// stopWords are refused anywhere inside a login, case-insensitively
var stopWords = []string{
	"stockfish", "computer", "admin", "user", "comp", "комп", "админ", "电脑",
	"ass", "arse", "ball", "bollock", "cock", "dick", "prick", "tits", "boob",
	"cunt", "jesus", "christ", "nigg", "cretin", "stupid", "fool", "bukkake",
	"naz", "putin", "trump", "путин", "трамп", "psych", "псих", "дурак", "twat",
	"fuck", "wank", "paki", "shag", "bugg", "come", "cum", "sod", "slut",
	"dildo", "god", "bitch", "whor", "basta", "piss", "pussy", "shit", "crap",
	"fart", "suck", "сука", "бля", "блед", "залуп", "перд", "пизд", "пезд",
	"пёзд", "пись", "пист", "писю", "ебл", "ёбл", "еба", "ёба", "ебк", "ёбк",
	"ёбу", "ебу", "ёбщ", "ебщ", "ебен", "ябу", "хуя", "хуй", "хуи", "хер",
	"говн", "гавн", "дерьм", "трах", "минет", "клит", "кастр", "мастур", "муда",
	"муди", "мудо", "соса", "срат", "срак", "сран", "ссат", "драч", "дроч",
	"дрюч", "жоп", "анус", "манд", "кака",
}

// ValidLogin reports whether login may be registered
func ValidLogin(login string) bool {
	if strings.TrimSpace(login) == "" || len([]rune(login)) > MaxLoginLength {
		return false
	}
	if stopSymbols.MatchString(login) {
		return false
	}
	lower := strings.ToLower(login)
	for _, w := range stopWords {
		if strings.Contains(lower, w) {
			return false
		}
	}
	return true
}
