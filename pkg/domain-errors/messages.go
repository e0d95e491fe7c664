package domainerrors

import (
	"golang.org/x/text/language"
)

var supported = []language.Tag{
	language.English,
	language.German,
}

var matcher = language.NewMatcher(supported)

// userMessages holds non-technical, end-user facing texts per code.
var userMessages = map[Code]map[language.Tag]string{
	CodeInvalidInput: {
		language.English: "The vehicle identifier is not valid. Please check it and try again.",
		language.German:  "Die Fahrzeug-Identifikationsnummer ist ungültig. Bitte prüfen Sie die Eingabe.",
	},
	CodeBadRequest: {
		language.English: "The request could not be understood.",
		language.German:  "Die Anfrage konnte nicht verarbeitet werden.",
	},
	CodeUnauthorized: {
		language.English: "Please sign in again.",
		language.German:  "Bitte melden Sie sich erneut an.",
	},
	CodeNotFound: {
		language.English: "The requested item was not found.",
		language.German:  "Der angeforderte Eintrag wurde nicht gefunden.",
	},
	CodeQuotaExceeded: {
		language.English: "You have reached your daily lookup limit. Please try again later.",
		language.German:  "Sie haben Ihr tägliches Abfragelimit erreicht. Bitte versuchen Sie es später erneut.",
	},
	CodeCorrelationRisk: {
		language.English: "To protect vehicle owners' privacy, further lookups for this vehicle group are paused for now.",
		language.German:  "Zum Schutz der Privatsphäre der Fahrzeughalter sind weitere Abfragen für diese Fahrzeuggruppe vorübergehend gesperrt.",
	},
	CodeInternal: {
		language.English: "Something went wrong. Please try again.",
		language.German:  "Es ist ein Fehler aufgetreten. Bitte versuchen Sie es erneut.",
	},
}

// UserMessage returns a localized, non-technical message for code. The
// acceptLanguage argument is an HTTP Accept-Language header value; unknown or
// empty values fall back to English.
func UserMessage(code Code, acceptLanguage string) string {
	msgs, ok := userMessages[code]
	if !ok {
		msgs = userMessages[CodeInternal]
	}
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return msgs[language.English]
	}
	_, idx, _ := matcher.Match(tags...)
	if msg, ok := msgs[supported[idx]]; ok {
		return msg
	}
	return msgs[language.English]
}
