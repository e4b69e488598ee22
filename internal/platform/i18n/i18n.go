// Package i18n holds the user-visible message catalog and the locale
// negotiation used by the HTTP layer. Danish is the clinics' working language
// and the fallback for any key missing from another locale.
package i18n

import (
	"context"

	"golang.org/x/text/language"
)

const (
	Danish  = "da"
	English = "en"
)

// Message keys that are not error kinds.
const (
	KeyBadRequest      = "bad_request"
	KeyInternal        = "internal"
	KeyRateLimited     = "rate_limited"
	KeyTimeout         = "timeout"
	KeyTooLarge        = "payload_too_large"
	KeyMissingAnswers  = "missing_answers"
	KeyNoAnswer        = "no_answer"
	KeyLoggedOut       = "logged_out"
	KeyTemplateInvalid = "template_invalid"
)

// Export workbook labels.
const (
	KeyExportOverview  = "export.overview"
	KeyExportPatient   = "export.patient"
	KeyExportName      = "export.name"
	KeyExportAge       = "export.age"
	KeyExportPhone     = "export.phone"
	KeyExportEmail     = "export.email"
	KeyExportCondition = "export.condition"
	KeyExportNotes     = "export.notes"
	KeyExportNoNotes   = "export.no_notes"
	KeyExportQuestions = "export.questionnaires"
	KeyExportTitle     = "export.title"
	KeyExportAssigned  = "export.assigned"
	KeyExportCompleted = "export.completed"
	KeyExportStatus    = "export.status"
	KeyExportNotGiven  = "export.not_given"
	KeyExportQuestion  = "export.question"
	KeyExportAnswer    = "export.answer"
	KeyExportUntitled  = "export.untitled"
	KeyStatusPending   = "status.pending"
	KeyStatusCompleted = "status.completed"
	KeyStatusOverdue   = "status.overdue"
)

var supported = []language.Tag{language.Danish, language.English}

var matcher = language.NewMatcher(supported)

var catalog = map[string]map[string]string{
	Danish: {
		"not_found":           "Den anmodede ressource blev ikke fundet.",
		"validation":          "Ugyldig data blev sendt. Kontrollér dine indtastninger.",
		"already_completed":   "Dette spørgeskema er allerede udfyldt.",
		"expired":             "Dette link er udløbet. Kontakt klinikken for et nyt link.",
		"invalid_credentials": "Ugyldige login oplysninger.",
		"account_disabled":    "Din konto er deaktiveret. Kontakt din administrator.",
		"unauthenticated":     "Du skal logge ind igen for at fortsætte.",
		"unauthorized":        "Du har ikke tilladelse til denne handling. Kontakt din administrator.",
		"conflict":            "Denne ressource eksisterer allerede.",
		"backend_unavailable": "Databasen er midlertidigt utilgængelig. Prøv igen om et øjeblik.",
		KeyBadRequest:         "Ugyldig anmodning.",
		KeyInternal:           "Der opstod en intern serverfejl. Kontakt support.",
		KeyRateLimited:        "For mange anmodninger. Vent et øjeblik og prøv igen.",
		KeyTimeout:            "Anmodningen tog for lang tid. Prøv igen.",
		KeyTooLarge:           "Anmodningen er for stor.",
		KeyMissingAnswers:     "Udfyld venligst alle påkrævede felter.",
		KeyNoAnswer:           "Intet svar",
		KeyLoggedOut:          "Du er logget ud.",
		KeyTemplateInvalid:    "Spørgeskemaet mangler spørgsmål eller er ugyldigt.",
		KeyExportOverview:     "Oversigt",
		KeyExportPatient:      "Patientinformation",
		KeyExportName:         "Navn",
		KeyExportAge:          "Alder",
		KeyExportPhone:        "Telefon",
		KeyExportEmail:        "Email",
		KeyExportCondition:    "Tilstand",
		KeyExportNotes:        "Behandlingsnotater",
		KeyExportNoNotes:      "Ingen notater",
		KeyExportQuestions:    "Spørgeskema overblik",
		KeyExportTitle:        "Titel",
		KeyExportAssigned:     "Tildelt",
		KeyExportCompleted:    "Gennemført",
		KeyExportStatus:       "Status",
		KeyExportNotGiven:     "Ikke angivet",
		KeyExportQuestion:     "Spørgsmål",
		KeyExportAnswer:       "Svar",
		KeyExportUntitled:     "Spørgeskema",
		KeyStatusPending:      "Afventer",
		KeyStatusCompleted:    "Gennemført",
		KeyStatusOverdue:      "Forsinket",
	},
	English: {
		"not_found":           "The requested resource was not found.",
		"validation":          "Invalid data was submitted. Please check your input.",
		"already_completed":   "This questionnaire has already been completed.",
		"expired":             "This link has expired. Please contact the clinic for a new link.",
		"invalid_credentials": "Invalid login details.",
		"account_disabled":    "Your account is disabled. Please contact your administrator.",
		"unauthenticated":     "Please log in again to continue.",
		"unauthorized":        "You are not allowed to perform this action. Please contact your administrator.",
		"conflict":            "This resource already exists.",
		"backend_unavailable": "The database is temporarily unavailable. Please try again shortly.",
		KeyBadRequest:         "Invalid request.",
		KeyInternal:           "An internal server error occurred. Please contact support.",
		KeyRateLimited:        "Too many requests. Please wait a moment and try again.",
		KeyTimeout:            "The request took too long. Please try again.",
		KeyTooLarge:           "The request is too large.",
		KeyMissingAnswers:     "Please answer all required questions.",
		KeyNoAnswer:           "No answer",
		KeyLoggedOut:          "You are logged out.",
		KeyTemplateInvalid:    "The questionnaire has no questions or is invalid.",
		KeyExportOverview:     "Overview",
		KeyExportPatient:      "Patient information",
		KeyExportName:         "Name",
		KeyExportAge:          "Age",
		KeyExportPhone:        "Phone",
		KeyExportEmail:        "Email",
		KeyExportCondition:    "Condition",
		KeyExportNotes:        "Treatment notes",
		KeyExportNoNotes:      "No notes",
		KeyExportQuestions:    "Questionnaire overview",
		KeyExportTitle:        "Title",
		KeyExportAssigned:     "Assigned",
		KeyExportCompleted:    "Completed",
		KeyExportStatus:       "Status",
		KeyExportNotGiven:     "Not given",
		KeyExportQuestion:     "Question",
		KeyExportAnswer:       "Answer",
		KeyExportUntitled:     "Questionnaire",
		KeyStatusPending:      "Pending",
		KeyStatusCompleted:    "Completed",
		KeyStatusOverdue:      "Overdue",
	},
}

// Supported reports whether locale has a catalog.
func Supported(locale string) bool {
	_, ok := catalog[locale]
	return ok
}

// T returns the message for key in locale, falling back to Danish and then
// to the key itself.
func T(locale, key string) string {
	if msg, ok := catalog[locale][key]; ok {
		return msg
	}
	if msg, ok := catalog[Danish][key]; ok {
		return msg
	}
	return key
}

// Negotiate picks a supported locale. An explicit choice (query parameter)
// wins over the Accept-Language header; def is used when neither matches.
func Negotiate(explicit, acceptLanguage, def string) string {
	if explicit != "" {
		if tag, err := language.Parse(explicit); err == nil {
			if loc, ok := match(tag); ok {
				return loc
			}
		}
	}
	if acceptLanguage != "" {
		tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
		if err == nil && len(tags) > 0 {
			if loc, ok := match(tags...); ok {
				return loc
			}
		}
	}
	if Supported(def) {
		return def
	}
	return Danish
}

func match(tags ...language.Tag) (string, bool) {
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return "", false
	}
	base, _ := supported[idx].Base()
	return base.String(), true
}

type localeKey struct{}

// WithLocale stores the negotiated locale in ctx.
func WithLocale(ctx context.Context, locale string) context.Context {
	return context.WithValue(ctx, localeKey{}, locale)
}

// FromContext returns the negotiated locale, or Danish when none was set.
func FromContext(ctx context.Context) string {
	if loc, ok := ctx.Value(localeKey{}).(string); ok && loc != "" {
		return loc
	}
	return Danish
}
