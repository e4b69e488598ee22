package questionnaire

func intPtr(v int) *int { return &v }

func strPtr(s string) *string { return &s }

var frequencyOptions = []string{
	"Aldrig eller næsten aldrig",
	"Sjældent",
	"Nogle gange",
	"Ofte",
	"Meget ofte",
}

var who5Labels = []string{
	"På intet tidspunkt",
	"En lille del af tiden",
	"Lidt under halvdelen af tiden",
	"Lidt over halvdelen af tiden",
	"Det meste af tiden",
	"Hele tiden",
}

func who5Question(id, text string) Question {
	return Question{
		ID: id, Type: TypeScale, Text: text, Required: true,
		Min: intPtr(0), Max: intPtr(5), Labels: who5Labels,
	}
}

// BuiltinTemplates returns fresh copies of the standard questionnaires the
// clinics start from. Each carries a stable key so seeding is idempotent.
func BuiltinTemplates() []*Template {
	return []*Template{
		{
			Key:          strPtr("who5"),
			Title:        "WHO-5 Trivselsskala",
			Description:  "Dette spørgeskema måler dit psykologiske velbefindende over de sidste to uger.",
			Instructions: "For hver af de følgende udsagn, vælg venligst det tal (0-5), der bedst beskriver, hvor ofte du har haft denne følelse i løbet af de sidste to uger.",
			Questions: []Question{
				who5Question("who5_1", "Jeg har følt mig glad og i godt humør"),
				who5Question("who5_2", "Jeg har følt mig rolig og afslappet"),
				who5Question("who5_3", "Jeg har følt mig energisk og aktiv"),
				who5Question("who5_4", "Jeg vågnede frisk og udhvilet"),
				who5Question("who5_5", "Min dagligdag har været fyldt med ting, der interesserer mig"),
			},
		},
		{
			Key:          strPtr("treatment-progress"),
			Title:        "Treatment Progress Review",
			Description:  "Progress tracking questionnaire for ongoing treatment",
			Instructions: "Please reflect on your progress since your last treatment session.",
			Questions: []Question{
				{ID: "1", Type: TypeScale, Required: true, Min: intPtr(1), Max: intPtr(10),
					Text:   "How would you rate your overall improvement since starting treatment?",
					Labels: []string{"No improvement", "Significant improvement"}},
				{ID: "2", Type: TypeMultipleChoice, Required: true,
					Text:    "How has your main symptom changed since the last session?",
					Options: []string{"Much better", "Somewhat better", "No change", "Somewhat worse", "Much worse"}},
				{ID: "3", Type: TypeCheckbox,
					Text: "Which areas have shown improvement? (Select all that apply)",
					Options: []string{"Pain level", "Sleep quality", "Energy levels", "Mood", "Mobility",
						"Stress levels", "Appetite", "Overall well-being"}},
				{ID: "4", Type: TypeTextarea,
					Text: "Please describe any changes or new symptoms you have experienced"},
			},
		},
		{
			Key:          strPtr("lifestyle"),
			Title:        "Lifestyle Assessment",
			Description:  "Diet, exercise, and lifestyle habits evaluation",
			Instructions: "This information helps us understand factors that may affect your treatment.",
			Questions: []Question{
				{ID: "1", Type: TypeMultipleChoice, Required: true,
					Text:    "How would you describe your current stress level?",
					Options: []string{"Very low", "Low", "Moderate", "High", "Very high"}},
				{ID: "2", Type: TypeMultipleChoice, Required: true,
					Text: "How many hours of sleep do you typically get per night?",
					Options: []string{"Less than 5 hours", "5-6 hours", "6-7 hours", "7-8 hours",
						"8-9 hours", "More than 9 hours"}},
				{ID: "3", Type: TypeCheckbox,
					Text: "What types of exercise do you regularly do? (Select all that apply)",
					Options: []string{"Walking", "Running/Jogging", "Swimming", "Cycling", "Yoga/Pilates",
						"Weight training", "Sports", "None"}},
				{ID: "4", Type: TypeMultipleChoice, Required: true,
					Text:    "How would you describe your diet?",
					Options: []string{"Very healthy", "Mostly healthy", "Average", "Somewhat unhealthy", "Very unhealthy"}},
			},
		},
		{
			Key:          strPtr("rbmt"),
			Title:        "Rivermead Behavioural Memory Test (RBMT) - Forenkling",
			Description:  "Dette spørgeskema hjælper med at vurdere forskellige aspekter af din hukommelse og kognitive funktioner.",
			Instructions: "Besvar venligst alle spørgsmål så nøjagtigt som muligt baseret på dine oplevelser i de sidste 4 uger.",
			Questions: []Question{
				{ID: "rbmt_1", Type: TypeMultipleChoice, Required: true, Options: frequencyOptions,
					Text: "Hvor ofte glemmer du, hvor du har lagt ting?"},
				{ID: "rbmt_2", Type: TypeMultipleChoice, Required: true, Options: frequencyOptions,
					Text: "Hvor ofte glemmer du navne på personer, du kender godt?"},
				{ID: "rbmt_3", Type: TypeMultipleChoice, Required: true, Options: frequencyOptions,
					Text: "Hvor ofte mister du tråden i en samtale?"},
				{ID: "rbmt_4", Type: TypeTextarea,
					Text: "Beskriv kort eventuelle specifikke hukommelsesproblemer, du har oplevet:"},
			},
		},
		{
			Key:          strPtr("pain-scale"),
			Title:        "Smerteassessmentskala",
			Description:  "Dette spørgeskema hjælper os med at forstå din smerteoplevelse.",
			Instructions: "Besvar venligst spørgsmålene baseret på din smerte i dag og den sidste uge.",
			Questions: []Question{
				{ID: "pain_1", Type: TypeNumber, Required: true, Min: intPtr(0), Max: intPtr(10),
					Text: "På en skala fra 0-10, hvor kraftig er din smerte lige nu? (0 = ingen smerte, 10 = værst tænkelige smerte)"},
				{ID: "pain_2", Type: TypeNumber, Required: true, Min: intPtr(0), Max: intPtr(10),
					Text: "Hvor kraftig har din smerte i gennemsnit været den sidste uge?"},
				{ID: "pain_3", Type: TypeMultipleChoice, Required: true,
					Text:    "Hvor har du primært smerte?",
					Options: []string{"Ryg", "Nakke", "Skulder", "Hofte", "Knæ", "Hoved", "Andet"}},
				{ID: "pain_4", Type: TypeTextarea,
					Text: "Beskriv kort karakteren af din smerte (f.eks. dunk, skarp, brændende):"},
			},
		},
		{
			Key:          strPtr("initial-health"),
			Title:        "Indledende Helbredsvurdering",
			Description:  "Denne vurdering hjælper os med at forstå din generelle sundhedstilstand.",
			Instructions: "Besvar venligst alle spørgsmål så detaljeret som muligt.",
			Questions: []Question{
				{ID: "health_1", Type: TypeMultipleChoice, Required: true,
					Text:    "Hvordan vurderer du dit generelle helbred?",
					Options: []string{"Fremragende", "Meget godt", "Godt", "Nogenlunde", "Dårligt"}},
				{ID: "health_2", Type: TypeTextarea,
					Text: "Har du nogle kroniske sygdomme eller tilstande?"},
				{ID: "health_3", Type: TypeTextarea,
					Text: "Tager du i øjeblikket nogen medicin?"},
				{ID: "health_4", Type: TypeMultipleChoice, Required: true,
					Text:    "Har du tidligere modtaget akupunkturbehandling?",
					Options: []string{"Nej, aldrig", "Ja, en gang", "Ja, få gange", "Ja, mange gange"}},
			},
		},
	}
}
