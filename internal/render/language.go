// Package render projects a question paper into its two printable views.
package render

import (
	"strconv"
	"strings"
)

// Language selects a label template.
type Language string

const (
	English  Language = "English"
	Hindi    Language = "Hindi"
	Punjabi  Language = "Punjabi"
	Sanskrit Language = "Sanskrit"
)

// Template carries the localized labels of a paper layout.
type Template struct {
	School              string
	Exam                string
	Subject             string
	Class               string
	Session             string
	Time                string
	MaxMarks            string
	GeneralInstructions string
	Section             string
	QuestionPrefix      string
	AnswerKey           string
	DefaultInstructions string
	Letters             [6]string
}

var templates = map[Language]Template{
	English: {
		School:              "SCHOOL NAME",
		Exam:                "EXAMINATION",
		Subject:             "SUBJECT",
		Class:               "CLASS",
		Session:             "SESSION",
		Time:                "TIME",
		MaxMarks:            "MAX. MARKS",
		GeneralInstructions: "General Instructions",
		Section:             "SECTION",
		AnswerKey:           "ANSWER KEY",
		DefaultInstructions: "1. All questions are compulsory.\n2. The question paper consists of sections as indicated.",
		Letters:             [6]string{"A", "B", "C", "D", "E", "F"},
	},
	Hindi: {
		School:              "विद्यालय का नाम",
		Exam:                "परीक्षा",
		Subject:             "विषय",
		Class:               "कक्षा",
		Session:             "सत्र",
		Time:                "समय",
		MaxMarks:            "पूर्णांक",
		GeneralInstructions: "सामान्य निर्देश",
		Section:             "खंड",
		QuestionPrefix:      "प्र.",
		AnswerKey:           "उत्तर कुंजी",
		DefaultInstructions: "1. सभी प्रश्न अनिवार्य हैं।\n2. प्रश्न पत्र में सभी खंडों के उत्तर देना अनिवार्य है।",
		Letters:             [6]string{"अ", "ब", "स", "द", "इ", "फ"},
	},
	Punjabi: {
		School:              "ਸਕੂਲ ਦਾ ਨਾਮ",
		Exam:                "ਪ੍ਰੀਖਿਆ",
		Subject:             "ਵਿਸ਼ਾ",
		Class:               "ਜਮਾਤ",
		Session:             "ਸੈਸ਼ਨ",
		Time:                "ਸਮਾਂ",
		MaxMarks:            "ਕੁੱਲ ਅੰਕ",
		GeneralInstructions: "ਆਮ ਨਿਰਦੇਸ਼",
		Section:             "ਭਾਗ",
		QuestionPrefix:      "ਪ੍ਰ.",
		AnswerKey:           "ਉੱਤਰ ਕੁੰਜੀ",
		DefaultInstructions: "1. ਸਾਰੇ ਪ੍ਰਸ਼ਨ ਲਾਜ਼ਮੀ ਹਨ।\n2. ਪ੍ਰਸ਼ਨ ਪੱਤਰ ਵਿੱਚ ਸਾਰੇ ਭਾਗਾਂ ਦੇ ਉੱਤਰ ਦੇਣਾ ਲਾਜ਼ਮੀ ਹੈ।",
		Letters:             [6]string{"ੳ", "ਅ", "ੲ", "ਸ", "ਹ", "ਕ"},
	},
	Sanskrit: {
		School:              "विद्यालयस्य नाम",
		Exam:                "परीक्षा",
		Subject:             "विषयः",
		Class:               "कक्षा",
		Session:             "सत्रम्",
		Time:                "समयः",
		MaxMarks:            "पूर्णाङ्काः",
		GeneralInstructions: "सामान्यनिर्देशाः",
		Section:             "खण्डः",
		QuestionPrefix:      "प्र.",
		AnswerKey:           "उत्तरकुञ्जिका",
		DefaultInstructions: "1. सर्वे प्रश्नाः अनिवर्याः सन्ति।\n2. प्रश्नपत्रे सर्वेषां खण्डानाम् उत्तराणि दातव्यानि।",
		Letters:             [6]string{"क", "ख", "ग", "घ", "ङ", "च"},
	},
}

// LanguageForSubject picks the template language from the paper subject.
func LanguageForSubject(subject string) Language {
	switch strings.ToLower(strings.TrimSpace(subject)) {
	case "hindi":
		return Hindi
	case "punjabi":
		return Punjabi
	case "sanskrit":
		return Sanskrit
	default:
		return English
	}
}

// TemplateFor returns the label template, falling back to English.
func TemplateFor(lang Language) Template {
	if t, ok := templates[lang]; ok {
		return t
	}
	return templates[English]
}

// MaxSections is the number of sections a paper can carry, one per fallback capital letter.
const MaxSections = 26

// SectionLetter maps a section position to its letter. Positions past the localized alphabet use
// ASCII capitals.
func SectionLetter(lang Language, index int) string {
	t := TemplateFor(lang)
	if index >= 0 && index < len(t.Letters) {
		return t.Letters[index]
	}
	return string(rune('A' + index))
}

// SectionTitle is the default heading for the section at index.
func SectionTitle(lang Language, index int) string {
	return TemplateFor(lang).Section + " " + SectionLetter(lang, index)
}

// OptionLabel is the marker shown before option i.
func OptionLabel(i int) string {
	return "(" + string(rune('a'+i)) + ")"
}

// QuestionLabel renders the display number of a question.
func QuestionLabel(lang Language, customNumber string, n int) string {
	if strings.TrimSpace(customNumber) != "" {
		return customNumber
	}
	t := TemplateFor(lang)
	label := t.QuestionPrefix + strconv.Itoa(n)
	if lang == English {
		label += "."
	}
	return label
}
