package render

import (
	"strings"
	"unicode/utf8"

	"github.com/kapilsaini46/rks/internal/models"
)

type metaDefaults struct {
	Title    string
	School   string
	Duration string
}

var localizedDefaults = map[Language]metaDefaults{
	English:  {Title: "Half Yearly Examination", School: "Kendriya Vidyalaya", Duration: "3 Hours"},
	Hindi:    {Title: "अर्धवार्षिक परीक्षा", School: "केन्द्रीय विद्यालय", Duration: "3 घंटे"},
	Punjabi:  {Title: "ਅਰਧ ਸਾਲਾਨਾ ਪ੍ਰੀਖਿਆ", School: "ਕੇਂਦਰੀ ਵਿਦਿਆਲਯ", Duration: "3 ਘੰਟੇ"},
	Sanskrit: {Title: "अर्धवार्षिकपरीक्षा", School: "केन्द्रीयविद्यालयः", Duration: "३ होराः"},
}

var classNames = map[Language]map[string]string{
	Hindi: {
		"VI": "छठी", "VII": "सातवीं", "VIII": "आठवीं", "IX": "नौवीं", "X": "दसवीं", "XI": "ग्यारहवीं", "XII": "बारहवीं",
	},
	Punjabi: {
		"VI": "ਛੇਵੀਂ", "VII": "ਸੱਤਵੀਂ", "VIII": "ਅੱਠਵੀਂ", "IX": "ਨੌਵੀਂ", "X": "ਦਸਵੀਂ", "XI": "ਗਿਆਰਵੀਂ", "XII": "ਬਾਰ੍ਹਵੀਂ",
	},
	Sanskrit: {
		"VI": "षष्ठी", "VII": "सप्तमी", "VIII": "अष्टमी", "IX": "नवमी", "X": "दशमी", "XI": "एकादशी", "XII": "द्वादशी",
	},
}

var subjectNames = map[Language]map[string]string{
	Hindi:    {"Hindi": "हिन्दी", "Punjabi": "पंजाबी", "Sanskrit": "संस्कृत"},
	Punjabi:  {"Hindi": "ਹਿੰਦੀ", "Punjabi": "ਪੰਜਾਬੀ", "Sanskrit": "ਸੰਸਕ੍ਰਿਤ"},
	Sanskrit: {"Hindi": "हिन्दी", "Punjabi": "पंजाबी", "Sanskrit": "संस्कृतम्"},
}

// ClassDisplay returns the localized class label, or the label itself when no translation exists.
func ClassDisplay(lang Language, class string) string {
	if name, ok := classNames[lang][class]; ok {
		return name
	}
	return class
}

// SubjectDisplay returns the localized subject label.
func SubjectDisplay(lang Language, subject string) string {
	for key, name := range subjectNames[lang] {
		if strings.EqualFold(key, strings.TrimSpace(subject)) {
			return name
		}
	}
	return subject
}

// IsDefaultTitle reports whether title was generated rather than typed by a user.
func IsDefaultTitle(title string) bool {
	for _, d := range localizedDefaults {
		if title == d.Title {
			return true
		}
	}
	lower := strings.ToLower(title)
	return strings.Contains(lower, "exam") || strings.Contains(lower, "test") || strings.Contains(title, "परीक्षा")
}

// IsDefaultSchool reports whether the school name is a stock value.
func IsDefaultSchool(name string) bool {
	for _, d := range localizedDefaults {
		if name == d.School {
			return true
		}
	}
	lower := strings.ToLower(name)
	return strings.Contains(lower, "school") || strings.Contains(lower, "vidyalaya")
}

func isDefaultDuration(d string) bool {
	for _, def := range localizedDefaults {
		if d == def.Duration {
			return true
		}
	}
	return false
}

func isDefaultInstructions(text string) bool {
	for _, t := range templates {
		if text == t.DefaultInstructions {
			return true
		}
	}
	return false
}

// LocalizeMeta swaps stock header values for the defaults of lang and leaves user-entered values alone.
func LocalizeMeta(meta models.PaperMeta, lang Language) models.PaperMeta {
	d := localizedDefaults[LanguageOrEnglish(lang)]
	if meta.Title == "" || IsDefaultTitle(meta.Title) {
		meta.Title = d.Title
	}
	if meta.SchoolName == "" || IsDefaultSchool(meta.SchoolName) {
		meta.SchoolName = d.School
	}
	if meta.Duration == "" || isDefaultDuration(meta.Duration) {
		meta.Duration = d.Duration
	}
	if strings.TrimSpace(meta.GeneralInstructions) == "" || isDefaultInstructions(meta.GeneralInstructions) {
		meta.GeneralInstructions = TemplateFor(lang).DefaultInstructions
	}
	return meta
}

// LanguageOrEnglish normalises unknown languages to English.
func LanguageOrEnglish(lang Language) Language {
	if _, ok := templates[lang]; ok {
		return lang
	}
	return English
}

// IsTemplatedSectionTitle reports whether title is a generated "<section word> <letter>" heading in any
// supported language.
func IsTemplatedSectionTitle(title string) bool {
	word, letter, ok := strings.Cut(strings.TrimSpace(title), " ")
	if !ok {
		return false
	}
	letter = strings.TrimSpace(letter)
	known := false
	for _, t := range templates {
		if word == t.Section {
			known = true
			break
		}
	}
	if !known {
		return false
	}
	if r, size := utf8.DecodeRuneInString(letter); letter != "" && size == len(letter) && r >= 'A' {
		return true
	}
	for _, t := range templates {
		for _, l := range t.Letters {
			if l == letter {
				return true
			}
		}
	}
	return false
}

// RetemplateSections rewrites generated section headings for lang by position. Custom headings are
// kept.
func RetemplateSections(sections []models.Section, lang Language) []models.Section {
	out := make([]models.Section, len(sections))
	copy(out, sections)
	for i := range out {
		if IsTemplatedSectionTitle(out[i].Title) {
			out[i].Title = SectionTitle(lang, i)
		}
	}
	return out
}
