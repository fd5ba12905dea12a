// Package langmeta provides a shared language metadata registry used for
// output-path suffixes, provider prompts, and CLI display.
package langmeta

import "strings"

// Meta describes language display metadata. English is the name models
// respond to best in prompts; Native is for terminal display.
type Meta struct {
	English string
	Native  string
}

// Registry contains canonical language metadata.
// Locale variants are resolved in Resolve() via normalization and base fallback.
var Registry = map[string]Meta{
	"af":    {English: "Afrikaans", Native: "Afrikaans"},
	"ar":    {English: "Arabic", Native: "العربية"},
	"az":    {English: "Azerbaijani", Native: "Azərbaycanca"},
	"be":    {English: "Belarusian", Native: "Беларуская"},
	"bg":    {English: "Bulgarian", Native: "Български"},
	"bn":    {English: "Bengali", Native: "বাংলা"},
	"bs":    {English: "Bosnian", Native: "Bosanski"},
	"ca":    {English: "Catalan", Native: "Català"},
	"cs":    {English: "Czech", Native: "Čeština"},
	"cy":    {English: "Welsh", Native: "Cymraeg"},
	"da":    {English: "Danish", Native: "Dansk"},
	"de":    {English: "German", Native: "Deutsch"},
	"de-AT": {English: "German (Austria)", Native: "Deutsch (Österreich)"},
	"de-CH": {English: "German (Switzerland)", Native: "Deutsch (Schweiz)"},
	"el":    {English: "Greek", Native: "Ελληνικά"},
	"en":    {English: "English", Native: "English"},
	"en-GB": {English: "English (UK)", Native: "English (UK)"},
	"en-US": {English: "English (US)", Native: "English (US)"},
	"es":    {English: "Spanish", Native: "Español"},
	"es-AR": {English: "Spanish (Argentina)", Native: "Español (Argentina)"},
	"es-MX": {English: "Spanish (Mexico)", Native: "Español (México)"},
	"et":    {English: "Estonian", Native: "Eesti"},
	"eu":    {English: "Basque", Native: "Euskara"},
	"fa":    {English: "Persian", Native: "فارسی"},
	"fi":    {English: "Finnish", Native: "Suomi"},
	"fr":    {English: "French", Native: "Français"},
	"fr-CA": {English: "French (Canada)", Native: "Français (Canada)"},
	"ga":    {English: "Irish", Native: "Gaeilge"},
	"gl":    {English: "Galician", Native: "Galego"},
	"he":    {English: "Hebrew", Native: "עברית"},
	"hi":    {English: "Hindi", Native: "हिन्दी"},
	"hr":    {English: "Croatian", Native: "Hrvatski"},
	"hu":    {English: "Hungarian", Native: "Magyar"},
	"hy":    {English: "Armenian", Native: "Հայերեն"},
	"id":    {English: "Indonesian", Native: "Bahasa Indonesia"},
	"is":    {English: "Icelandic", Native: "Íslenska"},
	"it":    {English: "Italian", Native: "Italiano"},
	"ja":    {English: "Japanese", Native: "日本語"},
	"ka":    {English: "Georgian", Native: "ქართული"},
	"kk":    {English: "Kazakh", Native: "Қазақ тілі"},
	"ko":    {English: "Korean", Native: "한국어"},
	"lt":    {English: "Lithuanian", Native: "Lietuvių"},
	"lv":    {English: "Latvian", Native: "Latviešu"},
	"mk":    {English: "Macedonian", Native: "Македонски"},
	"mn":    {English: "Mongolian", Native: "Монгол"},
	"ms":    {English: "Malay", Native: "Bahasa Melayu"},
	"mt":    {English: "Maltese", Native: "Malti"},
	"nb":    {English: "Norwegian Bokmål", Native: "Norsk bokmål"},
	"ne":    {English: "Nepali", Native: "नेपाली"},
	"nl":    {English: "Dutch", Native: "Nederlands"},
	"nn":    {English: "Norwegian Nynorsk", Native: "Norsk nynorsk"},
	"no":    {English: "Norwegian", Native: "Norsk"},
	"pl":    {English: "Polish", Native: "Polski"},
	"pt":    {English: "Portuguese", Native: "Português"},
	"pt-BR": {English: "Portuguese (Brazil)", Native: "Português (Brasil)"},
	"pt-PT": {English: "Portuguese (Portugal)", Native: "Português (Portugal)"},
	"ro":    {English: "Romanian", Native: "Română"},
	"ru":    {English: "Russian", Native: "Русский"},
	"sk":    {English: "Slovak", Native: "Slovenčina"},
	"sl":    {English: "Slovenian", Native: "Slovenščina"},
	"sq":    {English: "Albanian", Native: "Shqip"},
	"sr":    {English: "Serbian", Native: "Српски"},
	"sv":    {English: "Swedish", Native: "Svenska"},
	"sw":    {English: "Swahili", Native: "Kiswahili"},
	"ta":    {English: "Tamil", Native: "தமிழ்"},
	"te":    {English: "Telugu", Native: "తెలుగు"},
	"th":    {English: "Thai", Native: "ไทย"},
	"tr":    {English: "Turkish", Native: "Türkçe"},
	"uk":    {English: "Ukrainian", Native: "Українська"},
	"ur":    {English: "Urdu", Native: "اردو"},
	"uz":    {English: "Uzbek", Native: "O'zbek"},
	"vi":    {English: "Vietnamese", Native: "Tiếng Việt"},
	"zh":    {English: "Chinese", Native: "中文"},
	"zh-CN": {English: "Chinese (Simplified)", Native: "简体中文"},
	"zh-TW": {English: "Chinese (Traditional)", Native: "繁體中文"},
}

func canonicalize(lang string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	if normalized == "" {
		return ""
	}
	parts := strings.Split(normalized, "-")
	parts[0] = strings.ToLower(parts[0])
	if len(parts) >= 2 {
		parts[1] = strings.ToUpper(parts[1])
	}
	return strings.Join(parts, "-")
}

// Resolve returns best-effort language metadata for language codes,
// supporting variants like pt_BR, pt-BR, and locale fallbacks.
func Resolve(lang string) Meta {
	if m, ok := Registry[lang]; ok {
		return m
	}
	normalized := canonicalize(lang)
	if m, ok := Registry[normalized]; ok {
		return m
	}
	if parts := strings.SplitN(normalized, "-", 2); len(parts) == 2 {
		if m, ok := Registry[parts[0]]; ok {
			return m
		}
	}
	return Meta{English: lang, Native: lang}
}

// Known reports whether lang resolves to a registered language.
func Known(lang string) bool {
	if _, ok := Registry[lang]; ok {
		return true
	}
	normalized := canonicalize(lang)
	if _, ok := Registry[normalized]; ok {
		return true
	}
	if parts := strings.SplitN(normalized, "-", 2); len(parts) == 2 {
		_, ok := Registry[parts[0]]
		return ok
	}
	return false
}

// Suffix returns the normalized code used in derived output file names.
func Suffix(lang string) string {
	return canonicalize(lang)
}
