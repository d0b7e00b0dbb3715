package cnst

const (
	// XLang is both the request header and the gin context key carrying the response language
	XLang = "X-Lang"

	LangTR = "tr"
	LangEN = "en"
)
