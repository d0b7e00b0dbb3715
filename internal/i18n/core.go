package i18n

import (
	"embed"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/vitrinhq/vitrin/internal/common/cnst"

	"github.com/BurntSushi/toml"
	"github.com/gin-gonic/gin"
	"github.com/nicksnyder/go-i18n/v2/i18n"
	"golang.org/x/text/language"
)

//go:embed translations/*.toml
var embedded embed.FS

var (
	translatorMu sync.RWMutex
	translator   *I18n
)

// InitTranslator replaces the global translator. Files in overrideDir, if
// given, are loaded on top of the embedded bundles.
func InitTranslator(defaultLang, overrideDir string) error {
	t, err := NewI18n(defaultLang)
	if err != nil {
		return err
	}
	if overrideDir != "" {
		if err := t.LoadTranslations(overrideDir); err != nil {
			return err
		}
	}
	translatorMu.Lock()
	translator = t
	translatorMu.Unlock()
	return nil
}

// GetTranslator returns the global translator, creating a Turkish one on first use
func GetTranslator() *I18n {
	translatorMu.RLock()
	t := translator
	translatorMu.RUnlock()
	if t != nil {
		return t
	}

	translatorMu.Lock()
	defer translatorMu.Unlock()
	if translator == nil {
		// the embedded bundles are known to parse
		translator, _ = NewI18n(cnst.LangTR)
	}
	return translator
}

// I18n manages internationalization and translations
type I18n struct {
	bundle      *i18n.Bundle
	defaultLang language.Tag
	matcher     language.Matcher
}

// NewI18n creates a translator with the embedded bundles loaded
func NewI18n(defaultLang string) (*I18n, error) {
	tag, err := language.Parse(defaultLang)
	if err != nil {
		return nil, fmt.Errorf("invalid default language %q: %w", defaultLang, err)
	}
	bundle := i18n.NewBundle(tag)
	bundle.RegisterUnmarshalFunc("toml", toml.Unmarshal)

	files, err := embedded.ReadDir("translations")
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		p := path.Join("translations", f.Name())
		data, err := embedded.ReadFile(p)
		if err != nil {
			return nil, err
		}
		if _, err := bundle.ParseMessageFileBytes(data, p); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", p, err)
		}
	}

	i := &I18n{bundle: bundle, defaultLang: tag}
	i.rebuildMatcher()
	return i, nil
}

// LoadTranslations loads translation files from the specified directory
func (i *I18n) LoadTranslations(translationsDir string) error {
	files, err := os.ReadDir(translationsDir)
	if err != nil {
		return fmt.Errorf("failed to read translations directory: %w", err)
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(file.Name(), ".toml") {
			continue
		}
		if _, err := i.bundle.LoadMessageFile(filepath.Join(translationsDir, file.Name())); err != nil {
			return fmt.Errorf("failed to load %s: %w", file.Name(), err)
		}
	}
	i.rebuildMatcher()
	return nil
}

func (i *I18n) rebuildMatcher() {
	tags := []language.Tag{i.defaultLang}
	for _, t := range i.bundle.LanguageTags() {
		if t != i.defaultLang {
			tags = append(tags, t)
		}
	}
	i.matcher = language.NewMatcher(tags)
}

// DefaultLanguage returns the base language used when nothing else matches
func (i *I18n) DefaultLanguage() string {
	base, _ := i.defaultLang.Base()
	return base.String()
}

// Match picks the best supported language for an Accept-Language style value
func (i *I18n) Match(accept string) string {
	tags, _, err := language.ParseAcceptLanguage(accept)
	if err != nil || len(tags) == 0 {
		return i.DefaultLanguage()
	}
	tag, _, _ := i.matcher.Match(tags...)
	base, _ := tag.Base()
	return base.String()
}

// Translate returns a localized string for the given message ID and language
func (i *I18n) Translate(msgID string, lang string, templateData map[string]any) string {
	localizer := i18n.NewLocalizer(i.bundle, lang, i.defaultLang.String())

	lc := &i18n.LocalizeConfig{MessageID: msgID}
	if len(templateData) > 0 {
		lc.TemplateData = templateData
	}

	msg, err := localizer.Localize(lc)
	if err != nil {
		return msgID // Return original message ID if translation fails
	}
	return msg
}

// LanguageFromRequest reads X-Lang first, then Accept-Language
func (i *I18n) LanguageFromRequest(r *http.Request) string {
	if lang := r.Header.Get(cnst.XLang); lang != "" {
		return i.Match(lang)
	}
	if accept := r.Header.Get("Accept-Language"); accept != "" {
		return i.Match(accept)
	}
	return i.DefaultLanguage()
}

// Middleware stores the negotiated language in the gin context
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(cnst.XLang, GetTranslator().LanguageFromRequest(c.Request))
		c.Next()
	}
}

func contextLang(c *gin.Context) string {
	if lang := c.GetString(cnst.XLang); lang != "" {
		return lang
	}
	return GetTranslator().DefaultLanguage()
}

// TranslateMessage translates a message ID using the context's language preference
func TranslateMessage(c *gin.Context, msgID string, data map[string]any) string {
	return GetTranslator().Translate(msgID, contextLang(c), data)
}
