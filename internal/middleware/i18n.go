// internal/middleware/i18n.go
package middleware

import (
	"github.com/gin-gonic/gin"
	"golang.org/x/text/language"
)

// Catalogs shipped in internal/i18n/locales, default first.
var supportedLanguages = []struct {
	tag  language.Tag
	code string
}{
	{language.English, "en"},
	{language.TraditionalChinese, "zh_TW"},
}

var languageMatcher = func() language.Matcher {
	tags := make([]language.Tag, len(supportedLanguages))
	for i, l := range supportedLanguages {
		tags[i] = l.tag
	}
	return language.NewMatcher(tags)
}()

func I18nMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("lang", negotiateLanguage(c.GetHeader("Accept-Language")))
		c.Next()
	}
}

// negotiateLanguage picks the best catalog for an Accept-Language header
// such as "zh-TW,zh;q=0.9,en;q=0.8".
func negotiateLanguage(header string) string {
	if header == "" {
		return supportedLanguages[0].code
	}
	preferred, _, err := language.ParseAcceptLanguage(header)
	if err != nil || len(preferred) == 0 {
		return supportedLanguages[0].code
	}

	_, index, confidence := languageMatcher.Match(preferred...)
	if confidence == language.No {
		return supportedLanguages[0].code
	}
	return supportedLanguages[index].code
}
