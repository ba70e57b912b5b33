package utils

// Minimal server-side i18n for fixed keys.

var translations = map[string]map[string]string{
	"en": {
		"health.ok":                 "ok",
		"category.none":             "No category",
		"category.none.description": "No cat desc",
		"survey.locked":             "You already answered this survey and answers cannot be edited.",
		"survey.saved":              "Thank you, your answers were saved.",
		"form.invalid":              "Some answers are not valid.",
	},
	"zh": {
		"health.ok":                 "好的",
		"category.none":             "未分类",
		"category.none.description": "未分类的问题",
		"survey.locked":             "您已完成此问卷，答案无法再修改。",
		"survey.saved":              "谢谢，您的回答已保存。",
		"form.invalid":              "部分回答无效。",
	},
}

// T returns the translated string for key in locale; falls back to English.
func T(locale, key string) string {
	if m, ok := translations[locale]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	if m, ok := translations["en"]; ok {
		if v, ok := m[key]; ok {
			return v
		}
	}
	return key
}
