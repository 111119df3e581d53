package relay

import (
	"errors"
	"strings"
)

// Supported conversation languages.
const (
	LangRU = "ru"
	LangEN = "en"
	LangUK = "uk"
)

// fallbackLang is used when a text is needed but the user never picked a language.
const fallbackLang = LangEN

// ErrUnknownLanguage is returned for language codes outside the supported set.
var ErrUnknownLanguage = errors.New("relay: unknown language")

// Language describes one entry of the language picker.
type Language struct {
	Code   string
	Button string
}

var languages = []Language{
	{Code: LangRU, Button: "Русский 🇷🇺"},
	{Code: LangEN, Button: "English 🇬🇧"},
	{Code: LangUK, Button: "Українська 🇺🇦"},
}

// Languages returns the picker entries in display order.
func Languages() []Language {
	return append([]Language(nil), languages...)
}

// ParseLanguage validates a language code.
func ParseLanguage(code string) (string, error) {
	code = strings.ToLower(strings.TrimSpace(code))
	for _, l := range languages {
		if l.Code == code {
			return code, nil
		}
	}
	return "", ErrUnknownLanguage
}

// Category is a menu entry. ID is short ASCII and travels in callback data.
type Category struct {
	ID     string
	labels map[string]string
}

// Label returns the label for lang, or the ID when no label exists.
func (c Category) Label(lang string) string {
	if l, ok := c.labels[lang]; ok {
		return l
	}
	return c.ID
}

var categories = []Category{
	{ID: "idea", labels: map[string]string{
		LangRU: "💡 Есть идея",
		LangEN: "💡 I have an idea",
		LangUK: "💡 Є ідея",
	}},
	{ID: "volunteer", labels: map[string]string{
		LangRU: "🤝 Служение и волонтёрство",
		LangEN: "🤝 Ministry & volunteering",
		LangUK: "🤝 Служіння та волонтерство",
	}},
	{ID: "visit", labels: map[string]string{
		LangRU: "🏠 Нуждаюсь в посещении",
		LangEN: "🏠 I need a visit",
		LangUK: "🏠 Потребую відвідування",
	}},
	{ID: "prayer", labels: map[string]string{
		LangRU: "🙏 Личная молитва и поддержка",
		LangEN: "🙏 Personal prayer & support",
		LangUK: "🙏 Особиста молитва та підтримка",
	}},
	{ID: "pastor", labels: map[string]string{
		LangRU: "📖 Встреча с пастором",
		LangEN: "📖 Meet the pastor",
		LangUK: "📖 Зустріч з пастором",
	}},
}

// Categories returns the menu entries in display order.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

// LookupCategory finds a category by ID.
func LookupCategory(id string) (Category, bool) {
	for _, c := range categories {
		if c.ID == id {
			return c, true
		}
	}
	return Category{}, false
}

// CategoryByLabel matches text typed by the user against the labels of lang.
func CategoryByLabel(lang, text string) (Category, bool) {
	if lang == "" || text == "" {
		return Category{}, false
	}
	for _, c := range categories {
		if l, ok := c.labels[lang]; ok && l == text {
			return c, true
		}
	}
	return Category{}, false
}

type texts struct {
	prompt     string
	changeLang string
	finish     string
	ack        string
	goodbye    string

	headerTitle    string
	headerUser     string
	headerUsername string
	headerLang     string
	headerCategory string
	headerChat     string
	headerRef      string
}

var catalog = map[string]texts{
	LangRU: {
		prompt:         "Выберите категорию:",
		changeLang:     "🌐 Сменить язык",
		finish:         "🔚 Завершить работу",
		ack:            "✅ Спасибо! Мы свяжемся с вами.",
		goodbye:        "✅ Спасибо за общение! Чтобы вернуться, нажмите /start",
		headerTitle:    "📨 Новое обращение",
		headerUser:     "Пользователь",
		headerUsername: "Username",
		headerLang:     "Язык",
		headerCategory: "Категория",
		headerChat:     "Из чата",
		headerRef:      "Ref",
	},
	LangEN: {
		prompt:         "Choose a category:",
		changeLang:     "🌐 Change language",
		finish:         "🔚 Finish",
		ack:            "✅ Thank you! We will get back to you.",
		goodbye:        "✅ Thank you for chatting! To return, just type /start",
		headerTitle:    "📨 New request",
		headerUser:     "User",
		headerUsername: "Username",
		headerLang:     "Language",
		headerCategory: "Category",
		headerChat:     "From chat",
		headerRef:      "Ref",
	},
	LangUK: {
		prompt:         "Оберіть категорію:",
		changeLang:     "🌐 Змінити мову",
		finish:         "🔚 Завершити",
		ack:            "✅ Дякуємо! Ми зв'яжемося з вами.",
		goodbye:        "✅ Дякуємо за спілкування! Щоб повернутися, натисніть /start",
		headerTitle:    "📨 Нове звернення",
		headerUser:     "Користувач",
		headerUsername: "Username",
		headerLang:     "Мова",
		headerCategory: "Категорія",
		headerChat:     "З чату",
		headerRef:      "Ref",
	},
}

func textsFor(lang string) texts {
	if t, ok := catalog[lang]; ok {
		return t
	}
	return catalog[fallbackLang]
}

const greetingHTML = "<b>Привет!</b> Пастор Александр Ханчевский рад с тобой пообщаться.\n" +
	"Выбери удобный для тебя язык общения из меню ниже.\n\n" +
	"<b>Hello!</b> Pastor Aleksandr Khanchevskii is glad to chat with you.\n" +
	"Please choose the language you prefer.\n\n" +
	"<b>Вітаю!</b> Пастор Олександр Ханчевський радий поспілкуватися.\n" +
	"Оберіть зручну для вас мову спілкування нижче."

const languagePrompt = "Choose language / Выберите язык / Оберіть мову:"
