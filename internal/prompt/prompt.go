package prompt

import (
	"fmt"
	"strings"

	"github.com/sizam/nti-agent/backend/internal/models"
)

// TableHeaders is the column contract the model is instructed to follow.
var TableHeaders = []string{
	"№",
	"Тип документа",
	"Источник",
	"Дата публикации (ДД.ММ.ГГГГ)",
	"Название (оригинал)",
	"Название (русский перевод)",
	"Аннотация (оригинал)",
	"Аннотация (русский перевод)",
	"Страна",
	"Язык",
	"Индекс цитируемости / метрики",
	"Совпавшие ключевые слова",
	"Релевантность",
	"Ссылка (URL)",
	"DOI / Номер патента",
	"Примечания",
}

const systemPrompt = `Ты — агент по поиску научно-технической информации через веб-поиск.
Главный приоритет — релевантность, затем свежесть.
Если все наиболее релевантные документы из одного источника — верни их так, не разбавляя.
Формат ответа — одна таблица Markdown:

%s

Ссылку бери из результатов веб-поиска, не выдумывай /document/1234567.
Если ссылка в поиске отсутствует — такой документ не включай.`

const discoverySystemPrompt = `Ты помогаешь выбрать лучшие источники (домены) для поиска НТИ. Верни 5-7 доменов, по одному в строку. Без комментариев.`

// SystemPrompt returns the fixed instruction describing the table the model
// must produce.
func SystemPrompt() string {
	header := "| " + strings.Join(TableHeaders, " | ") + " |"
	sep := "|" + strings.Repeat("---|", len(TableHeaders))
	return fmt.Sprintf(systemPrompt, header+"\n"+sep)
}

// DiscoverySystemPrompt returns the instruction for the domain-discovery call.
func DiscoverySystemPrompt() string {
	return discoverySystemPrompt
}

// DiscoveryPrompt renders the user message for the domain-discovery call.
func DiscoveryPrompt(req models.SearchRequest) string {
	return fmt.Sprintf("Тема: %s. Ключевые слова: %s. Период: %s.",
		req.Topic, req.Keywords, FormatPeriod(req.PeriodFrom, req.PeriodTo))
}

// ContextBlock renders the per-request parameters as a fixed-order block of
// labeled lines appended to the system prompt.
func ContextBlock(req models.SearchRequest) string {
	lines := []string{
		"Тема запроса: " + orDefault(req.Topic, "не указана"),
		"Ключевые слова: " + orDefault(req.Keywords, "не указаны"),
		"Период: " + FormatPeriod(req.PeriodFrom, req.PeriodTo),
		"Типы документов: " + joinOrDefault(req.DocTypes, "статьи, обзоры, патенты, конференции"),
		"Языки: " + joinOrDefault(req.Languages, "английский, при наличии — русский"),
		"Нужен перевод на русский: " + yesNo(req.RuNeeded()),
		"Нужны метрики и релевантность: " + yesNo(req.MetricsNeeded()),
	}
	return strings.Join(lines, "\n")
}

// SearchInstruction is the final line of the user message: restrict the search
// to the allow-list when one exists, and always demand a single table.
func SearchInstruction(domains []string) string {
	if len(domains) == 0 {
		return "Выведи таблицу."
	}
	return fmt.Sprintf("Используй для поиска преимущественно эти домены: %s. Выведи таблицу.",
		strings.Join(domains, ", "))
}

// FormatPeriod renders the date range as a human-readable phrase.
func FormatPeriod(from, to string) string {
	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	switch {
	case from != "" && to != "":
		return from + " — " + to
	case from != "":
		return "с " + from
	case to != "":
		return "до " + to
	default:
		return "не указан"
	}
}

func orDefault(v, fallback string) string {
	if strings.TrimSpace(v) == "" {
		return fallback
	}
	return v
}

func joinOrDefault(list []string, fallback string) string {
	if len(list) == 0 {
		return fallback
	}
	return strings.Join(list, ", ")
}

func yesNo(v bool) string {
	if v {
		return "да"
	}
	return "нет"
}
