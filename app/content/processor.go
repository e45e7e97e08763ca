package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/axillles/BezShuma/app/database"
	"github.com/axillles/BezShuma/app/feed"
)

const (
	// SafeModel is substituted for unsupported or unavailable models.
	SafeModel = "gpt-4o-mini"

	maxPostLength     = 1000
	maxBodyPromptLen  = 500
	languageThreshold = 0.7
	translateAttempts = 2
)

var supportedModels = map[string]bool{
	"gpt-4o-mini": true,
	"gpt-4":       true,
}

var topicEmojis = map[string][]string{
	"tech":     {"💻", "🚀", "🔧", "⚡", "🌐", "📱", "🤖"},
	"news":     {"📰", "📢", "🔥", "⚠️", "💡", "✨", "🎯"},
	"business": {"💼", "📈", "💰", "🏢", "📊", "🤝", "💸"},
}

var markerGlyphRe = regexp.MustCompile(`[📰🔥💡🚀⚡✨🎯💻🤖💼📈💰]`)

// Processor turns a raw feed entry into channel-ready copy. Compose never
// fails from the caller's point of view: generation errors degrade to a
// deterministic local formatter.
type Processor struct {
	generator Generator
	timeout   time.Duration
}

func NewProcessor(generator Generator, timeout time.Duration) *Processor {
	return &Processor{
		generator: generator,
		timeout:   timeout,
	}
}

// Compose produces the styled post text for the entry under the channel
// settings.
func (p *Processor) Compose(ctx context.Context, entry feed.Entry, ch database.Channel) string {
	model := ch.Model
	if !supportedModels[model] {
		model = SafeModel
	}

	system := strings.ReplaceAll(ch.Prompt, "{topic}", ch.Topic)
	if system == "" {
		system = defaultPrompt(ch.Topic)
	}
	user := fmt.Sprintf(
		"Переработай эту новость в пост для Телеграм (до 900 симв.): Title: %s. Content: %s",
		entry.Title, truncateRunes(entry.Body, maxBodyPromptLen))

	raw, err := p.generate(ctx, model, system, user)
	if errors.Is(err, ErrModelUnavailable) && model != SafeModel {
		raw, err = p.generate(ctx, SafeModel, system, user)
	}
	if err != nil {
		slog.Warn("Generation failed, using fallback formatter", "model", model, "error", err)
		return sanitizeHTML(p.fallbackFormat(entry, ch.Topic))
	}

	finalized := finalize(raw, ch.Topic)
	finalized = p.ensureLanguage(ctx, finalized)

	return sanitizeHTML(finalized)
}

func (p *Processor) generate(ctx context.Context, model, system, user string) (string, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	return p.generator.Generate(timeoutCtx, model, system, user)
}

// fallbackFormat reshapes the raw entry without external calls: the first
// topical emoji, the title as an emphasized heading and up to four
// sentences of the body.
func (p *Processor) fallbackFormat(entry feed.Entry, topic string) string {
	body := truncateRunes(strings.ReplaceAll(entry.Body, "\n\n", "\n"), 600)

	sentences := strings.SplitAfter(body, ". ")
	if len(sentences) > 4 {
		sentences = sentences[:4]
	}
	body = strings.TrimSpace(strings.Join(sentences, ""))
	if body != "" && !strings.HasSuffix(body, ".") {
		body += "."
	}

	title := strings.Trim(entry.Title, ` "'`)
	emoji := emojisFor(topic)[0]

	return truncateRunes(fmt.Sprintf("<b>%s %s</b>\n\n%s", emoji, title, body), maxPostLength)
}

// finalize applies the fixed post-processing: emphasized heading, hashtag
// removal, a topical marker glyph and the length cap.
func finalize(raw, topic string) string {
	txt := strings.TrimSpace(raw)
	if strings.Contains(txt, "**") || strings.Contains(txt, "__") || strings.Contains(txt, "`") {
		txt = mdToHTML(txt)
	}

	lines := strings.Split(txt, "\n")

	if len(lines) > 0 && !strings.Contains(lines[0], "<b>") {
		first := strings.Trim(lines[0], ` "'`)
		lines[0] = "<b>" + first + "</b>"
	}

	cleaned := make([]string, 0, len(lines))
	for _, line := range lines {
		line = stripHashtags(line)
		if line != "" {
			cleaned = append(cleaned, line)
		}
	}
	txt = strings.Join(cleaned, "\n")

	if !markerGlyphRe.MatchString(txt) {
		txt = emojisFor(topic)[0] + " " + txt
	}

	return truncateRunes(txt, maxPostLength)
}

var (
	inlineTagRe   = regexp.MustCompile(`(^|\s)#([\p{L}\p{N}_]+)`)
	residualTagRe = regexp.MustCompile(`#\S+`)
	multiSpaceRe  = regexp.MustCompile(`\s{2,}`)
)

// stripHashtags drops heading/hashtag lines, lines that are mostly tags,
// and unwraps tags embedded in sentences. Returns "" when the whole line
// should go.
func stripHashtags(line string) string {
	stripped := strings.TrimSpace(line)
	if stripped == "" {
		return ""
	}
	if strings.HasPrefix(stripped, "#") {
		return ""
	}

	tokens := strings.Fields(stripped)
	tagged := 0
	for _, tok := range tokens {
		if strings.HasPrefix(tok, "#") {
			tagged++
		}
	}
	if len(tokens) > 0 && tagged >= max(1, len(tokens)*6/10) {
		return ""
	}

	line = inlineTagRe.ReplaceAllString(line, "$1$2")
	line = residualTagRe.ReplaceAllString(line, "")
	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(line, " "))
}

// ensureLanguage re-requests translation up to two times when the text does
// not look Russian enough, accepting the last attempt regardless of outcome.
func (p *Processor) ensureLanguage(ctx context.Context, text string) string {
	if cyrillicRatio(text) >= languageThreshold {
		return text
	}

	current := text
	for i := 0; i < translateAttempts; i++ {
		translated, err := p.translate(ctx, current)
		if err != nil {
			slog.Warn("Translation attempt failed", "attempt", i+1, "error", err)
			continue
		}
		current = translated
		if cyrillicRatio(current) >= languageThreshold {
			break
		}
	}

	return current
}

func (p *Processor) translate(ctx context.Context, text string) (string, error) {
	prompt := "Переведи текст на литературный русский. Сохрани смысл, имена собственные и форматирование HTML. " +
		"Отвечай ТОЛЬКО переведенным русским текстом без добавлений, без хештегов.\n\n" + text

	return p.generate(ctx, SafeModel, "", prompt)
}

func emojisFor(topic string) []string {
	t := strings.ToLower(topic)
	for _, w := range []string{"it", "tech", "технолог", "программ", "код"} {
		if strings.Contains(t, w) {
			return topicEmojis["tech"]
		}
	}
	for _, w := range []string{"бизнес", "финанс", "экономик", "маркет"} {
		if strings.Contains(t, w) {
			return topicEmojis["business"]
		}
	}
	return topicEmojis["news"]
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}

func defaultPrompt(topic string) string {
	if topic == "" {
		topic = "новости"
	}
	return fmt.Sprintf(
		"Ты — профессиональный редактор русскоязычного телеграм-канала на тему \"%s\". "+
			"Задача: переведи и адаптируй новость НА РУССКИЙ ЯЗЫК. Всегда отвечай ТОЛЬКО по-русски.\n\n"+
			"Правила:\n"+
			"1. Пиши по-русски, сохраняй смысл.\n"+
			"2. Не переводить названия компаний/продуктов (Apple и т.п.).\n"+
			"3. Формат: жирный заголовок без кавычек + 2–3 абзаца, ≤900 символов. "+
			"Один из абзацев (самый важный) оформи как цитату, используя теги <i> и </i>.\n"+
			"4. Стиль: без воды.\n"+
			"5. НЕ используй хештеги вообще. Не добавляй их ни в конце, ни в тексте.",
		topic)
}
