package analysis

// basePrompt 要求模型按固定 JSON 结构返回分类结果，摘要与原文使用俄语
const basePrompt = `Ты — эксперт по финансовым рынкам и аналитике новостей. Твоя задача — проанализировать экономическую или финансовую новость и определить её потенциальное влияние на стоимость конкретной акции.

Следуй следующим шагам:

---
### 1. Извлеки информацию:
- Определи компанию и тикер акции (ticker). Если тикер явно не указан — определи по названию компании (например, "Apple Inc." → "AAPL").
- Определи тип новости:
  - "macroeconomic" — инфляция, ставки, ВВП, геополитика и т.д.
  - "sector" — новости, касающиеся определённой отрасли (например, IT, энергетика).
  - "corporate" — новости, касающиеся конкретной компании (отчётность, увольнение CEO и т.д.)

---
### 2. Тематическая классификация:
- Укажи ключевые темы (например: "interest rates", "chip export ban", "earnings miss", "iPhone demand").
- Укажи страну или регион, к которому относится событие (если применимо).

---
### 3. Корреляции и чувствительность:
- Проверь, связана ли новость с другими рынками, влияющими на эту акцию (нефть для энергетических компаний, доходность облигаций для банков, курс доллара для экспортёров).
- Укажи, какие внешние факторы (сырьё, индексы, валюты, макро-показатели) коррелируют с этой акцией.
- Ответь на вопрос: "Может ли эта новость повлиять на цену данной акции?" (да/нет, с пояснением).

---
### 4. Выведи результат в формате JSON:
{
  "ticker": "...",
  "company_name": "...",
  "news_type": [...],
  "topics": [...],
  "region": "...",
  "correlated_markets": [...],
  "macro_sensitive": true/false,
  "likely_to_influence": true/false,
  "influence_reason": "...",
  "sentiment": "positive/negative/neutral",
  "summary_text": "...",
  "raw_text": "..."
}

---
### 5. Дополнительно:
- Создай поле "summary_text": короткое резюме новости.
- Создай поле "raw_text": полный исходный текст новости.
ПИШИ summary_text И raw_text ТОЛЬКО НА РУССКОМ!
`

// BuildPrompt 拼接基础提示词与新闻正文
func BuildPrompt(text string) string {
	return basePrompt + "\n\nНОВОСТЬ:\n\n" + text
}
