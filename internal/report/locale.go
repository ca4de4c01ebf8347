// Package report renders ledger data for people: the CSV export, the
// per-period stats text and the user-facing message catalogue.
package report

import (
	"strings"

	"finbot/internal/core"
)

// Locale is the message catalogue for one language. Format strings take
// the arguments documented next to each field.
type Locale struct {
	Lang string

	ExportHeader  [5]string
	IncomeLabel   string
	ExpenseLabel  string
	ExportCaption string
	ExportFile    string

	PeriodNames map[core.Period]string
	StatsTitle  string // period name
	StatsLines  string // income, expense, balance
	ChartTitle  string
	NoData      string
	NoExport    string

	Welcome          string // first name
	AskExpenseAmount string
	AskIncomeAmount  string
	InvalidAmount    string
	AskCategory      string
	IncomeSaved      string // amount
	ExpenseSaved     string // amount, category
	Cancelled        string
	NoSession        string
	Failure          string
	NotRegistered    string
	RateLimited      string
	CancelButton     string
}

var ru = Locale{
	Lang:          "ru",
	ExportHeader:  [5]string{"Дата", "Сумма", "Категория", "Тип", "Валюта"},
	IncomeLabel:   "Доход",
	ExpenseLabel:  "Расход",
	ExportCaption: "📁 Ваши транзакции в CSV",
	ExportFile:    "transactions.csv",

	PeriodNames: map[core.Period]string{
		core.CurrentMonth: "Текущий месяц",
		core.LastMonth:    "Прошлый месяц",
		core.Last30Days:   "30 дней",
		core.Last12Months: "12 месяцев",
		core.AllTime:      "Все время",
	},
	StatsTitle: "📊 <b>%s</b>\n",
	StatsLines: "Доходы: %s\nРасходы: %s\nБаланс: %s\n",
	ChartTitle: "Расходы по категориям (30 дней)",
	NoData:     "📭 Нет данных для отображения",
	NoExport:   "📭 Нет данных для экспорта",

	Welcome: "👋 Привет, %s!\n\n" +
		"Я бот для учета финансов. Вот что я умею:\n\n" +
		"➕ Добавить расход: /expense\n" +
		"➕ Добавить доход: /income\n" +
		"📊 Статистика: /stats\n" +
		"📁 Экспорт данных: /export\n\n" +
		"💡 Просто введите команду и следуйте инструкциям",
	AskExpenseAmount: "💰 Введите сумму расхода:",
	AskIncomeAmount:  "💰 Введите сумму дохода:",
	InvalidAmount:    "🚫 Пожалуйста, введите корректную сумму (число)",
	AskCategory:      "📝 Введите категорию расхода (например: еда, транспорт):",
	IncomeSaved:      "✅ Доход %s сохранен!",
	ExpenseSaved:     "✅ Расход %s на '%s' сохранен!",
	Cancelled:        "❌ Операция отменена",
	NoSession:        "ℹ️ Начните с /expense или /income",
	Failure:          "⚠️ Не удалось выполнить операцию, попробуйте еще раз",
	NotRegistered:    "ℹ️ Сначала отправьте /start",
	RateLimited:      "⏳ Слишком много сообщений, подождите немного",
	CancelButton:     "/cancel",
}

var en = Locale{
	Lang:          "en",
	ExportHeader:  [5]string{"Date", "Amount", "Category", "Type", "Currency"},
	IncomeLabel:   "Income",
	ExpenseLabel:  "Expense",
	ExportCaption: "📁 Your transactions as CSV",
	ExportFile:    "transactions.csv",

	PeriodNames: map[core.Period]string{
		core.CurrentMonth: "Current month",
		core.LastMonth:    "Last month",
		core.Last30Days:   "30 days",
		core.Last12Months: "12 months",
		core.AllTime:      "All time",
	},
	StatsTitle: "📊 <b>%s</b>\n",
	StatsLines: "Income: %s\nExpenses: %s\nBalance: %s\n",
	ChartTitle: "Expenses by category (30 days)",
	NoData:     "📭 Nothing to show yet",
	NoExport:   "📭 Nothing to export yet",

	Welcome: "👋 Hi, %s!\n\n" +
		"I keep track of your money. Here is what I can do:\n\n" +
		"➕ Add an expense: /expense\n" +
		"➕ Add an income: /income\n" +
		"📊 Statistics: /stats\n" +
		"📁 Export data: /export\n\n" +
		"💡 Send a command and follow the prompts",
	AskExpenseAmount: "💰 Enter the expense amount:",
	AskIncomeAmount:  "💰 Enter the income amount:",
	InvalidAmount:    "🚫 Please enter a valid amount (a number)",
	AskCategory:      "📝 Enter the expense category (for example: food, transport):",
	IncomeSaved:      "✅ Income of %s saved!",
	ExpenseSaved:     "✅ Expense of %s for '%s' saved!",
	Cancelled:        "❌ Cancelled",
	NoSession:        "ℹ️ Start with /expense or /income",
	Failure:          "⚠️ Something went wrong, please try again",
	NotRegistered:    "ℹ️ Send /start first",
	RateLimited:      "⏳ Too many messages, please slow down",
	CancelButton:     "/cancel",
}

var locales = map[string]Locale{ru.Lang: ru, en.Lang: en}

// MatchLang maps a client language tag such as "en-US" to a supported
// catalogue, falling back to core.DefaultLang.
func MatchLang(tag string) string {
	base, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(tag)), "-")
	if _, ok := locales[base]; ok {
		return base
	}
	return core.DefaultLang
}

// LocaleFor returns the catalogue for lang, falling back to Russian.
func LocaleFor(lang string) Locale {
	if l, ok := locales[lang]; ok {
		return l
	}
	return ru
}
