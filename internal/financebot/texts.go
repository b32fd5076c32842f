package financebot

import (
	"github.com/m3rciful/financebot/core/dialogue"
	"github.com/m3rciful/financebot/core/domain"
)

// Menu labels double as command aliases.
const (
	LabelRegister = "Регистрация в телеграм-боте"
	LabelRates    = "Курс валют"
	LabelTips     = "Советы по экономии"
	LabelFinances = "Личные финансы"
)

// Texts are the fixed replies of the bot.
type Texts struct {
	Greeting          string
	HelpHeader        string
	Registered        string
	AlreadyRegistered string
	ProfileMissing    string
	ProfileEmpty      string
	ProfileHeader     string
	ResetUsage        string
	ResetDone         string
	ResetNone         string
	Unknown           string
	Failure           string
	Busy              string
	Unsupported       string
	Tips              []string
}

// DefaultTexts returns the Russian texts of the bot.
func DefaultTexts() Texts {
	return Texts{
		Greeting:          "Привет! Я ваш личный финансовый помощник. Выберите одну из опций в меню:",
		HelpHeader:        "Доступные команды:",
		Registered:        "Вы успешно зарегистрированы!",
		AlreadyRegistered: "Вы уже зарегистрированы!",
		ProfileMissing:    "Вы ещё не зарегистрированы. Нажмите «" + LabelRegister + "».",
		ProfileEmpty:      "Расходы ещё не заполнены. Нажмите «" + LabelFinances + "».",
		ProfileHeader:     "Ваши расходы:",
		ResetUsage:        "Использование: /reset <user_id>",
		ResetDone:         "Анкета пользователя сброшена.",
		ResetNone:         "У пользователя нет активной анкеты.",
		Unknown:           "Не понимаю. Выберите одну из опций в меню или отправьте /help.",
		Failure:           "Что-то пошло не так, попробуйте позже.",
		Busy:              "Слишком много сообщений, подождите немного.",
		Unsupported:       "Я понимаю только текстовые сообщения.",
		Tips: []string{
			"Совет 1: Ведите бюджет и следите за своими расходами.",
			"Совет 2: Откладывайте часть доходов на сбережения.",
			"Совет 3: Покупайте товары по скидкам и распродажам.",
		},
	}
}

// DialogueMessages returns the Russian texts of the questionnaire.
func DialogueMessages(showSummary bool) dialogue.Messages {
	return dialogue.Messages{
		AlreadyActive:    "Сначала закончите текущую анкету.",
		NotRegistered:    "Сначала зарегистрируйтесь: нажмите «" + LabelRegister + "».",
		NothingToDo:      "Нет активной анкеты.",
		StoreUnavailable: "Не удалось сохранить данные, отправьте последний ответ ещё раз.",
		Invalid:          "Ответ не может быть пустым.",
		InvalidNumber:    "Введите число, например 120.50.",
		Completed:        "Категории и расходы сохранены!",
		ShowSummary:      showSummary,
	}
}

// DefaultSpec is the six-step expenses questionnaire.
func DefaultSpec() *dialogue.Spec {
	return dialogue.MustSpec(
		dialogue.Step{Name: "category1", Kind: domain.KindText, Prompt: "Введите первую категорию расходов:"},
		dialogue.Step{Name: "expenses1", Kind: domain.KindNumber, Prompt: "Введите расходы для категории 1:"},
		dialogue.Step{Name: "category2", Kind: domain.KindText, Prompt: "Введите вторую категорию расходов:"},
		dialogue.Step{Name: "expenses2", Kind: domain.KindNumber, Prompt: "Введите расходы для категории 2:"},
		dialogue.Step{Name: "category3", Kind: domain.KindText, Prompt: "Введите третью категорию расходов:"},
		dialogue.Step{Name: "expenses3", Kind: domain.KindNumber, Prompt: "Введите расходы для категории 3:"},
	)
}
