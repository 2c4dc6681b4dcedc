package dialogue

import "fmt"

// Reply catalogue. The texts are part of the bot's external contract.
const (
	MsgIntro          = "Чтобы начать, введите команду /start"
	MsgGreeting       = "Привет, меня зовут Чат-бот, а как зовут тебя?"
	MsgNeedName       = "Пожалуйста укажите имя в формате: /name: Вася"
	MsgStartFirst     = "Введите команду /start, для начала общения"
	MsgNeedNumbers    = "Укажите числа после /number: например /number: 7, 9"
	MsgChooseOperator = "Выберите действие: -, +, *, / (введите символ операции)"
	MsgNumbersFirst   = "Сначала введите числа командой /number: ..."
	MsgNumbersNotSet  = "Числа не заданы. Введите их командой /number: 7, 9"
	MsgDivisionByZero = "Ошибка: деление на 0"
	MsgFarewell       = "Всего доброго, если хочешь поговорить пиши /start"
	MsgUnknown        = "Я не понимаю, введите другую команду!"
)

func msgNameAccepted(name string) string {
	return fmt.Sprintf("Привет %s, приятно познакомится. Я умею считать, введи числа которые надо посчитать", name)
}

func msgInvalidNumber(segment string) string {
	return fmt.Sprintf("Неправильное число: \"%s\". Введите числа через запятую.", segment)
}

func msgResult(value float64) string {
	return "Результат: " + FormatNumber(value)
}
