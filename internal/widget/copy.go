package widget

// Copy holds the clinic-facing texts the controller emits on its own.
type Copy struct {
	Greeting      string
	Nudge         string
	NudgeCTALabel string
	ApologyPrefix string
}

// DefaultCopy is the clinic's stock wording.
var DefaultCopy = Copy{
	Greeting: "Здравствуйте! 👋\n\nЯ ассистент клиники ЦЭСИ.\n\n" +
		"Расскажу, как проходит лечение, имплантация, и отвечу на любые вопросы по стоматологии.\n\nС чего начнём?",
	Nudge:         "Есть вопросы? Запишитесь на консультацию и получите скидку 30% на КТ по промокоду «Чат»",
	NudgeCTALabel: "Записаться",
	ApologyPrefix: "Извините, произошла ошибка. Попробуйте еще раз или позвоните нам по телефону ",
}

// DefaultFallbackPhone is quoted in the apology turn.
const DefaultFallbackPhone = "+7(4152) 44-24-24"

// Apology renders the failure turn with the clinic's phone number.
func (c Copy) Apology(phone string) string {
	if phone == "" {
		phone = DefaultFallbackPhone
	}
	return c.ApologyPrefix + phone
}

func (c Copy) withDefaults() Copy {
	if c.Greeting == "" {
		c.Greeting = DefaultCopy.Greeting
	}
	if c.Nudge == "" {
		c.Nudge = DefaultCopy.Nudge
	}
	if c.NudgeCTALabel == "" {
		c.NudgeCTALabel = DefaultCopy.NudgeCTALabel
	}
	if c.ApologyPrefix == "" {
		c.ApologyPrefix = DefaultCopy.ApologyPrefix
	}
	return c
}
