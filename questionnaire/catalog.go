package questionnaire

// ChoiceQuestion is a single-choice or multi-select question with a fixed
// set of option labels. Options keep catalog order everywhere, including in
// persisted multi-select answers.
type ChoiceQuestion struct {
	Prompt      string
	Options     []string
	MultiSelect bool
}

// Catalog is the immutable definition of the four questionnaire phases.
// Absolute question indices are 1-based and run Basic, Choice, Essay, Audio.
type Catalog struct {
	BasicQuestions  []string
	ChoiceQuestions []ChoiceQuestion
	EssayQuestions  []string
	AudioQuestions  []string
}

func DefaultCatalog() *Catalog {
	return &Catalog{
		BasicQuestions: []string{
			"Как вас зовут?",
			"Сколько вам лет?",
			"Какой у вас email?",
		},
		ChoiceQuestions: []ChoiceQuestion{
			{
				Prompt: "Для чего вам необходимо овладеть английским?",
				Options: []string{
					"Оценки в учебных заведениях",
					"Путешествий",
					"Для себя",
					"Работы",
					"Другое",
				},
			},
			{
				Prompt: "Каков ваш текущий уровень владения английским?",
				Options: []string{
					"Начинающий",
					"Ниже среднего",
					"Средний",
					"Выше среднего",
					"Уровень носителя",
					"Продвинутый",
				},
			},
			{
				Prompt: "Когда вам нужно овладеть английским?",
				Options: []string{
					"1-3 месяца",
					"3-6 месяцев",
					"6-12 месяцев",
					"1-2 года",
					"Нет сроков",
				},
			},
			{
				Prompt: "Какие проблемы мешают вам овладеть английским?",
				Options: []string{
					"Нехватка практики",
					"Не могу найти подходящего преподавателя",
					"Проблемы с грамматикой",
					"Ограниченный словарный запас",
					"Не понимаю речь носителей или англоязычный контент",
					"Не могу найти время на английский",
				},
			},
			{
				Prompt: "Как вы оцениваете свою дисциплинированность в изучении английского?",
				Options: []string{
					"Постоянно начинаю и забрасываю",
					"Дисциплина есть, но её хватает ненадолго",
					"Я гуру дисциплины, всегда довожу до конца",
				},
			},
			{
				Prompt: "Какой формат обучения вам нравится?",
				Options: []string{
					"Групповые занятия",
					"Индивидуальные занятия",
					"Онлайн",
					"Офлайн",
				},
			},
			{
				Prompt: "Выберите свои интересы (можно выбрать несколько)",
				Options: []string{
					"Аниме",
					"Дорамы",
					"Американские сериалы",
					"Худ. литература",
					"Научная литература",
					"Бизнес-литература",
					"Манга/Комиксы",
					"Фитнес",
					"Футбол",
					"Баскетбол",
					"Теннис",
					"Шахматы",
					"Киберспорт",
					"Йога и медитация",
					"Рукоделие",
				},
				MultiSelect: true,
			},
			{
				Prompt: "Какие экзамены вам необходимо сдать? (можно выбрать несколько)",
				Options: []string{
					"IELTS",
					"TOEFL",
					"SAT",
					"GMAT",
					"Duolingo",
					"NUFIP",
				},
				MultiSelect: true,
			},
		},
		EssayQuestions: []string{
			"Где вы родились и когда, где живете сейчас и чем занимаетесь.",
			"Чем вы больше всего любите заниматься? Какие у вас хобби?",
			"Почему вы хотите изучать английский язык?",
		},
		AudioQuestions: []string{
			"Можете ли вы описать свой распорядок дня и как выглядит ваш типичный день?",
			"Расскажите о запоминающейся поездке или опыте, который у вас был в прошлом.",
			"Каковы ваши планы или цели на будущее? Как вы думаете, как вы их достигнете?",
		},
	}
}

// TotalQuestions is the highest valid absolute question index.
func (c *Catalog) TotalQuestions() int {
	return len(c.BasicQuestions) + len(c.ChoiceQuestions) + len(c.EssayQuestions) + len(c.AudioQuestions)
}
