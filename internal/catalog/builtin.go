package catalog

// Default 内置的 СТМ 模型目录
func Default() *Catalog {
	c, err := New(builtinTree())
	if err != nil {
		panic(err)
	}
	return c
}

func builtinTree() *Tree {
	return &Tree{
		ModelID:    "Модель-001",
		ObjectName: "Установка подготовки газа №1",
		Sections: []Node{
			{
				Type: "key",
				Name: "Ключевые параметры",
				Parameters: []Param{
					{ID: "key-1", Name: "Температура входа", Unit: "°C", Type: "temperature"},
					{ID: "key-2", Name: "Давление входа", Unit: "МПа", Type: "pressure"},
					{ID: "key-3", Name: "Расход сырья", Unit: "м³/ч", Type: "flow"},
					{ID: "key-4", Name: "Температура выхода", Unit: "°C", Type: "temperature"},
				},
			},
			{
				Type: "streams",
				Name: "Потоки",
				Children: []Node{
					{
						ID:   "stream-1",
						Name: "Поток 1 - Вход сырья",
						Parameters: []Param{
							{ID: "stream-1-temp", Name: "Температура", Unit: "°C", Type: "temperature"},
							{ID: "stream-1-pressure", Name: "Давление", Unit: "МПа", Type: "pressure"},
							{ID: "stream-1-flow", Name: "Массовый расход", Unit: "кг/с", Type: "flow"},
							{ID: "stream-1-composition", Name: "Состав", Unit: "мольн.доли", Type: "composition"},
						},
					},
					{
						ID:   "stream-2",
						Name: "Поток 2 - После сепарации",
						Parameters: []Param{
							{ID: "stream-2-temp", Name: "Температура", Unit: "°C", Type: "temperature"},
							{ID: "stream-2-pressure", Name: "Давление", Unit: "МПа", Type: "pressure"},
							{ID: "stream-2-flow", Name: "Массовый расход", Unit: "кг/с", Type: "flow"},
							{ID: "stream-2-humidity", Name: "Влажность", Unit: "г/м³", Type: "humidity"},
						},
					},
					{
						ID:   "stream-3",
						Name: "Поток 3 - Товарный газ",
						Parameters: []Param{
							{ID: "stream-3-temp", Name: "Температура", Unit: "°C", Type: "temperature"},
							{ID: "stream-3-pressure", Name: "Давление", Unit: "МПа", Type: "pressure"},
							{ID: "stream-3-flow", Name: "Массовый расход", Unit: "кг/с", Type: "flow"},
							{ID: "stream-3-quality", Name: "Качество", Unit: "%", Type: "quality"},
						},
					},
				},
			},
			{
				Type: "apparatus",
				Name: "Аппараты",
				Children: []Node{
					{
						ID:   "separator-1",
						Name: "Сепаратор С-1",
						Parameters: []Param{
							{ID: "sep-1-temp", Name: "Температура в аппарате", Unit: "°C", Type: "temperature"},
							{ID: "sep-1-pressure", Name: "Давление", Unit: "МПа", Type: "pressure"},
							{ID: "sep-1-level", Name: "Уровень жидкости", Unit: "%", Type: "level"},
							{ID: "sep-1-efficiency", Name: "Эффективность сепарации", Unit: "%", Type: "efficiency"},
						},
					},
					{
						ID:   "heat-exchanger-1",
						Name: "Теплообменник Т-1",
						Parameters: []Param{
							{ID: "heat-1-temp-in", Name: "Температура на входе", Unit: "°C", Type: "temperature"},
							{ID: "heat-1-temp-out", Name: "Температура на выходе", Unit: "°C", Type: "temperature"},
							{ID: "heat-1-delta-t", Name: "Перепад температур", Unit: "К", Type: "temperature"},
							{ID: "heat-1-duty", Name: "Тепловая нагрузка", Unit: "кВт", Type: "power"},
						},
					},
					{
						ID:   "compressor-1",
						Name: "Компрессор К-1",
						Parameters: []Param{
							{ID: "comp-1-power", Name: "Потребляемая мощность", Unit: "кВт", Type: "power"},
							{ID: "comp-1-efficiency", Name: "КПД", Unit: "%", Type: "efficiency"},
							{ID: "comp-1-speed", Name: "Частота вращения", Unit: "об/мин", Type: "speed"},
							{ID: "comp-1-vibration", Name: "Вибрация", Unit: "мм/с", Type: "vibration"},
						},
					},
				},
			},
			{
				Type: "equipment",
				Name: "Оборудование",
				Children: []Node{
					{
						ID:   "pump-1",
						Name: "Насос Н-1",
						Parameters: []Param{
							{ID: "pump-1-flow", Name: "Подача", Unit: "м³/ч", Type: "flow"},
							{ID: "pump-1-pressure", Name: "Напор", Unit: "МПа", Type: "pressure"},
							{ID: "pump-1-power", Name: "Мощность", Unit: "кВт", Type: "power"},
							{ID: "pump-1-temp", Name: "Температура подшипников", Unit: "°C", Type: "temperature"},
						},
					},
					{
						ID:   "valve-1",
						Name: "Клапан КЛ-1",
						Parameters: []Param{
							{ID: "valve-1-position", Name: "Положение", Unit: "%", Type: "position"},
							{ID: "valve-1-flow", Name: "Расход через клапан", Unit: "м³/ч", Type: "flow"},
							{ID: "valve-1-dp", Name: "Перепад давления", Unit: "МПа", Type: "pressure"},
						},
					},
				},
			},
		},
	}
}
