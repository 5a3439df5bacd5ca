package entity

// Скорость убывания потребностей в единицах за минуту симуляции
const (
	HungerDecayPerMinute = 1.0
	ThirstDecayPerMinute = 1.5
	EnergyDecayPerMinute = 0.5
)

// Пороги критических потребностей
const (
	ThirstCriticalThreshold = 20.0
	HungerCriticalThreshold = 20.0
	EnergyCriticalThreshold = 15.0
)

const (
	NeedMin = 0.0
	NeedMax = 100.0
)

// Need вид физиологической потребности
type Need int

const (
	NeedWater Need = iota + 1
	NeedFood
	NeedSleep
)

func (n Need) String() string {
	switch n {
	case NeedWater:
		return "water"
	case NeedFood:
		return "food"
	case NeedSleep:
		return "sleep"
	default:
		return "none"
	}
}

// PhysiologicalNeeds физиологическое состояние агента.
// Все пять шкал лежат в [0,100]: 0 - крайняя нужда, 100 - полное удовлетворение.
type PhysiologicalNeeds struct {
	Hunger  float32 `json:"hunger"`
	Thirst  float32 `json:"thirst"`
	Energy  float32 `json:"energy"`
	Bladder float32 `json:"bladder"`
	Hygiene float32 `json:"hygiene"`
	Shelter bool    `json:"shelter"`
}

// NewPhysiologicalNeeds создает стартовое состояние потребностей
func NewPhysiologicalNeeds() PhysiologicalNeeds {
	return PhysiologicalNeeds{
		Hunger:  75.0,
		Thirst:  75.0,
		Energy:  90.0,
		Bladder: 100.0,
		Hygiene: 100.0,
		Shelter: false,
	}
}

// Update уменьшает голод, жажду и энергию за deltaTime секунд.
// Bladder, Hygiene и Shelter этим проходом не меняются.
// Шаг проверяет вызывающий: отрицательный или NaN deltaTime здесь просто игнорируется.
func (n *PhysiologicalNeeds) Update(deltaTime float32) {
	if !(deltaTime > 0) {
		return
	}
	n.Hunger = decay(n.Hunger, deltaTime*HungerDecayPerMinute/60.0)
	n.Thirst = decay(n.Thirst, deltaTime*ThirstDecayPerMinute/60.0)
	n.Energy = decay(n.Energy, deltaTime*EnergyDecayPerMinute/60.0)
}

// CriticalNeed возвращает самую приоритетную неудовлетворенную потребность.
// Порядок проверки фиксирован: жажда, голод, сон.
func (n PhysiologicalNeeds) CriticalNeed() (Need, bool) {
	if n.Thirst < ThirstCriticalThreshold {
		return NeedWater, true
	}
	if n.Hunger < HungerCriticalThreshold {
		return NeedFood, true
	}
	if n.Energy < EnergyCriticalThreshold {
		return NeedSleep, true
	}
	return 0, false
}

// Replenish восполняет потребность, не превышая 100
func (n *PhysiologicalNeeds) Replenish(need Need, amount float32) {
	if amount < 0 {
		amount = 0
	}
	switch need {
	case NeedWater:
		n.Thirst = clampNeed(n.Thirst + amount)
	case NeedFood:
		n.Hunger = clampNeed(n.Hunger + amount)
	case NeedSleep:
		n.Energy = clampNeed(n.Energy + amount)
	}
}

// Valid проверяет, что все шкалы находятся в допустимых границах
func (n PhysiologicalNeeds) Valid() bool {
	for _, v := range [...]float32{n.Hunger, n.Thirst, n.Energy, n.Bladder, n.Hygiene} {
		if !(v >= NeedMin && v <= NeedMax) {
			return false
		}
	}
	return true
}

func decay(value, amount float32) float32 {
	v := value - amount
	if v < NeedMin {
		return NeedMin
	}
	return v
}

func clampNeed(v float32) float32 {
	if v < NeedMin {
		return NeedMin
	}
	if v > NeedMax {
		return NeedMax
	}
	return v
}
