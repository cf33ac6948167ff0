package enums

type Tower string

const (
	TowerHenday     Tower = "Henday"
	TowerMackenzie  Tower = "Mackenzie"
	TowerSchaffer   Tower = "Schaffer"
	TowerKelsey     Tower = "Kelsey"
	TowerAssiniboia Tower = "Assiniboia"
)

func (t Tower) Valid() bool {
	switch t {
	case TowerHenday, TowerMackenzie, TowerSchaffer, TowerKelsey, TowerAssiniboia:
		return true
	default:
		return false
	}
}
