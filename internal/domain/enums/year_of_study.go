package enums

type YearOfStudy string

const (
	YearFirst    YearOfStudy = "1st Year"
	YearSecond   YearOfStudy = "2nd Year"
	YearThird    YearOfStudy = "3rd Year"
	YearFourth   YearOfStudy = "4th Year"
	YearFifthUp  YearOfStudy = "5th+ Year"
	YearGraduate YearOfStudy = "Graduate Student"
	YearPhD      YearOfStudy = "PhD Student"
)

func (y YearOfStudy) Valid() bool {
	switch y {
	case YearFirst, YearSecond, YearThird, YearFourth, YearFifthUp, YearGraduate, YearPhD:
		return true
	default:
		return false
	}
}
