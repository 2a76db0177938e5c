package service

// GradeBand maps a minimum percentage to a letter grade.
type GradeBand struct {
	Letter string
	Min    float64
}

// DefaultGradeScale is ordered descending by threshold; the first band whose
// threshold the percentage meets wins. Anything below the last band is an F.
var DefaultGradeScale = []GradeBand{
	{Letter: "A+", Min: 90},
	{Letter: "A", Min: 80},
	{Letter: "B", Min: 70},
	{Letter: "C", Min: 60},
	{Letter: "D", Min: 50},
}

// LetterGrade buckets a percentage into the default scale.
func LetterGrade(percentage float64) string {
	for _, band := range DefaultGradeScale {
		if percentage >= band.Min {
			return band.Letter
		}
	}
	return "F"
}
