package game

// Difficulty fixes every dimension of a puzzle: how many colors exist,
// how long the secret is, how many attempts each player gets per puzzle,
// and how attempt scores scale.
type Difficulty struct {
	Name        string
	PaletteSize int
	Length      int
	AttemptCap  int
	ScoreFactor float64
}

var difficulties = map[string]Difficulty{
	"easy":    {Name: "easy", PaletteSize: 4, Length: 3, AttemptCap: 15, ScoreFactor: 0.8},
	"medium":  {Name: "medium", PaletteSize: 6, Length: 4, AttemptCap: 12, ScoreFactor: 1.0},
	"hard":    {Name: "hard", PaletteSize: 8, Length: 5, AttemptCap: 10, ScoreFactor: 1.3},
	"expert":  {Name: "expert", PaletteSize: 10, Length: 6, AttemptCap: 8, ScoreFactor: 1.6},
	"quantum": {Name: "quantum", PaletteSize: 12, Length: 7, AttemptCap: 6, ScoreFactor: 2.0},
}

// DifficultyByName resolves a difficulty tier by its wire name.
func DifficultyByName(name string) (Difficulty, bool) {
	d, ok := difficulties[name]
	return d, ok
}
