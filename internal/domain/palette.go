package domain

import "math/rand"

// Palette holds the display colors assigned to participants on join.
// Collisions between participants are allowed; the color is cosmetic.
var Palette = []string{
	"#FF6B6B",
	"#4ECDC4",
	"#45B7D1",
	"#FFA07A",
	"#98D8C8",
	"#F7DC6F",
}

func RandomColor() string {
	return Palette[rand.Intn(len(Palette))]
}
