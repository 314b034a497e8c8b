package moderation

import (
	"math"
	"strconv"
	"strings"

	"github.com/Spok95/ecoreport-bot/internal/models"
)

const (
	baseScore      = 10
	perFraction    = 2
	maxVolumeBonus = 20
)

// Score = 10 + 2×фракций + min(20, объём), дробная часть отбрасывается.
// Нечисловой или отрицательный объём считается нулём.
func Score(meta models.ReportMeta) int {
	s := float64(baseScore+perFraction*len(meta.Fractions)) + math.Min(maxVolumeBonus, ParseVolume(meta.Volume))
	return int(math.Floor(s))
}

func ParseVolume(s string) float64 {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", ".")
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}
