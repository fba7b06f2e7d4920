package app

import (
	"math"

	"live-quiz-service/internal/domain"
)

const (
	basePoints    = 1000
	maxSpeedBonus = 200
)

// Score returns the points for an answer: 0 when wrong, otherwise 1000 plus a
// speed bonus of up to 200 that shrinks linearly over the question timer.
func Score(question domain.Question, responseTimeMs int64, isCorrect bool) int {
	if !isCorrect {
		return 0
	}
	maxTime := float64(question.Timer()) * 1000
	elapsed := math.Max(0, math.Min(float64(responseTimeMs), maxTime))
	bonus := math.Round(((maxTime - elapsed) / maxTime) * maxSpeedBonus)
	return basePoints + int(bonus)
}
