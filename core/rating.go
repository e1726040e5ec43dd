package core

import "math"

// KFactor bounds the rating swing of a single game.
const KFactor = 32

// ExperiencePerLevel scales the level curve.
const ExperiencePerLevel = 100

// ExpectedScore is the logistic Elo expectation of the winner beating the loser.
func ExpectedScore(winnerRating, loserRating int64) float64 {
	return 1 / (1 + math.Pow(10, float64(loserRating-winnerRating)/400))
}

// RatingDelta returns round(K * (1 - E)). The result is always within [0, K].
func RatingDelta(winnerRating, loserRating int64) int64 {
	return int64(math.Round(KFactor * (1 - ExpectedScore(winnerRating, loserRating))))
}

// ApplyLoss subtracts delta from rating with a floor at zero.
func ApplyLoss(rating, delta int64) int64 {
	return max(0, rating-delta)
}

// WinRate returns the win percentage, 0 when no games were played.
func WinRate(wins, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return float64(wins) / float64(total) * 100
}

// CalculateLevel computes level = floor(sqrt(xp/100)) + 1, so level 1 at 0 xp.
func CalculateLevel(experience int64) int64 {
	if experience <= 0 {
		return 1
	}
	return int64(math.Floor(math.Sqrt(float64(experience)/ExperiencePerLevel))) + 1
}

// ExperienceToNextLevel returns level^2 * 100.
func ExperienceToNextLevel(level int64) int64 {
	return level * level * ExperiencePerLevel
}

// PlayTimePerGame is the nominal duration credited per game, in seconds.
const PlayTimePerGame = 30 * 60

// DeriveStats computes the stat view of a roster record.
func DeriveStats(p Player) PlayerStats {
	return PlayerStats{
		TotalGames:    p.GamesPlayed,
		Wins:          p.GamesWon,
		Losses:        p.GamesPlayed - p.GamesWon,
		WinRate:       WinRate(p.GamesWon, p.GamesPlayed),
		TotalPlayTime: p.GamesPlayed * PlayTimePerGame,
	}
}

// DeriveProgress computes the level progression view of a roster record.
func DeriveProgress(p Player) Progress {
	next := ExperienceToNextLevel(p.Level)
	var pct float64
	if next > 0 {
		pct = float64(p.Experience) / float64(next) * 100
	}
	return Progress{
		Level:                 p.Level,
		Experience:            p.Experience,
		ExperienceToNextLevel: next,
		LevelProgress:         pct,
	}
}
