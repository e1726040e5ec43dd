package leaderboard

import "arenakit/core"

// Entry represents a ranked rating. Seq is the insertion order used to break ties.
type Entry struct {
	Player core.PlayerID
	Score  int64
	Seq    uint64
}

// Board abstracts leaderboard operations.
type Board interface {
	Update(player core.PlayerID, score int64)
	Remove(player core.PlayerID)
	TopN(n int) []Entry
	Get(player core.PlayerID) (Entry, bool)
	Rank(player core.PlayerID) (int, bool)
	Len() int
}
