package core

// SamplePlayers returns the demo roster loaded when seeding is enabled.
func SamplePlayers() []Player {
	return []Player{
		{ID: "player1", Username: "Alexei", Avatar: "👑", Level: 15, Experience: 5600, Rating: 1850, GamesPlayed: 120, GamesWon: 85},
		{ID: "player2", Username: "Maria", Avatar: "🎯", Level: 12, Experience: 3800, Rating: 1720, GamesPlayed: 95, GamesWon: 65},
		{ID: "player3", Username: "Dmitry", Avatar: "⚔️", Level: 10, Experience: 2500, Rating: 1650, GamesPlayed: 80, GamesWon: 50},
		{ID: "player4", Username: "Anna", Avatar: "🌟", Level: 8, Experience: 1800, Rating: 1520, GamesPlayed: 60, GamesWon: 35},
		{ID: "player5", Username: "Sergei", Avatar: "🎮", Level: 6, Experience: 1200, Rating: 1420, GamesPlayed: 45, GamesWon: 25},
	}
}
