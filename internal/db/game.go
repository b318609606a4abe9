package db

import "fmt"

// Game is a purchasable game. Reviews is kept ordered by review ID.
type Game struct {
	ID       uint `gorm:"primaryKey"`
	Title    string
	Platform string
	Genre    string
	Price    int
	Reviews  []*Review `gorm:"foreignKey:GameID"`
}

func (g *Game) String() string {
	return fmt.Sprintf("Game(id=%d, title=%s, platform=%s)", g.ID, g.Title, g.Platform)
}
