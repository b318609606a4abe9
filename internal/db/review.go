package db

import "fmt"

// Review is one review of a game. Game is the back-reference to the owner
// and is filled in by a Session once the review is committed or loaded.
type Review struct {
	ID      uint `gorm:"primaryKey"`
	Score   int
	Comment string
	GameID  uint  `gorm:"index;not null"`
	Game    *Game `gorm:"foreignKey:GameID"`
}

func (r *Review) String() string {
	return fmt.Sprintf("Review(id=%d, score=%d, game_id=%d)", r.ID, r.Score, r.GameID)
}
