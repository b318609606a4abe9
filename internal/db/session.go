package db

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrGameNotFound      = errors.New("game not found")
	ErrGameNotPersisted  = errors.New("review references a game that has not been committed")
	ErrUnsupportedRecord = errors.New("unsupported record type")
)

// Session is a unit of work over a connection. Pending inserts are queued by
// Add and AddAll and written in one transaction by Commit. Games and reviews
// seen by a session are identity mapped, so a given ID always resolves to the
// same pointer and Game.Reviews and Review.Game stay consistent.
//
// A Session is not safe for concurrent use.
type Session struct {
	conn    *gorm.DB
	games   map[uint]*Game
	reviews map[uint]*Review

	pendingGames   []*Game
	pendingReviews []*Review
	batches        [][]*Review
}

func NewSession(conn *gorm.DB) *Session {
	return &Session{
		conn:    conn,
		games:   make(map[uint]*Game),
		reviews: make(map[uint]*Review),
	}
}

// Add queues games and reviews for single-row inserts. Unsaved reviews already
// attached to an added game are queued along with it. Records that already
// have an ID are only tracked, never inserted again.
func (s *Session) Add(records ...any) error {
	for _, record := range records {
		switch r := record.(type) {
		case *Game:
			if r == nil {
				return fmt.Errorf("%w: nil game", ErrUnsupportedRecord)
			}
		case *Review:
			if r == nil {
				return fmt.Errorf("%w: nil review", ErrUnsupportedRecord)
			}
		default:
			return fmt.Errorf("%w: %T", ErrUnsupportedRecord, record)
		}
	}
	for _, record := range records {
		switch r := record.(type) {
		case *Game:
			if r.ID != 0 {
				if _, ok := s.games[r.ID]; !ok {
					s.games[r.ID] = r
				}
			} else {
				s.pendingGames = append(s.pendingGames, r)
			}
			for _, review := range r.Reviews {
				if review == nil {
					continue
				}
				if review.ID != 0 {
					if _, ok := s.reviews[review.ID]; !ok {
						s.reviews[review.ID] = review
					}
					continue
				}
				if review.Game == nil {
					review.Game = r
				}
				s.pendingReviews = append(s.pendingReviews, review)
			}
		case *Review:
			if r.ID != 0 {
				if _, ok := s.reviews[r.ID]; !ok {
					s.reviews[r.ID] = r
				}
				s.link(s.reviews[r.ID])
				continue
			}
			s.pendingReviews = append(s.pendingReviews, r)
		}
	}
	return nil
}

// AddAll queues reviews to be written with a single multi-row insert.
func (s *Session) AddAll(reviews []*Review) error {
	if len(reviews) == 0 {
		return nil
	}
	batch := make([]*Review, 0, len(reviews))
	for _, review := range reviews {
		if review == nil {
			return fmt.Errorf("%w: nil review", ErrUnsupportedRecord)
		}
		batch = append(batch, review)
	}
	s.batches = append(s.batches, batch)
	return nil
}

// Rollback discards everything queued since the last Commit.
func (s *Session) Rollback() {
	s.pendingGames = nil
	s.pendingReviews = nil
	s.batches = nil
}

// Commit writes pending games, then single reviews, then batches, in one
// transaction. On success every committed record has its ID and every
// committed review is linked to its game. On failure nothing is written, the
// queue is cleared and IDs handed out by the failed transaction are reset.
func (s *Session) Commit(ctx context.Context) error {
	games, singles, batches := s.pendingGames, s.pendingReviews, s.batches
	s.Rollback()
	if len(games) == 0 && len(singles) == 0 && len(batches) == 0 {
		return nil
	}

	var resolved []*Review
	resolve := func(review *Review) error {
		if review.GameID != 0 {
			return nil
		}
		if review.Game == nil || review.Game.ID == 0 {
			return fmt.Errorf("review %q: %w", review.Comment, ErrGameNotPersisted)
		}
		review.GameID = review.Game.ID
		resolved = append(resolved, review)
		return nil
	}

	err := s.conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, game := range games {
			if err := tx.Omit(clause.Associations).Create(game).Error; err != nil {
				return fmt.Errorf("insert game %q: %w", game.Title, err)
			}
		}
		for _, review := range singles {
			if err := resolve(review); err != nil {
				return err
			}
			if err := tx.Omit(clause.Associations).Create(review).Error; err != nil {
				return fmt.Errorf("insert review for game %d: %w", review.GameID, err)
			}
		}
		for _, batch := range batches {
			for _, review := range batch {
				if err := resolve(review); err != nil {
					return err
				}
			}
			if err := tx.Omit(clause.Associations).Create(&batch).Error; err != nil {
				return fmt.Errorf("insert %d reviews: %w", len(batch), err)
			}
		}
		return nil
	})

	committed := make([]*Review, 0, len(singles))
	committed = append(committed, singles...)
	for _, batch := range batches {
		committed = append(committed, batch...)
	}

	if err != nil {
		for _, game := range games {
			game.ID = 0
		}
		for _, review := range committed {
			review.ID = 0
		}
		for _, review := range resolved {
			review.GameID = 0
		}
		return err
	}

	for _, game := range games {
		game.Reviews = nil
		s.games[game.ID] = game
	}
	for _, review := range committed {
		s.reviews[review.ID] = review
	}
	if err := s.loadMissingOwners(ctx, committed); err != nil {
		return err
	}
	for _, review := range committed {
		s.link(review)
	}
	return nil
}

// Game returns the game with the given ID and its reviews. A game already
// known to the session is returned as is; use Refresh to re-read it.
func (s *Session) Game(ctx context.Context, id uint) (*Game, error) {
	if game, ok := s.games[id]; ok {
		return game, nil
	}
	var loaded Game
	err := s.conn.WithContext(ctx).Preload("Reviews", orderByID).First(&loaded, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("game %d: %w", id, ErrGameNotFound)
	}
	if err != nil {
		return nil, err
	}
	return s.track(&loaded), nil
}

// Games returns every stored game ordered by ID.
func (s *Session) Games(ctx context.Context) ([]*Game, error) {
	var loaded []*Game
	if err := s.conn.WithContext(ctx).Preload("Reviews", orderByID).Order("id ASC").Find(&loaded).Error; err != nil {
		return nil, err
	}
	games := make([]*Game, 0, len(loaded))
	for _, game := range loaded {
		games = append(games, s.track(game))
	}
	return games, nil
}

// Refresh re-reads the scalar fields and reviews of game.
func (s *Session) Refresh(ctx context.Context, game *Game) error {
	if game == nil || game.ID == 0 {
		return fmt.Errorf("refresh: %w", ErrGameNotPersisted)
	}
	if _, ok := s.games[game.ID]; !ok {
		s.games[game.ID] = game
	}
	var loaded Game
	err := s.conn.WithContext(ctx).Preload("Reviews", orderByID).First(&loaded, game.ID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("game %d: %w", game.ID, ErrGameNotFound)
	}
	if err != nil {
		return err
	}
	s.track(&loaded)
	return nil
}

func (s *Session) loadMissingOwners(ctx context.Context, reviews []*Review) error {
	var missing []uint
	seen := make(map[uint]struct{})
	for _, review := range reviews {
		if _, ok := s.games[review.GameID]; ok {
			continue
		}
		if _, ok := seen[review.GameID]; ok {
			continue
		}
		seen[review.GameID] = struct{}{}
		missing = append(missing, review.GameID)
	}
	if len(missing) == 0 {
		return nil
	}
	var loaded []*Game
	if err := s.conn.WithContext(ctx).Preload("Reviews", orderByID).Where("id IN ?", missing).Find(&loaded).Error; err != nil {
		return fmt.Errorf("load games for committed reviews: %w", err)
	}
	for _, game := range loaded {
		s.track(game)
	}
	return nil
}

// track merges a freshly loaded game into the identity map and returns the
// canonical pointer. The loaded review set replaces the tracked one.
func (s *Session) track(loaded *Game) *Game {
	game, ok := s.games[loaded.ID]
	if !ok {
		game = loaded
		s.games[loaded.ID] = game
	} else if game != loaded {
		game.Title = loaded.Title
		game.Platform = loaded.Platform
		game.Genre = loaded.Genre
		game.Price = loaded.Price
	}
	reviews := make([]*Review, 0, len(loaded.Reviews))
	for _, r := range loaded.Reviews {
		review, ok := s.reviews[r.ID]
		if !ok {
			review = r
			s.reviews[r.ID] = review
		} else if review != r {
			review.Score = r.Score
			review.Comment = r.Comment
			review.GameID = r.GameID
		}
		review.Game = game
		reviews = append(reviews, review)
	}
	sortReviews(reviews)
	game.Reviews = reviews
	return game
}

func (s *Session) link(review *Review) {
	game, ok := s.games[review.GameID]
	if !ok {
		return
	}
	review.Game = game
	for _, existing := range game.Reviews {
		if existing == review {
			return
		}
	}
	game.Reviews = append(game.Reviews, review)
	sortReviews(game.Reviews)
}

func orderByID(tx *gorm.DB) *gorm.DB {
	return tx.Order("id ASC")
}

func sortReviews(reviews []*Review) {
	sort.SliceStable(reviews, func(i, j int) bool {
		return reviews[i].ID < reviews[j].ID
	})
}
