package db

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"

	"gorm.io/gorm"
)

type fixtureRecord struct {
	Line     int
	Title    string
	Platform string
	Genre    string
	Price    int
	Score    *int
	Comment  string
}

// LoadFixtures reads a CSV with the header title,platform,genre,price,score,comment.
// Games are matched by title and created when absent; rows with a score add a
// review to that game. It returns the number of games touched and reviews added.
// The whole file is loaded in one transaction; on error nothing is stored.
func LoadFixtures(ctx context.Context, conn *gorm.DB, path string) (int, int, error) {
	if conn == nil {
		return 0, 0, nil
	}
	records, err := readFixtures(path)
	if err != nil {
		return 0, 0, err
	}

	games := make(map[string]*Game)
	var reviews []*Review
	err = conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, record := range records {
			game, ok := games[record.Title]
			if !ok {
				game = &Game{}
				err := tx.
					Where(Game{Title: record.Title}).
					Attrs(Game{Platform: record.Platform, Genre: record.Genre, Price: record.Price}).
					FirstOrCreate(game).Error
				if err != nil {
					return fmt.Errorf("line %d: upsert game %q: %w", record.Line, record.Title, err)
				}
				games[record.Title] = game
			}
			if record.Score == nil {
				continue
			}
			reviews = append(reviews, &Review{
				Score:   *record.Score,
				Comment: record.Comment,
				GameID:  game.ID,
			})
		}
		session := NewSession(tx)
		if err := session.AddAll(reviews); err != nil {
			return err
		}
		return session.Commit(ctx)
	})
	if err != nil {
		return 0, 0, err
	}
	return len(games), len(reviews), nil
}

func readFixtures(path string) ([]fixtureRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	var records []fixtureRecord
	for i, row := range rows {
		if i == 0 {
			continue
		}
		if len(row) < 4 {
			continue
		}
		line := i + 1
		title := strings.TrimSpace(row[0])
		if title == "" {
			continue
		}
		price, err := strconv.Atoi(strings.TrimSpace(row[3]))
		if err != nil {
			return nil, fmt.Errorf("line %d: price %q: %w", line, row[3], err)
		}
		record := fixtureRecord{
			Line:     line,
			Title:    title,
			Platform: strings.TrimSpace(row[1]),
			Genre:    strings.TrimSpace(row[2]),
			Price:    price,
		}
		if len(row) >= 5 {
			if raw := strings.TrimSpace(row[4]); raw != "" {
				score, err := strconv.Atoi(raw)
				if err != nil {
					return nil, fmt.Errorf("line %d: score %q: %w", line, raw, err)
				}
				record.Score = &score
			}
		}
		if len(row) >= 6 {
			record.Comment = strings.TrimSpace(row[5])
		}
		records = append(records, record)
	}
	return records, nil
}
