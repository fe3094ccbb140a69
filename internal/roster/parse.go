// Package roster turns raw spreadsheet rows into roster entries.
package roster

import (
	"strings"

	"clanchecker/service/internal/models"
	"clanchecker/service/internal/tag"
)

// ColumnMap maps roster fields to zero-based spreadsheet column indexes
type ColumnMap struct {
	PlayerName       int
	PlayerTag        int
	TownHall         int
	DiscordUsername  int
	DiscordUserID    int
	AssignedClanName int
	AssignedClanTag  int
}

// DefaultColumns is the layout of the clan roster sheet:
// B name, C player tag, D town hall, F discord name, G discord id, H clan name, I clan tag
func DefaultColumns() ColumnMap {
	return ColumnMap{
		PlayerName:       1,
		PlayerTag:        2,
		TownHall:         3,
		DiscordUsername:  5,
		DiscordUserID:    6,
		AssignedClanName: 7,
		AssignedClanTag:  8,
	}
}

// Parse drops the header row, skips rows without a player tag and maps the
// rest into entries with normalized tags. Missing trailing cells read as "".
func (m ColumnMap) Parse(rows [][]string) []models.RosterEntry {
	if len(rows) <= 1 {
		return []models.RosterEntry{}
	}

	entries := make([]models.RosterEntry, 0, len(rows)-1)
	for _, row := range rows[1:] {
		playerTag := tag.Normalize(cell(row, m.PlayerTag))
		if playerTag == "" {
			continue
		}

		entries = append(entries, models.RosterEntry{
			PlayerName:       cell(row, m.PlayerName),
			PlayerTag:        playerTag,
			TownHall:         cell(row, m.TownHall),
			DiscordUsername:  cell(row, m.DiscordUsername),
			DiscordUserID:    cell(row, m.DiscordUserID),
			AssignedClanName: cell(row, m.AssignedClanName),
			AssignedClanTag:  tag.Normalize(cell(row, m.AssignedClanTag)),
		})
	}

	return entries
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}
