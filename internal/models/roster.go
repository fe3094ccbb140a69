package models

import "clanchecker/service/internal/tag"

// Placeholder values used when a player's current clan is unknown
const (
	NoClanName = "No Clan"
	NoClanTag  = "None"
)

// RosterEntry is one parsed row of the roster sheet
type RosterEntry struct {
	PlayerName       string `json:"playerName"`
	PlayerTag        string `json:"playerTag"`
	TownHall         string `json:"townHall"`
	DiscordUsername  string `json:"discordUsername"`
	DiscordUserID    string `json:"discordUserId"`
	AssignedClanName string `json:"assignedClanName"`
	AssignedClanTag  string `json:"assignedClanTag"`
}

// EnrichedEntry is a roster entry joined with the player's live clan data
type EnrichedEntry struct {
	RosterEntry
	CurrentClanName  string `json:"currentClanName"`
	CurrentClanTag   string `json:"currentClanTag"`
	CurrentTownHall  *int   `json:"currentTownHall,omitempty"`
	IsInAssignedClan bool   `json:"isInAssignedClan"`
}

// LookupStatus tells whether a player lookup produced data
type LookupStatus int

const (
	LookupUnavailable LookupStatus = iota
	LookupFound
)

func (s LookupStatus) String() string {
	switch s {
	case LookupFound:
		return "found"
	default:
		return "unavailable"
	}
}

// LookupResult is the outcome of a single player lookup.
// Err is informational; an unavailable result is never fatal to a refresh.
type LookupResult struct {
	Status LookupStatus
	Player *Player
	Err    error
}

// Found wraps a successfully fetched player
func Found(p *Player) LookupResult {
	if p == nil {
		return Unavailable(nil)
	}
	return LookupResult{Status: LookupFound, Player: p}
}

// Unavailable marks a lookup that produced no usable data
func Unavailable(err error) LookupResult {
	return LookupResult{Status: LookupUnavailable, Err: err}
}

// Enrich joins a roster entry with a lookup result. Unavailable lookups and
// players without a clan fall back to the NoClan placeholders.
func Enrich(entry RosterEntry, res LookupResult) EnrichedEntry {
	enriched := EnrichedEntry{
		RosterEntry:     entry,
		CurrentClanName: NoClanName,
		CurrentClanTag:  NoClanTag,
	}

	if res.Status != LookupFound || res.Player == nil {
		return enriched
	}

	if res.Player.TownHallLevel > 0 {
		th := res.Player.TownHallLevel
		enriched.CurrentTownHall = &th
	}

	clan := res.Player.Clan
	if clan == nil {
		return enriched
	}
	if clan.Name != "" {
		enriched.CurrentClanName = clan.Name
	}
	if clan.Tag != "" {
		enriched.CurrentClanTag = clan.Tag
	}
	enriched.IsInAssignedClan = entry.AssignedClanTag != "" && tag.Equal(entry.AssignedClanTag, clan.Tag)

	return enriched
}
