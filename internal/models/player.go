package models

import "clanchecker/service/internal/tag"

// ClanRef is the clan reference embedded in a player record
type ClanRef struct {
	Tag       string `json:"tag"`
	Name      string `json:"name"`
	ClanLevel int    `json:"clanLevel,omitempty"`
}

// Player is the subset of the Clash of Clans player record the service uses
type Player struct {
	Tag           string   `json:"tag"`
	Name          string   `json:"name"`
	TownHallLevel int      `json:"townHallLevel"`
	ExpLevel      int      `json:"expLevel,omitempty"`
	Clan          *ClanRef `json:"clan,omitempty"`
}

// PlayerInput is the raw player payload returned by the API.
// Error responses share the endpoint and carry Reason/Message instead of a name.
type PlayerInput struct {
	Tag           string   `json:"tag"`
	Name          string   `json:"name"`
	TownHallLevel int      `json:"townHallLevel"`
	ExpLevel      int      `json:"expLevel"`
	Clan          *ClanRef `json:"clan,omitempty"`
	Reason        string   `json:"reason,omitempty"`
	Message       string   `json:"message,omitempty"`
}

// ToPlayer converts PlayerInput (from API) to Player model
func (pi *PlayerInput) ToPlayer() *Player {
	player := &Player{
		Tag:           tag.Normalize(pi.Tag),
		Name:          pi.Name,
		TownHallLevel: pi.TownHallLevel,
		ExpLevel:      pi.ExpLevel,
	}

	if pi.Clan != nil && pi.Clan.Tag != "" {
		player.Clan = &ClanRef{
			Tag:       tag.Normalize(pi.Clan.Tag),
			Name:      pi.Clan.Name,
			ClanLevel: pi.Clan.ClanLevel,
		}
	}

	return player
}
