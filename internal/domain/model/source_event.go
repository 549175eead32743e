package model

import "time"

// SourceEvent is a structured raid pushed by a relay (Discord bot, Twitch
// EventSub). It bypasses the line parser.
type SourceEvent struct {
	ID     string    `json:"id"`
	Source Source    `json:"source"`
	Raider string    `json:"raider"`
	Target string    `json:"target"`
	Count  int       `json:"count"`
	Date   time.Time `json:"date"`
}

// Event converts the relay payload into an unclassified RaidEvent.
func (e SourceEvent) Event() RaidEvent {
	return NewRaidEvent(e.Raider, e.Target, e.Date, e.Source, e.Count)
}

// Accepted is the persisted form of e under id.
func (e SourceEvent) Accepted(id string) AcceptedRaid {
	ev := e.Event()
	return AcceptedRaid{ID: id, Raider: e.Raider, Target: e.Target, Date: e.Date, Count: ev.Count, Source: e.Source}
}
