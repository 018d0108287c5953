package analytics

import "time"

type EventType string

const (
	EventSkillSearch EventType = "skill_search"
)

// SkillSearchEvent is published once per served search request.
type SkillSearchEvent struct {
	Type       EventType `json:"type"`
	RequestID  string    `json:"request_id"`
	Query      string    `json:"query"`
	CacheHit   bool      `json:"cache_hit"`
	Shared     bool      `json:"shared"`
	LatencyMs  int64     `json:"latency_ms"`
	SkillCount int       `json:"skill_count"`
	TopSkills  []string  `json:"top_skills"`
	Timestamp  time.Time `json:"timestamp"`
}
