package domain

import "time"

// GenerationRecord is one persisted poster generation, kept for the history page.
type GenerationRecord struct {
	ID        string    `json:"id"`
	Idea      string    `json:"idea,omitempty"`
	Prompt    string    `json:"prompt"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Count     int       `json:"count"`
	Seed      int64     `json:"seed"`
	ImageURLs []string  `json:"image_urls"`
	Failures  []string  `json:"failures,omitempty"`
	Locale    string    `json:"locale,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
