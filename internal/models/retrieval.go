package models

import "time"

// Message is one conversation turn as sent by the client.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// RoleSystem marks the synthetic message the pipeline appends.
const RoleSystem = "system"

// RetrievedDocument is the digest of one search result handed to the model.
// Field order and JSON names match the digest the front-end prompt expects.
type RetrievedDocument struct {
	ID     string `json:"id"`
	URL    string `json:"url"`
	Title  string `json:"title"`
	Author string `json:"author"`
	Text   string `json:"text"`
}

// RetrievalEvent is published after a successful content fetch.
type RetrievalEvent struct {
	RequestID string              `json:"request_id"`
	Timestamp time.Time           `json:"timestamp"`
	Keywords  []string            `json:"keywords"`
	Documents []RetrievedDocument `json:"documents"`
}

// ArchivedDocument represents the canonical structure stored in Elasticsearch.
type ArchivedDocument struct {
	ID         string    `json:"id"`
	URL        string    `json:"url"`
	Title      string    `json:"title"`
	Author     string    `json:"author"`
	Text       string    `json:"text"`
	Categories []string  `json:"categories"`
	Terms      []string  `json:"terms"`
	RequestID  string    `json:"request_id"`
	Timestamp  time.Time `json:"timestamp"`
}
