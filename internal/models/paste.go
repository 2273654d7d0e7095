package models

import (
	"strings"
	"time"
)

// Paste is a highlighted code snippet.
type Paste struct {
	ID        int64     `json:"id"`
	AreaID    string    `json:"area_id"`
	UserKey   string    `json:"user_key"`
	CodeRaw   string    `json:"code_raw"`
	Code      string    `json:"code"`
	Language  string    `json:"language"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Lines returns the number of lines in the raw code.
func (p *Paste) Lines() int {
	if p.CodeRaw == "" {
		return 0
	}
	s := strings.ReplaceAll(p.CodeRaw, "\r\n", "\n")
	return len(strings.Split(strings.TrimSuffix(s, "\n"), "\n"))
}
