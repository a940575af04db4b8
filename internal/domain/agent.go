package domain

import (
	"errors"
	"time"
)

// ErrNotFound is returned when no agent matches the requested ID.
var ErrNotFound = errors.New("agent not found")

// ModelType identifies the generation model an agent talks to.
type ModelType string

const (
	ModelFlash ModelType = "gemini-3-flash-preview"
	ModelPro   ModelType = "gemini-3-pro-preview"
)

// Models lists the selectable models, default first.
var Models = []ModelType{ModelFlash, ModelPro}

// Valid reports whether m is one of the known models.
func (m ModelType) Valid() bool {
	return m == ModelFlash || m == ModelPro
}

// DefaultIcon is used when a draft has no icon selected.
const DefaultIcon = "🤖"

// IconPalette is the fixed set of glyphs offered by the editor.
// Icons outside the palette are still accepted.
var IconPalette = []string{"🤖", "💻", "🎨", "📚", "🌍", "🛠️", "🧬", "⚡", "🧠", "💼", "🏡", "🎵"}

// Agent is a persisted persona configuration.
type Agent struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	SystemInstruction string    `json:"systemInstruction"`
	Model             ModelType `json:"model"`
	Icon              string    `json:"icon"`
	CreatedAt         int64     `json:"createdAt"` // Unix milliseconds
}

// Created returns CreatedAt as a time.Time.
func (a Agent) Created() time.Time {
	return time.UnixMilli(a.CreatedAt)
}

// Index returns the position of the agent with the given ID, or -1.
func Index(agents []Agent, id string) int {
	for i, a := range agents {
		if a.ID == id {
			return i
		}
	}
	return -1
}
