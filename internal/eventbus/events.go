package eventbus

import (
	"github.com/annel0/rescue-sim/internal/sensor"
	"github.com/annel0/rescue-sim/internal/vec"
)

// TickEvent - итог тика эпизода
type TickEvent struct {
	EpisodeID  string `json:"episode_id"`
	Tick       int    `json:"tick"`
	Committed  int    `json:"committed"`
	Rejected   int    `json:"rejected"`
	Detections int    `json:"detections"`
	Messages   int    `json:"messages"`
	Done       bool   `json:"done"`
}

// DetectionEvent - пациент в конусе наблюдателя
type DetectionEvent struct {
	EpisodeID string           `json:"episode_id"`
	Detection sensor.Detection `json:"detection"`
}

// MoveRejectedEvent - ход агента отклонён препятствием
type MoveRejectedEvent struct {
	EpisodeID string   `json:"episode_id"`
	Tick      int      `json:"tick"`
	AgentID   int      `json:"agent_id"`
	Kind      string   `json:"kind"`
	From      vec.Vec2 `json:"from"`
	To        vec.Vec2 `json:"to"`
}

// EpisodeEvent - завершение эпизода
type EpisodeEvent struct {
	EpisodeID string `json:"episode_id"`
	Ticks     int    `json:"ticks"`
	Reason    string `json:"reason"` // done, max_ticks, cancelled
}
