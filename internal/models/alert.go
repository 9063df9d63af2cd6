package models

import (
	"fmt"
	"time"
)

// NearestLocation is the closest curated place to an epicentre.
type NearestLocation struct {
	Name      string
	LocalName string
	Distance  int
	Unit      string
}

// PostRef identifies a published social post.
type PostRef struct {
	PageID string
	PostID string
}

// Permalink returns the public URL of the post.
func (p PostRef) Permalink() string {
	if p.PageID == "" || p.PostID == "" {
		return ""
	}
	return fmt.Sprintf("https://www.facebook.com/%s/posts/%s", p.PageID, p.PostID)
}

// RenderRequest carries everything the map renderer needs for one quake.
type RenderRequest struct {
	QuakeID    string
	Latitude   float64
	Longitude  float64
	Magnitude  float64
	DepthKm    float64
	OriginUTC  time.Time
	Zoom       int
	RingRadius int
}

// HeartbeatRecord is the single liveness slot written after every cycle.
type HeartbeatRecord struct {
	Status string    `json:"status"`
	Time   time.Time `json:"time"`
}
