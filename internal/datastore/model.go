package datastore

import "time"

// Node is a sensor node in the node directory. ReferredBy is the inviting node, nil for roots.
type Node struct {
	ID         string    `gorm:"primaryKey;size:64" json:"id"`
	ReferredBy *string   `gorm:"size:64;index" json:"referred_by"`
	CreatedAt  time.Time `json:"created_at"`
}

// TableName pins the table name shared with the REST backend.
func (Node) TableName() string { return "nodes" }

// Reading is one immutable sensor reading. Location is the hex encoded packed point.
type Reading struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	NodeID      string    `gorm:"size:64;index;not null" json:"node_id"`
	Location    string    `gorm:"size:128" json:"location"`
	PressureHpa float64   `gorm:"column:pressure_hpa" json:"pressure_hpa"`
	DecibelDB   float64   `gorm:"column:decibel_db" json:"decibel_db"`
	Timestamp   time.Time `gorm:"index" json:"timestamp"`
}

// TableName pins the table name shared with the REST backend.
func (Reading) TableName() string { return "readings" }
