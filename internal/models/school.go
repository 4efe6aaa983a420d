package models

import "time"

// Student is the read-only view of a learner used to label progress reports.
type Student struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	Name            string    `gorm:"size:255;not null" json:"name"`
	AdmissionNumber string    `gorm:"size:64;index" json:"admission_number"`
	ClassID         uint      `gorm:"index" json:"class_id"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// Teacher is the read-only view of a staff member who authors reports.
type Teacher struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"size:255;not null" json:"name"`
	Email     string    `gorm:"size:255" json:"email"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Subject is a taught course such as Mathematics.
type Subject struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:128;not null" json:"name"`
	Code string `gorm:"size:32" json:"code"`
}

// Class groups students for a school year.
type Class struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:128;not null" json:"name"`
}
