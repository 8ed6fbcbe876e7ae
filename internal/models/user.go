package models

import "time"

type UserRole string

const (
	RoleManager UserRole = "manager" // kooperatif yöneticisi
	RoleMember  UserRole = "member"  // üye (ortak)
)

type User struct {
	ID           uint     `gorm:"primaryKey"`
	Name         string   `gorm:"size:100;not null"`
	Email        string   `gorm:"size:100;uniqueIndex;not null"`
	Phone        string   `gorm:"size:20"`
	PasswordHash string   `gorm:"size:255;not null"`
	Role         UserRole `gorm:"size:20;not null"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
