package domain

import (
	"time"

	"github.com/google/uuid"
)

type UserStatus string

const (
	UserStatusActive   UserStatus = "active"
	UserStatusDisabled UserStatus = "disabled"
)

// User is a staff member acting on ledgers; resolved for audit attribution.
type User struct {
	ID        uuid.UUID
	Email     string
	Name      string
	Status    UserStatus
	CreatedAt time.Time
}

type Business struct {
	ID            uuid.UUID
	Name          string
	AccountPrefix string
	CreatedAt     time.Time
}

type Customer struct {
	ID         uuid.UUID
	BusinessID uuid.UUID
	Name       string
	Email      *string
	Phone      *string
	CreatedAt  time.Time
}
