package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// User is a game host. Password holds the stored credential in whichever
// scheme it currently uses and is never serialized.
type User struct {
	ID                int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Username          string          `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"`
	Password          string          `gorm:"type:varchar(255);not null" json:"-"`
	Name              string          `gorm:"type:varchar(128)" json:"name"`
	ShopName          string          `gorm:"type:varchar(128)" json:"shop_name"`
	Credit            decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"credit"`
	Balance           decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"balance"`
	CommissionPercent decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"commission_percent"`
	Role              string          `gorm:"type:varchar(20);not null;default:user" json:"role"`
	IsRestricted      bool            `gorm:"not null;default:false" json:"is_restricted"`
	CommissionEarned  decimal.Decimal `gorm:"type:decimal(20,2);not null;default:0" json:"commission_earned"` // only settlement increments it
	CreatedAt         time.Time       `gorm:"autoCreateTime" json:"created_at"`
}

func (User) TableName() string {
	return "users"
}
