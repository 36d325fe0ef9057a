package accounting

import "time"

// Role is the access level of a chat user
type Role string

const (
	RoleAdmin      Role = "admin"
	RoleAuthorized Role = "authorized"
)

// IsValid reports whether r grants printing
func (r Role) IsValid() bool {
	return r == RoleAdmin || r == RoleAuthorized
}

// UserModel is a chat user allowed to print
type UserModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement:false"`
	Role      Role   `gorm:"type:varchar(20);not null"`
	Name      string `gorm:"type:varchar(200)"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

// TableName returns the table name for GORM
func (UserModel) TableName() string {
	return "users"
}

// PrintLogModel is one delivered print job
type PrintLogModel struct {
	ID        uint      `gorm:"primaryKey"`
	Date      time.Time `gorm:"index;not null"`
	ChatID    int64     `gorm:"index;not null"`
	FileName  string    `gorm:"type:varchar(500)"`
	Pages     int       `gorm:"not null"`
	Copies    int       `gorm:"not null"`
	PrintType string    `gorm:"type:varchar(100)"`
	Color     bool
	JobID     string `gorm:"type:varchar(64);index"`
}

// TableName returns the table name for GORM
func (PrintLogModel) TableName() string {
	return "print_logs"
}

// PrintLog is the data recorded for a delivered job
type PrintLog struct {
	ChatID    int64
	FileName  string
	Pages     int
	Copies    int
	PrintType string
	Color     bool
	JobID     string
}
