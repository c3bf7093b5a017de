package model

type UserRole string

const (
	RoleSuperAdmin            UserRole = "super_admin"
	RoleEventAdmin            UserRole = "event_admin"
	RoleParticipant           UserRole = "participant"
	RoleRegistrationCommittee UserRole = "registration_committee"
)

// IsAdmin 超级管理员与赛事管理员均可查看完整成绩数据
func (r UserRole) IsAdmin() bool {
	return r == RoleSuperAdmin || r == RoleEventAdmin
}

// swagger:model User
type User struct {
	BaseModel
	Name  string   `gorm:"size:100;not null" json:"name"`
	Email string   `gorm:"size:100;unique;not null" json:"email"`
	Role  UserRole `gorm:"size:32;default:'participant'" json:"role"`
}

func (User) TableName() string {
	return "users"
}
