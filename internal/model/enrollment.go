package model

import "time"

// EnrollmentSource 成员关系来源
type EnrollmentSource string

const (
	EnrollmentViaInvitation EnrollmentSource = "invitation"
	EnrollmentViaTeacher    EnrollmentSource = "teacher"
)

// Enrollment 班级成员表 对应 enrollments
// (classroom_id, student_id) 唯一；创建后不修改，只能删除
type Enrollment struct {
	EnrollmentID string           `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"enrollment_id"`
	ClassroomID  string           `gorm:"type:uuid;not null"                             json:"classroom_id"`
	StudentID    string           `gorm:"type:varchar(64);not null"                      json:"student_id"`
	Source       EnrollmentSource `gorm:"type:varchar(16);not null"                      json:"source"`
	InvitationID *string          `gorm:"type:uuid"                                      json:"invitation_id,omitempty"`
	CreatedBy    string           `gorm:"type:varchar(64);not null"                      json:"created_by"`
	CreatedAt    time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP"             json:"created_at"`
}

// TableName 指定表名
func (Enrollment) TableName() string { return "enrollments" }
