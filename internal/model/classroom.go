package model

// Classroom 班级表 对应 classrooms
type Classroom struct {
	ClassroomID string `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"classroom_id"`
	Name        string `gorm:"type:varchar(100);not null"                     json:"name"`
	TeacherID   string `gorm:"type:varchar(64);not null;index"                json:"teacher_id"`
	BaseModel
}

// TableName 指定表名
func (Classroom) TableName() string { return "classrooms" }
