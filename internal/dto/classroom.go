package dto

// ── 班级模块 DTO ──

// CreateClassroomRequest 创建班级请求
type CreateClassroomRequest struct {
	Name string `json:"name" binding:"required,min=1,max=100"`
}

// ClassroomResponse 班级信息响应
type ClassroomResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	TeacherID string `json:"teacher_id"`
	CreatedAt string `json:"created_at"`
}

// EnrollRequest 教师直接添加学生
type EnrollRequest struct {
	StudentID string `json:"student_id" binding:"required,max=64"`
}

// EnrollmentResponse 成员关系响应
type EnrollmentResponse struct {
	ClassroomID     string  `json:"classroom_id"`
	StudentID       string  `json:"student_id"`
	Source          string  `json:"source"`
	InvitationID    *string `json:"invitation_id,omitempty"`
	AlreadyEnrolled bool    `json:"already_enrolled"`
	CreatedAt       string  `json:"created_at,omitempty"`
}

// EnrollmentListResponse 成员列表（分页）
type EnrollmentListResponse struct {
	Items    []EnrollmentResponse `json:"items"`
	Total    int64                `json:"total"`
	Page     int                  `json:"page"`
	PageSize int                  `json:"page_size"`
}

// EnrollmentEvent 成员加入事件
type EnrollmentEvent struct {
	ClassroomID  string  `json:"classroom_id"`
	StudentID    string  `json:"student_id"`
	Source       string  `json:"source"`
	InvitationID *string `json:"invitation_id,omitempty"`
	OccurredAt   string  `json:"occurred_at"`
}
