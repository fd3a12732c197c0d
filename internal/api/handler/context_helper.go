package handler

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"blockward/backend/internal/model"
	"blockward/backend/internal/repository"
	pkgerrors "blockward/backend/pkg/errors"
	"blockward/backend/pkg/response"
)

// MustGetUserID 从 Gin 上下文中安全提取 user_id。
// 如果 JWT 中间件未正确注入 user_id，返回 false 并写入 401 响应。
// 调用方应在 ok=false 时直接 return。
func MustGetUserID(c *gin.Context) (string, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return s, true
}

// MustGetRole 从 Gin 上下文中安全提取 role。
func MustGetRole(c *gin.Context) (model.WalletRole, bool) {
	v, exists := c.Get("role")
	if !exists {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		response.Unauthorized(c, 10002, "未认证")
		return "", false
	}
	return model.WalletRole(s), true
}

// MustGetUUIDParam 读取 UUID 格式的路径参数并规范化。
// 格式不合法时写入 400 响应，请求不会到达存储层。
func MustGetUUIDParam(c *gin.Context, name string) (string, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		response.BadRequest(c, 10001, "参数校验失败")
		return "", false
	}
	return id.String(), true
}

// isPrivileged 教师与管理员可以代他人操作
func isPrivileged(role model.WalletRole) bool {
	return role == model.WalletRoleTeacher || role == model.WalletRoleAdmin
}

// handleStorageError 格式错误返回 400，存储暂时不可用返回 503，其余按内部错误处理
func handleStorageError(c *gin.Context, err error) {
	if errors.Is(err, repository.ErrInvalidInput) {
		response.BadRequest(c, 10001, "参数校验失败")
		return
	}
	if pkgerrors.IsTransient(err) {
		response.ServiceUnavailable(c)
		return
	}
	response.InternalError(c)
}
