package errors

import (
	"context"
	"database/sql/driver"
	"errors"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrTransient 暂时性存储错误（超时、连接中断、序列化失败等）
// 调用方可以重试，但不应与状态冲突类错误混为一谈
var ErrTransient = errors.New("存储服务暂时不可用")

type transientError struct {
	err error
}

func (e *transientError) Error() string {
	return ErrTransient.Error() + ": " + e.err.Error()
}

func (e *transientError) Unwrap() []error {
	return []error{ErrTransient, e.err}
}

// Transient 将 err 标记为暂时性错误
func Transient(err error) error {
	if err == nil || errors.Is(err, ErrTransient) {
		return err
	}
	return &transientError{err: err}
}

// IsTransient 判断 err 是否为暂时性错误
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

// Classify 识别底层存储返回的暂时性错误并包装为 ErrTransient，其余错误原样返回
func Classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return Transient(err)
	}
	if errors.Is(err, driver.ErrBadConn) {
		return Transient(err)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return Transient(err)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == "40001", pgErr.Code == "40P01": // serialization_failure / deadlock_detected
			return Transient(err)
		case pgErr.Code == "53300", pgErr.Code == "57P01", pgErr.Code == "57P03":
			return Transient(err)
		case strings.HasPrefix(pgErr.Code, "08"): // connection_exception
			return Transient(err)
		}
		return err
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return Transient(err)
	}
	return err
}
