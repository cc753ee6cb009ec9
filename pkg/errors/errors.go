// Package errors 包边界使用的错误辅助与通用哨兵
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound 查找的对象不存在（如 secret key）
	ErrNotFound = errors.New("not found")
	// ErrInvalidArg 参数不合法
	ErrInvalidArg = errors.New("invalid argument")
	// ErrNotConfigured 依赖的外部服务未配置
	ErrNotConfigured = errors.New("not configured")
)

// Wrap 包装错误并附加消息
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// Wrapf 带格式的 Wrap
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is 同标准库 errors.Is
func Is(err, target error) bool { return errors.Is(err, target) }
