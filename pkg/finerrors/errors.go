// Package finerrors 定义基金行政引擎的统一错误分类。
// 批处理与接口层依赖这里的哨兵错误做分支判断，业务层通过 Wrap 系列函数附加上下文。
package finerrors

import (
	"errors"
	"fmt"
	"net/http"
)

// 错误分类哨兵。所有引擎错误都可以通过 errors.Is 匹配到其中之一。
var (
	// ErrValidation 输入不合法或超出允许范围（例如交易日期早于账户成立日）。
	ErrValidation = errors.New("validation error")
	// ErrInvariant 操作会破坏份额/余额守恒，必须人工复核，绝不自动修正。
	ErrInvariant = errors.New("invariant violation")
	// ErrPrecondition 缺少必要的上游数据（例如截止日没有 NAV 标记或瀑布计算结果）。
	ErrPrecondition = errors.New("precondition failed")
	// ErrConflict 对已完成的键重复处理（例如同一期间的费用批次重跑）。
	ErrConflict = errors.New("conflict")
	// ErrNotFound 实体不存在。
	ErrNotFound = errors.New("not found")
)

// Validationf 构造带上下文的输入校验错误。
func Validationf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrValidation)...)
}

// Invariantf 构造带上下文的守恒破坏错误。
func Invariantf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrInvariant)...)
}

// Preconditionf 构造带上下文的前置条件缺失错误。
func Preconditionf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrPrecondition)...)
}

// Conflictf 构造带上下文的重复处理冲突错误。
func Conflictf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrConflict)...)
}

// NotFoundf 构造带上下文的未找到错误。
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

// IsValidation 判断是否为输入校验错误。
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }

// IsInvariant 判断是否为守恒破坏错误。
func IsInvariant(err error) bool { return errors.Is(err, ErrInvariant) }

// IsPrecondition 判断是否为前置条件缺失错误。
func IsPrecondition(err error) bool { return errors.Is(err, ErrPrecondition) }

// IsConflict 判断是否为重复处理冲突错误。
func IsConflict(err error) bool { return errors.Is(err, ErrConflict) }

// IsNotFound 判断是否为未找到错误。
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// HTTPStatus 返回错误分类对应的 HTTP 状态码，接口层统一使用。
func HTTPStatus(err error) int {
	switch {
	case IsValidation(err):
		return http.StatusBadRequest
	case IsInvariant(err):
		return http.StatusUnprocessableEntity
	case IsPrecondition(err):
		return http.StatusFailedDependency
	case IsConflict(err):
		return http.StatusConflict
	case IsNotFound(err):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
