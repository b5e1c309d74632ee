// Package errs 定义核心业务的错误分类。
//
// 每个错误都带有稳定的 Kind 和可以直接展示给用户的 Message。
// 校验、冲突、权限、状态策略类错误总是原样返回给调用方；
// 外部依赖错误由调用路径决定是降级、记录还是直接失败。
package errs

import (
	"errors"
	"fmt"

	pkgerrors "github.com/pkg/errors"
)

// Kind 错误分类
type Kind string

const (
	KindValidation         Kind = "validation"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindAuthorization      Kind = "authorization"
	KindPolicy             Kind = "policy"
	KindExternalDependency Kind = "external_dependency"
	KindInternal           Kind = "internal"
)

// Error 带分类的业务错误
type Error struct {
	Kind      Kind   `json:"kind"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
	cause     error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap 返回原始错误
func (e *Error) Unwrap() error {
	return e.cause
}

// Is 按Kind比较, 使 errors.Is(err, errs.Conflict("")) 之类的判断成立
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return e.Kind == t.Kind
}

// StackTrace 返回原始错误的堆栈
func (e *Error) StackTrace() pkgerrors.StackTrace {
	type stackTracer interface {
		StackTrace() pkgerrors.StackTrace
	}
	if st, ok := e.cause.(stackTracer); ok {
		return st.StackTrace()
	}
	return nil
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...interface{}) *Error {
	return newError(KindValidation, format, args...)
}

func NotFound(format string, args ...interface{}) *Error {
	return newError(KindNotFound, format, args...)
}

func Conflict(format string, args ...interface{}) *Error {
	return newError(KindConflict, format, args...)
}

func Authorization(format string, args ...interface{}) *Error {
	return newError(KindAuthorization, format, args...)
}

func Policy(format string, args ...interface{}) *Error {
	return newError(KindPolicy, format, args...)
}

// External 包装外部依赖(链网关)的失败, 默认可重试
func External(cause error, format string, args ...interface{}) *Error {
	e := newError(KindExternalDependency, format, args...)
	e.Retryable = true
	return e.WithCause(cause)
}

// Internal 包装存储等内部故障
func Internal(cause error, format string, args ...interface{}) *Error {
	return newError(KindInternal, format, args...).WithCause(cause)
}

// WithCause 附加原始错误, 并保证带有堆栈
func (e *Error) WithCause(cause error) *Error {
	if cause == nil {
		return e
	}
	type stackTracer interface {
		StackTrace() pkgerrors.StackTrace
	}
	if _, ok := cause.(stackTracer); !ok {
		cause = pkgerrors.WithStack(cause)
	}
	return &Error{Kind: e.Kind, Message: e.Message, Retryable: e.Retryable, cause: cause}
}

// KindOf 返回错误分类, 非业务错误视为 internal
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is 判断错误是否属于指定分类
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Message 返回可展示的错误信息
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
