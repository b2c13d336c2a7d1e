package service

import "errors"

// 错误分类。handler 层通过 errors.Is 映射为 HTTP 状态码。
var (
	// ErrNotFound 走完完整的回退链后仍未解析到资源
	ErrNotFound = errors.New("resource not found")

	// ErrPolicyViolation 操作违反资源语义,立即拒绝且不产生任何状态变更
	ErrPolicyViolation = errors.New("operation not allowed")

	// ErrProviderUnavailable 云厂商调用失败或超时
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrStoreFailure 本地持久化调用失败
	ErrStoreFailure = errors.New("store failure")
)
