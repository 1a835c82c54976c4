package errs

// 业务错误码：前三位是 HTTP 状态码，后两位是同类下的序号
const (
	ArgsError           = 40000
	ServerInternalError = 50000

	// 401xx 认证
	WrongCredentialsError   = 40101
	MissingCredentialsError = 40102
	TokenCreationError      = 40103
	InvalidTokenError       = 40104
	TokenExpiredError       = 40105
	UserFrozenError         = 40106
	LoginUserFrozenError    = 40107

	// 403xx 权限
	NeedAdminError      = 40301
	NotGroupAdminError  = 40302
	SpeakForbiddenError = 40303
	CanNotReviewError   = 40304

	// 404xx 不存在
	UserNotExistError     = 40401
	UserNameNotExistError = 40402
	GroupNotExistError    = 40403
	UserNotInGroupError   = 40404
	NotFriendError        = 40405

	// 409xx 冲突
	UserNameExistError = 40901

	// 304xx 状态未变化
	AlreadyInGroupError   = 30401
	UserForbiddenError    = 30402
	UserNotForbiddenError = 30403
	AlreadyFriendError    = 30404
	RequestWaitingError   = 30405
)

// HTTPStatus 从业务错误码还原 HTTP 状态码
func HTTPStatus(code int) int {
	if code >= 10000 {
		return code / 100
	}
	return code
}
