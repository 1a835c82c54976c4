package errs

// 对外暴露的业务错误，Msg 为用户可见文案，Detail 追加具体信息
var (
	ErrArgs           = NewCodeError(ArgsError, "参数错误")
	ErrInternalServer = NewCodeError(ServerInternalError, "系统异常，请稍后再试")

	// 认证
	ErrWrongCredentials   = NewCodeError(WrongCredentialsError, "用户名或密码错误")
	ErrMissingCredentials = NewCodeError(MissingCredentialsError, "登录参数丢失")
	ErrTokenCreation      = NewCodeError(TokenCreationError, "Token创建失败")
	ErrInvalidToken       = NewCodeError(InvalidTokenError, "无效的Token")
	ErrTokenExpired       = NewCodeError(TokenExpiredError, "Token已过期")
	ErrNeedAdmin          = NewCodeError(NeedAdminError, "需要管理员权限")

	// 用户
	ErrUserNameExist    = NewCodeError(UserNameExistError, "用户名已存在")
	ErrUserNotExist     = NewCodeError(UserNotExistError, "用户不存在")
	ErrUserNameNotExist = NewCodeError(UserNameNotExistError, "用户名不存在")
	ErrUserFrozen       = NewCodeError(UserFrozenError, "用户已被冻结")
	ErrLoginUserFrozen  = NewCodeError(LoginUserFrozenError, "当前登录用户已被冻结")

	// 群组
	ErrGroupNotExist    = NewCodeError(GroupNotExistError, "群组不存在")
	ErrUserNotInGroup   = NewCodeError(UserNotInGroupError, "用户不在群组中")
	ErrAlreadyInGroup   = NewCodeError(AlreadyInGroupError, "用户已在群组中")
	ErrUserForbidden    = NewCodeError(UserForbiddenError, "用户已被禁言")
	ErrUserNotForbidden = NewCodeError(UserNotForbiddenError, "用户未被禁言")
	ErrNotGroupAdmin    = NewCodeError(NotGroupAdminError, "您不是群管理员")
	ErrSpeakForbidden   = NewCodeError(SpeakForbiddenError, "您已被禁言")

	// 好友
	ErrNotFriend      = NewCodeError(NotFriendError, "对方不是您的好友")
	ErrCanNotReview   = NewCodeError(CanNotReviewError, "您不是该好友请求的目标对象，无权批准")
	ErrAlreadyFriend  = NewCodeError(AlreadyFriendError, "已经是好友")
	ErrRequestWaiting = NewCodeError(RequestWaitingError, "好友请求等待审核中")
)
