// Package specialerror 把底层错误归一成业务错误码。
// 各存储驱动的错误类型在 main 里注册转换器，响应信封统一走 ErrCode，
// 业务层不必感知驱动细节。
package specialerror

import (
	"errors"

	"IMProject/tools/errs"
)

var handlers []func(err error) errs.CodeErrorI

// AddErrHandler 注册一个转换器，按注册顺序匹配，返回 nil 表示不认识
func AddErrHandler(h func(err error) errs.CodeErrorI) error {
	if h == nil {
		return errs.New("nil handler")
	}
	handlers = append(handlers, h)
	return nil
}

// ErrCode 还原错误里携带的业务错误码；本身不是业务错误时
// 依次询问注册的转换器，都不认识返回 nil。
func ErrCode(err error) errs.CodeErrorI {
	var codeErr errs.CodeErrorI
	if errors.As(err, &codeErr) {
		return codeErr
	}
	for _, h := range handlers {
		if ce := h(err); ce != nil {
			return ce
		}
	}
	return nil
}
