package linkengine

import (
	"errors"
	"net/url"
	"regexp"
	"strings"
)

// ErrInvalidURL / ErrInvalidCode 是领域层对输入不合法的统一错误，
// 上层可以稳定地映射成 400，不需要关心校验细节。
var ErrInvalidURL = errors.New("invalid url")
var ErrInvalidCode = errors.New("invalid code")

// ValidateURL 校验目标长链接的最小要求：
// - scheme 必须是 http/https
// - host 不能为空
func ValidateURL(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return ErrNullProperty
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ErrInvalidURL
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ErrInvalidURL
	}
	if strings.TrimSpace(u.Host) == "" {
		return ErrInvalidURL
	}
	return nil
}

var codeRe = regexp.MustCompile(`^[A-Za-z0-9]{3,32}$`)

var reservedCodes = map[string]struct{}{
	"api":     {},
	"healthz": {},
	"metrics": {},
	"favicon": {},
}

// ValidateCode 校验用户自定义短码：
// - 仅允许字母/数字
// - 长度 3~32
// - 禁止与已有路由前缀冲突
func ValidateCode(code string) error {
	code = strings.TrimSpace(code)
	if !codeRe.MatchString(code) {
		return ErrInvalidCode
	}
	if _, ok := reservedCodes[strings.ToLower(code)]; ok {
		return ErrInvalidCode
	}
	return nil
}
