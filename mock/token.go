package mock

import (
	"github.com/moneta-app/moneta"
)

type TokenService struct {
	IssueAccessFn      func(uid moneta.UserId, setId string) (string, error)
	IssueRefreshFn     func(uid moneta.UserId, setId string) (string, error)
	IssueSingleUseFn   func(class moneta.TokenClass, uid moneta.UserId, email moneta.Email) (string, error)
	VerifyAccessFn     func(token string) (moneta.AccessClaims, error)
	VerifyRefreshFn    func(token string) (moneta.AccessClaims, error)
	VerifySingleUseFn  func(class moneta.TokenClass, token string) (moneta.EmailClaims, error)
	DecodeUnverifiedFn func(token string) (moneta.EmailClaims, error)
}

func (s TokenService) IssueAccess(uid moneta.UserId, setId string) (string, error) {
	return s.IssueAccessFn(uid, setId)
}

func (s TokenService) IssueRefresh(uid moneta.UserId, setId string) (string, error) {
	return s.IssueRefreshFn(uid, setId)
}

func (s TokenService) IssueSingleUse(class moneta.TokenClass, uid moneta.UserId, email moneta.Email) (string, error) {
	return s.IssueSingleUseFn(class, uid, email)
}

func (s TokenService) VerifyAccess(token string) (moneta.AccessClaims, error) {
	return s.VerifyAccessFn(token)
}

func (s TokenService) VerifyRefresh(token string) (moneta.AccessClaims, error) {
	return s.VerifyRefreshFn(token)
}

func (s TokenService) VerifySingleUse(class moneta.TokenClass, token string) (moneta.EmailClaims, error) {
	return s.VerifySingleUseFn(class, token)
}

func (s TokenService) DecodeUnverified(token string) (moneta.EmailClaims, error) {
	return s.DecodeUnverifiedFn(token)
}
