package service

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/arenahub/playground-client/internal/model"
)

const (
	pathLogin          = "/auth/login"
	pathPlayerLogin    = "/auth/player/login"
	pathRegister       = "/auth/register"
	pathQuickRegister  = "/auth/quick-register"
	pathForgotPassword = "/auth/forgot-password"
)

type RegisterRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone,omitempty"`
	Password string `json:"password"`
}

// QuickRegisterRequest creates a guest account during checkout.
type QuickRegisterRequest struct {
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
}

type authResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"accessToken"`
	UserType    string `json:"userType"`
	Portal      *struct {
		AccessToken  string `json:"accessToken"`
		RefreshToken string `json:"refreshToken"`
		AcademyID    string `json:"academyId"`
		PlayerID     string `json:"playerId"`
	} `json:"portal"`
}

func (r authResponse) toLoginResult(fallback model.UserType) (*model.LoginResult, error) {
	token := r.Token
	if token == "" {
		token = r.AccessToken
	}
	if token == "" {
		return nil, fmt.Errorf("auth response carried no token")
	}

	result := &model.LoginResult{UserType: fallback, BearerToken: token}
	if r.UserType == string(model.UserTypePlayer) || r.UserType == string(model.UserTypePublic) {
		result.UserType = model.UserType(r.UserType)
	}
	if r.Portal != nil {
		if r.Portal.AccessToken != "" || r.Portal.RefreshToken != "" {
			result.PortalTokens = &model.PortalTokens{Access: r.Portal.AccessToken, Refresh: r.Portal.RefreshToken}
		}
		result.PortalAcademyID = r.Portal.AcademyID
		result.PortalPlayerID = r.Portal.PlayerID
	}
	return result, nil
}

type AuthAPI struct {
	api API
}

func NewAuthAPI(api API) *AuthAPI {
	return &AuthAPI{api: api}
}

// LoginPublic and LoginPlayer return raw errors: the session store owns the
// state transition and surfaces them.
func (a *AuthAPI) LoginPublic(ctx context.Context, creds model.Credentials) (*model.LoginResult, error) {
	var resp authResponse
	if err := post(ctx, a.api, pathLogin, creds, &resp); err != nil {
		return nil, err
	}
	return resp.toLoginResult(model.UserTypePublic)
}

func (a *AuthAPI) LoginPlayer(ctx context.Context, creds model.Credentials) (*model.LoginResult, error) {
	var resp authResponse
	if err := post(ctx, a.api, pathPlayerLogin, creds, &resp); err != nil {
		return nil, err
	}
	return resp.toLoginResult(model.UserTypePlayer)
}

func (a *AuthAPI) Register(ctx context.Context, req RegisterRequest) Result[*model.LoginResult] {
	return call(func() (*model.LoginResult, error) {
		var resp authResponse
		if err := post(ctx, a.api, pathRegister, req, &resp); err != nil {
			return nil, err
		}
		return resp.toLoginResult(model.UserTypePublic)
	})
}

func (a *AuthAPI) QuickRegister(ctx context.Context, req QuickRegisterRequest) Result[*model.LoginResult] {
	return call(func() (*model.LoginResult, error) {
		var resp authResponse
		if err := post(ctx, a.api, pathQuickRegister, req, &resp); err != nil {
			return nil, err
		}
		return resp.toLoginResult(model.UserTypePublic)
	})
}

// ForgotPassword works with or without a session.
func (a *AuthAPI) ForgotPassword(ctx context.Context, email string) Result[struct{}] {
	return call(func() (struct{}, error) {
		err := post(ctx, a.api, pathForgotPassword, map[string]string{"email": email}, nil)
		if err == nil {
			log.Info().Msg("password reset requested")
		}
		return struct{}{}, err
	})
}
