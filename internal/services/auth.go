package services

import (
	"context"
	"net/http"

	"buskalo-bff/internal/models"
)

func (s *ServiceClient) Login(ctx context.Context, creds models.LoginRequest) (*models.TokenPair, error) {
	var pair models.TokenPair
	if err := s.sendJSON(ctx, http.MethodPost, "/auth/login/", "auth.login", "", creds, &pair); err != nil {
		return nil, err
	}
	return &pair, nil
}

func (s *ServiceClient) Register(ctx context.Context, data models.RegisterRequest) (*models.User, error) {
	var user models.User
	if err := s.sendJSON(ctx, http.MethodPost, "/auth/register/", "auth.register", "", data, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *ServiceClient) GetProfile(ctx context.Context, token string) (*models.User, error) {
	var user models.User
	if err := s.fetchJSON(ctx, "/auth/profile/", "auth.profile", token, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *ServiceClient) UpdateProfile(ctx context.Context, token string, form *Form) (*models.User, error) {
	var user models.User
	if err := s.sendForm(ctx, http.MethodPatch, "/auth/profile/", "auth.profile", token, form, &user); err != nil {
		return nil, err
	}
	return &user, nil
}
