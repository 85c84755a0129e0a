package marketstub

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"buskalo-bff/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

type userKey struct{}

// AddUser registers an account directly, for seeding.
func (s *Server) AddUser(username, email, password string) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(username, email, password)
}

func (s *Server) addUserLocked(username, email, password string) models.User {
	u := models.User{ID: s.id(), Username: username, Email: email}
	s.accounts[u.ID] = &account{user: u, password: password}
	s.byName[strings.ToLower(username)] = u.ID
	return u
}

// IssueToken mints an access token for userID, for seeding sessions.
func (s *Server) IssueToken(userID int64) (string, error) {
	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(userID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

func (s *Server) userFromToken(raw string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !token.Valid {
		return 0, fmt.Errorf("invalid token: %w", err)
	}
	return strconv.ParseInt(claims.Subject, 10, 64)
}

func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		parts := strings.Split(r.Header.Get("Authorization"), " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeDetail(w, http.StatusUnauthorized, "Authentication credentials were not provided.")
			return
		}

		uid, err := s.userFromToken(parts[1])
		if err != nil {
			writeDetail(w, http.StatusUnauthorized, "Given token not valid for any token type")
			return
		}

		s.mu.Lock()
		_, ok := s.accounts[uid]
		s.mu.Unlock()
		if !ok {
			writeDetail(w, http.StatusUnauthorized, "User not found")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), userKey{}, uid)))
	}
}

func currentUser(r *http.Request) int64 {
	uid, _ := r.Context().Value(userKey{}).(int64)
	return uid
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "JSON parse error")
		return
	}

	errs := fieldErrors{}
	required(errs, "username", req.Username)
	required(errs, "password", req.Password)
	if len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}

	s.mu.Lock()
	acc, ok := s.accounts[s.byName[strings.ToLower(req.Username)]]
	s.mu.Unlock()
	if !ok || acc.password != req.Password {
		writeDetail(w, http.StatusUnauthorized, "No active account found with the given credentials")
		return
	}

	access, err := s.IssueToken(acc.user.ID)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	refresh, err := s.IssueToken(acc.user.ID)
	if err != nil {
		writeDetail(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, models.TokenPair{Access: access, Refresh: refresh})
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		writeDetail(w, http.StatusBadRequest, "JSON parse error")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	errs := fieldErrors{}
	required(errs, "username", req.Username)
	required(errs, "email", req.Email)
	required(errs, "password", req.Password)
	if _, taken := s.byName[strings.ToLower(req.Username)]; taken && req.Username != "" {
		errs.add("username", "A user with that username already exists.")
	}
	if req.Password != "" && len(req.Password) < 8 {
		errs.add("password", "This password is too short. It must contain at least 8 characters.")
	}
	if len(errs) > 0 {
		writeJSON(w, http.StatusBadRequest, errs)
		return
	}

	writeJSON(w, http.StatusCreated, s.addUserLocked(req.Username, req.Email, req.Password))
}

func (s *Server) getProfile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	user := s.accounts[currentUser(r)].user
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, user)
}

func (s *Server) updateProfile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxFormMemory); err != nil {
		writeDetail(w, http.StatusBadRequest, "Multipart form parse error")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	acc := s.accounts[currentUser(r)]

	if v, ok := formValue(r, "username"); ok {
		if v == "" {
			writeJSON(w, http.StatusBadRequest, fieldErrors{"username": {"This field may not be blank."}})
			return
		}
		if other, taken := s.byName[strings.ToLower(v)]; taken && other != acc.user.ID {
			writeJSON(w, http.StatusBadRequest, fieldErrors{"username": {"A user with that username already exists."}})
			return
		}
		delete(s.byName, strings.ToLower(acc.user.Username))
		s.byName[strings.ToLower(v)] = acc.user.ID
		acc.user.Username = v
	}
	if v, ok := formValue(r, "email"); ok {
		acc.user.Email = v
	}
	if v, ok := formValue(r, "first_name"); ok {
		acc.user.FirstName = v
	}
	if v, ok := formValue(r, "last_name"); ok {
		acc.user.LastName = v
	}
	if v, ok := formValue(r, "bio"); ok {
		acc.user.Bio = v
	}
	if name, ok := uploadedFile(r, "avatar"); ok {
		acc.user.Avatar = "/media/avatars/" + name
	}
	writeJSON(w, http.StatusOK, acc.user)
}
