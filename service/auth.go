package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/Okprime/MVP-Match-Assessment/models"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenTTL          = 24 * time.Hour
	minPasswordLength = 8
	maxPasswordLength = 20
)

type AuthService struct {
	repo      Repository
	jwtSecret string
}

func NewAuthService(repo Repository, jwtSecret string) AuthService {
	return AuthService{
		repo:      repo,
		jwtSecret: jwtSecret,
	}
}

// Register creates a user with an empty balance and returns its access token.
func (s AuthService) Register(
	ctx context.Context,
	username, password, role string,
) (string, error) {
	username, err := normalizeUsername(username)
	if err != nil {
		return "", err
	}
	if len(password) < minPasswordLength || len(password) > maxPasswordLength {
		return "", fmt.Errorf(
			"%w: password must be %d to %d characters",
			models.ErrInvalidInput, minPasswordLength, maxPasswordLength,
		)
	}
	parsedRole, err := models.ParseRole(role)
	if err != nil {
		return "", fmt.Errorf("%w: %v", models.ErrInvalidInput, err)
	}

	_, err = s.repo.GetUserByUsername(ctx, username)
	switch {
	case err == nil:
		return "", fmt.Errorf("%w: username %q already exists", models.ErrConflict, username)
	case !errors.Is(err, models.ErrNotFound):
		return "", err
	}

	hashed, err := bcryptHash(password)
	if err != nil {
		return "", err
	}
	user, err := s.repo.CreateUser(ctx, models.User{
		Username: username,
		Password: hashed,
		Role:     parsedRole,
	})
	if err != nil {
		return "", err
	}
	return generateJWT(user, s.jwtSecret)
}

func (s AuthService) Login(
	ctx context.Context,
	username, password string,
) (string, error) {
	user, err := s.repo.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", fmt.Errorf("%w: invalid credentials", models.ErrUnauthorized)
		}
		return "", err
	}
	if !bcryptCompare(user.Password, password) {
		return "", fmt.Errorf("%w: invalid credentials", models.ErrUnauthorized)
	}
	return generateJWT(user, s.jwtSecret)
}

// ParseToken resolves a signed access token into the principal it was issued for.
func (s AuthService) ParseToken(tokenStr string) (models.Principal, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(s.jwtSecret), nil
	})
	if err != nil || !token.Valid {
		return models.Principal{}, fmt.Errorf("%w: invalid token", models.ErrUnauthorized)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return models.Principal{}, fmt.Errorf("%w: invalid token claims", models.ErrUnauthorized)
	}
	id, err := strconv.Atoi(stringify(claims["sub"]))
	if err != nil {
		return models.Principal{}, fmt.Errorf("%w: invalid user id in token", models.ErrUnauthorized)
	}
	role, err := models.ParseRole(stringify(claims["role"]))
	if err != nil {
		return models.Principal{}, fmt.Errorf("%w: invalid role in token", models.ErrUnauthorized)
	}
	return models.Principal{ID: id, Role: role}, nil
}

func normalizeUsername(username string) (string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return "", fmt.Errorf("%w: username is required", models.ErrInvalidInput)
	}
	return username, nil
}

func bcryptHash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword(
		[]byte(password),
		bcrypt.DefaultCost,
	)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func bcryptCompare(hashed, password string) bool {
	err := bcrypt.CompareHashAndPassword(
		[]byte(hashed),
		[]byte(password),
	)
	return err == nil
}

func generateJWT(
	user models.User,
	secret string,
) (string, error) {
	token := jwt.NewWithClaims(
		jwt.SigningMethodHS256,
		jwt.MapClaims{
			"sub":      user.ID,
			"username": user.Username,
			"role":     user.Role.String(),
			"exp":      time.Now().Add(tokenTTL).Unix(),
		},
	)
	tokenStr, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", err
	}
	return tokenStr, nil
}

func stringify(val interface{}) string {
	switch v := val.(type) {
	case string:
		return v
	case float64:
		return strconv.Itoa(int(v))
	default:
		return ""
	}
}
