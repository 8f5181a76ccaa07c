package usecase

import (
	"errors"
	"time"

	"labeler-backend/pkg/config"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// AuthUsecase guards the operator API with a single password. When no
// password hash is configured the deployment is treated as local and auth is
// disabled entirely.
type AuthUsecase interface {
	Enabled() bool
	Login(password string) (string, error)
	ValidateToken(tokenString string) error
}

type authUsecase struct {
	config *config.Config
}

func NewAuthUsecase(cfg *config.Config) AuthUsecase {
	return &authUsecase{config: cfg}
}

func (u *authUsecase) Enabled() bool {
	return u.config.OperatorPassword != ""
}

func (u *authUsecase) Login(password string) (string, error) {
	if !u.Enabled() {
		return "", errors.New("authentication is not configured")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.config.OperatorPassword), []byte(password)); err != nil {
		return "", errors.New("invalid password")
	}

	claims := jwt.MapClaims{
		"sub": "operator",
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(u.config.JWTExpiry).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(u.config.JWTSecret))
}

func (u *authUsecase) ValidateToken(tokenString string) error {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(u.config.JWTSecret), nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("invalid token")
	}
	return nil
}
