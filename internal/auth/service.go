package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/urbanoasis/farmstand-backend/pkg/config"
	"github.com/urbanoasis/farmstand-backend/pkg/enums"
	pkgerrors "github.com/urbanoasis/farmstand-backend/pkg/errors"
	"github.com/urbanoasis/farmstand-backend/pkg/mirror"
)

// pinReader exposes the stored PIN hashes.
type pinReader interface {
	PinHashes(ctx context.Context) (mirror.PinsDoc, error)
}

type pinVerifier func(pin, encoded string) (bool, error)

// Claims are the JWT claims carried by a station session token.
type Claims struct {
	Role     enums.Role `json:"role"`
	DeviceID string     `json:"deviceId,omitempty"`
	jwt.RegisteredClaims
}

// Session is the result of a successful PIN login.
type Session struct {
	Token     string     `json:"token"`
	Role      enums.Role `json:"role"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

// Service authenticates PINs and manages session tokens.
type Service interface {
	Login(ctx context.Context, pin, deviceID string) (*Session, error)
	ParseToken(token string) (*Claims, error)
}

type service struct {
	pins   pinReader
	verify pinVerifier
	cfg    config.JWTConfig
	now    func() time.Time
}

// NewService wires the auth service around the stored PIN hashes.
func NewService(pins pinReader, verify pinVerifier, cfg config.JWTConfig) (Service, error) {
	if pins == nil {
		return nil, fmt.Errorf("pin reader required")
	}
	if verify == nil {
		return nil, fmt.Errorf("pin verifier required")
	}
	if cfg.Secret == "" {
		return nil, fmt.Errorf("jwt secret required")
	}
	return &service{
		pins:   pins,
		verify: verify,
		cfg:    cfg,
		now:    time.Now,
	}, nil
}

// Login resolves the PIN to a role. The admin hash is checked first so a
// shared volunteer PIN can never shadow the admin one.
func (s *service) Login(ctx context.Context, pin, deviceID string) (*Session, error) {
	if pin == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "pin required")
	}
	doc, err := s.pins.PinHashes(ctx)
	if err != nil {
		return nil, err
	}

	role, err := s.resolveRole(pin, doc)
	if err != nil {
		return nil, err
	}

	token, expires, err := s.mintToken(role, deviceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint session token")
	}
	return &Session{Token: token, Role: role, ExpiresAt: expires}, nil
}

func (s *service) resolveRole(pin string, doc mirror.PinsDoc) (enums.Role, error) {
	if doc.AdminHash != "" {
		if ok, err := s.verify(pin, doc.AdminHash); err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify pin")
		} else if ok {
			return enums.RoleAdmin, nil
		}
	}
	if doc.VolunteerHash != "" {
		if ok, err := s.verify(pin, doc.VolunteerHash); err != nil {
			return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify pin")
		} else if ok {
			return enums.RoleVolunteer, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeUnauthorized, "incorrect pin")
}

func (s *service) mintToken(role enums.Role, deviceID string) (string, time.Time, error) {
	now := s.now()
	expires := now.Add(time.Duration(s.cfg.ExpirationMinutes) * time.Minute)
	claims := Claims{
		Role:     role,
		DeviceID: deviceID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.cfg.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expires, nil
}

// ParseToken validates a session token and returns its claims.
func (s *service) ParseToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(s.cfg.Secret), nil
	},
		jwt.WithIssuer(s.cfg.Issuer),
		jwt.WithTimeFunc(func() time.Time { return s.now() }),
	)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid session token")
	}
	if !token.Valid || !claims.Role.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid session token")
	}
	return claims, nil
}
