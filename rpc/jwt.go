// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

package rpc

import (
	"crypto/rand"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/golang-jwt/jwt/v4"
	"github.com/ledgerwatch/log/v3"
)

const (
	JwtSecretLength = 32
	jwtIssuedAtSkew = 60 * time.Second
)

var ErrInvalidJwtSecret = errors.New("invalid JWT secret")

// ObtainJWTSecret loads the jwt-secret from path. If the file is absent it generates
// a new secret and stores it there.
func ObtainJWTSecret(path string, logger log.Logger) ([]byte, error) {
	if len(path) == 0 {
		path = "jwt.hex"
	}
	logger.Info("Reading JWT secret", "path", path)
	if data, err := os.ReadFile(path); err == nil {
		jwtSecret := common.FromHex(strings.TrimSpace(string(data)))
		if len(jwtSecret) == JwtSecretLength {
			return jwtSecret, nil
		}
		logger.Error("Invalid JWT secret", "path", path, "length", len(jwtSecret))
		return nil, fmt.Errorf("%w: %s has length %d", ErrInvalidJwtSecret, path, len(jwtSecret))
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	jwtSecret := make([]byte, JwtSecretLength)
	if _, err := rand.Read(jwtSecret); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(path, []byte(hexutil.Encode(jwtSecret)), 0600); err != nil {
		return nil, err
	}
	logger.Info("Generated JWT secret", "path", path)
	return jwtSecret, nil
}

// CheckJwtSecret validates the bearer token of r against secret and writes a 403 when
// it does not hold. Only HS256 tokens with an iat within a minute of now are accepted.
func CheckJwtSecret(w http.ResponseWriter, r *http.Request, secret []byte) bool {
	if err := validateJwt(r.Header.Get("Authorization"), secret, time.Now()); err != nil {
		http.Error(w, err.Error(), http.StatusForbidden)
		return false
	}
	return true
}

func validateJwt(authHeader string, secret []byte, now time.Time) error {
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return errors.New("missing token")
	}
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(strings.TrimPrefix(authHeader, "Bearer "), &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok || token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	})
	if err != nil {
		return err
	}
	if !token.Valid {
		return errors.New("invalid token")
	}
	if claims.IssuedAt == nil {
		return errors.New("missing issued-at")
	}
	if diff := now.Sub(claims.IssuedAt.Time); diff > jwtIssuedAtSkew || diff < -jwtIssuedAtSkew {
		return errors.New("stale token")
	}
	return nil
}

// NewJwtToken signs a token for secret issued at now, used by engine API clients.
func NewJwtToken(secret []byte, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		IssuedAt: jwt.NewNumericDate(now),
	})
	return token.SignedString(secret)
}
