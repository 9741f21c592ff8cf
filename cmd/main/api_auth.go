package main

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

// AuthAPI guards the API with an optional static bearer key.
type AuthAPI struct {
	keyHash string // empty when the API is open
	logger  *slog.Logger
}

// NewAuthAPI creates an AuthAPI. An empty apiKey leaves the API open.
func NewAuthAPI(apiKey string, logger *slog.Logger) *AuthAPI {
	a := &AuthAPI{logger: logger}
	if apiKey != "" {
		a.keyHash = hashAPIKey(apiKey)
	}
	return a
}

// Authenticate checks for "Authorization: Bearer <key>" when a key is
// configured, and answers 401 otherwise.
func (a *AuthAPI) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.keyHash == "" {
			next.ServeHTTP(w, r)
			return
		}

		apiKey, ok := bearerToken(r)
		if !ok {
			respondWithError(w, http.StatusUnauthorized, "Missing API key")
			return
		}
		if subtle.ConstantTimeCompare([]byte(hashAPIKey(apiKey)), []byte(a.keyHash)) != 1 {
			a.logger.Debug("Rejected request with invalid API key", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
			respondWithError(w, http.StatusUnauthorized, "Invalid API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func hashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

func respondWithError(w http.ResponseWriter, code int, message string) {
	respondWithJSON(w, code, map[string]string{"error": message})
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		err := json.NewEncoder(w).Encode(payload)
		if err != nil {
			fmt.Printf("ERROR: Failed to encode JSON response: %v\n", err)
		}
	}
}
