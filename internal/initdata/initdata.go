// Package initdata parses and verifies the launch token the host messaging
// platform hands to the mini-app. The storefront client forwards the token
// opaquely; verification here serves tooling and tests.
package initdata

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
)

const secretSalt = "WebAppData"

// DefaultMaxAge is how long a token stays acceptable after auth_date.
const DefaultMaxAge = time.Hour

var (
	ErrEmpty           = errors.New("initdata: token is empty")
	ErrMissingHash     = errors.New("initdata: hash is missing")
	ErrMissingAuthDate = errors.New("initdata: auth_date is missing")
	ErrInvalidAuthDate = errors.New("initdata: auth_date is not a unix timestamp")
	ErrMissingBotToken = errors.New("initdata: bot token is required")
	ErrHashMismatch    = errors.New("initdata: hash mismatch")
	ErrExpired         = errors.New("initdata: token is too old")
)

// User is the launching user as described by the host platform.
type User struct {
	ID           int64  `json:"id" yaml:"id"`
	FirstName    string `json:"first_name" yaml:"first_name"`
	LastName     string `json:"last_name,omitempty" yaml:"last_name,omitempty"`
	Username     string `json:"username,omitempty" yaml:"username,omitempty"`
	LanguageCode string `json:"language_code,omitempty" yaml:"language_code,omitempty"`
	IsPremium    bool   `json:"is_premium,omitempty" yaml:"is_premium,omitempty"`
}

// Language parses LanguageCode, returning language.Und when it is absent or malformed.
func (u User) Language() language.Tag {
	if u.LanguageCode == "" {
		return language.Und
	}
	tag, err := language.Parse(u.LanguageCode)
	if err != nil {
		return language.Und
	}
	return tag
}

// DisplayName joins the first and last name.
func (u User) DisplayName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// Data is a parsed token.
type Data struct {
	QueryID  string            `json:"query_id,omitempty" yaml:"query_id,omitempty"`
	AuthDate time.Time         `json:"auth_date" yaml:"auth_date"`
	Hash     string            `json:"hash" yaml:"hash"`
	User     *User             `json:"user,omitempty" yaml:"user,omitempty"`
	Fields   map[string]string `json:"fields" yaml:"fields"`
}

// Parse decodes a raw token. It does not verify the hash.
func Parse(raw string) (Data, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Data{}, ErrEmpty
	}
	values, err := url.ParseQuery(raw)
	if err != nil {
		return Data{}, fmt.Errorf("initdata: parse: %w", err)
	}

	data := Data{Fields: make(map[string]string, len(values))}
	for key := range values {
		data.Fields[key] = values.Get(key)
	}
	data.Hash = data.Fields["hash"]
	data.QueryID = data.Fields["query_id"]

	if rawUser := data.Fields["user"]; strings.HasPrefix(rawUser, "{") {
		var user User
		if err := json.Unmarshal([]byte(rawUser), &user); err != nil {
			return data, fmt.Errorf("initdata: decode user: %w", err)
		}
		data.User = &user
	}

	if rawDate, ok := data.Fields["auth_date"]; ok {
		seconds, err := strconv.ParseInt(rawDate, 10, 64)
		if err != nil {
			return data, ErrInvalidAuthDate
		}
		data.AuthDate = time.Unix(seconds, 0).UTC()
	}
	return data, nil
}

// Validate parses raw and verifies its hash against botToken. A token whose
// auth_date is older than maxAge fails with ErrExpired; maxAge <= 0 disables
// the age check. The parsed data is returned even when validation fails.
func Validate(raw, botToken string, maxAge time.Duration, now time.Time) (Data, error) {
	data, err := Parse(raw)
	if err != nil {
		return data, err
	}
	if botToken == "" {
		return data, ErrMissingBotToken
	}
	if data.Hash == "" {
		return data, ErrMissingHash
	}
	if _, ok := data.Fields["auth_date"]; !ok {
		return data, ErrMissingAuthDate
	}

	expected := computeHash(data.Fields, botToken)
	if !hmac.Equal([]byte(expected), []byte(strings.ToLower(data.Hash))) {
		return data, ErrHashMismatch
	}
	if maxAge > 0 && now.Sub(data.AuthDate) > maxAge {
		return data, ErrExpired
	}
	return data, nil
}

// Sign returns an encoded token for fields, with the hash computed for botToken.
// Any "hash" entry in fields is replaced.
func Sign(fields map[string]string, botToken string) string {
	values := url.Values{}
	for key, value := range fields {
		if key == "hash" {
			continue
		}
		values.Set(key, value)
	}
	values.Set("hash", computeHash(fields, botToken))
	return values.Encode()
}

func computeHash(fields map[string]string, botToken string) string {
	secret := hmac.New(sha256.New, []byte(secretSalt))
	secret.Write([]byte(botToken))

	mac := hmac.New(sha256.New, secret.Sum(nil))
	mac.Write([]byte(dataCheckString(fields)))
	return hex.EncodeToString(mac.Sum(nil))
}

// dataCheckString joins sorted key=value lines, excluding hash, with newlines.
func dataCheckString(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		if key == "hash" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, key := range keys {
		lines[i] = key + "=" + fields[key]
	}
	return strings.Join(lines, "\n")
}
