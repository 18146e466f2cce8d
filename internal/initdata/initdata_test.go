package initdata

import (
	"errors"
	"strconv"
	"strings"
	"testing"
	"time"

	"golang.org/x/text/language"
)

const botToken = "123456:TEST-TOKEN"

func signedToken(t *testing.T, authDate time.Time) string {
	t.Helper()
	return Sign(map[string]string{
		"query_id":  "AAHdF6IQAAAAAN0XohDhrOrc",
		"auth_date": strconv.FormatInt(authDate.Unix(), 10),
		"user":      `{"id":279058397,"first_name":"Vladislav","last_name":"K","username":"vdkfrost","language_code":"pt-BR"}`,
	}, botToken)
}

func TestValidateAcceptsSignedToken(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	raw := signedToken(t, now.Add(-10*time.Minute))

	data, err := Validate(raw, botToken, DefaultMaxAge, now)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if data.QueryID != "AAHdF6IQAAAAAN0XohDhrOrc" {
		t.Fatalf("unexpected query id %q", data.QueryID)
	}
	if data.User == nil || data.User.ID != 279058397 || data.User.Username != "vdkfrost" {
		t.Fatalf("unexpected user %+v", data.User)
	}
	if data.User.DisplayName() != "Vladislav K" {
		t.Fatalf("unexpected display name %q", data.User.DisplayName())
	}
	if data.User.Language().String() != "pt-BR" {
		t.Fatalf("unexpected language %s", data.User.Language())
	}
	if !data.AuthDate.Equal(now.Add(-10 * time.Minute)) {
		t.Fatalf("unexpected auth date %s", data.AuthDate)
	}
}

func TestValidateRejectsTampering(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	raw := signedToken(t, now)
	tampered := strings.Replace(raw, "vdkfrost", "mallory", 1)

	data, err := Validate(tampered, botToken, DefaultMaxAge, now)
	if !errors.Is(err, ErrHashMismatch) {
		t.Fatalf("expected hash mismatch, got %v", err)
	}
	if data.User == nil || data.User.Username != "mallory" {
		t.Fatalf("expected parsed data to be returned, got %+v", data.User)
	}

	if _, err := Validate(raw, "999:OTHER", DefaultMaxAge, now); !errors.Is(err, ErrHashMismatch) {
		t.Fatalf("expected mismatch for other bot token, got %v", err)
	}
}

func TestValidateAge(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	raw := signedToken(t, now.Add(-2*time.Hour))

	if _, err := Validate(raw, botToken, DefaultMaxAge, now); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected expired, got %v", err)
	}
	if _, err := Validate(raw, botToken, 0, now); err != nil {
		t.Fatalf("expected age check disabled, got %v", err)
	}
	future := signedToken(t, now.Add(5*time.Minute))
	if _, err := Validate(future, botToken, DefaultMaxAge, now); err != nil {
		t.Fatalf("expected future auth date to pass, got %v", err)
	}
}

func TestValidateStructuralErrors(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name  string
		raw   string
		token string
		want  error
	}{
		{name: "empty", raw: "  ", token: botToken, want: ErrEmpty},
		{name: "no bot token", raw: "auth_date=1&hash=ab", token: "", want: ErrMissingBotToken},
		{name: "no hash", raw: "auth_date=1", token: botToken, want: ErrMissingHash},
		{name: "no auth date", raw: "query_id=x&hash=ab", token: botToken, want: ErrMissingAuthDate},
		{name: "bad auth date", raw: "auth_date=yesterday&hash=ab", token: botToken, want: ErrInvalidAuthDate},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Validate(tc.raw, tc.token, DefaultMaxAge, now); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestDataCheckStringSortsAndSkipsHash(t *testing.T) {
	got := dataCheckString(map[string]string{"user": "u", "auth_date": "1", "hash": "h", "query_id": "q"})
	if got != "auth_date=1\nquery_id=q\nuser=u" {
		t.Fatalf("unexpected data check string %q", got)
	}
}

func TestUserLanguageFallsBack(t *testing.T) {
	if (User{}).Language() != language.Und {
		t.Fatal("expected undetermined language")
	}
	if (User{LanguageCode: "not a tag!"}).Language() != language.Und {
		t.Fatal("expected undetermined language for malformed code")
	}
}
