package main

import (
	"bytes"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/bigkaa/senadocs/internal/api/middleware"
	"github.com/bigkaa/senadocs/internal/config"
)

// TestParseFields проверяет разбор аргументов --field.
func TestParseFields(t *testing.T) {
	fields, err := parseFields([]string{"cliente=Ana Souza", "VALOR=1.234,56", "OBS=a=b", "VAZIO="})
	if err != nil {
		t.Fatalf("parseFields() вернул ошибку: %v", err)
	}
	want := map[string]string{"CLIENTE": "Ana Souza", "VALOR": "1.234,56", "OBS": "a=b", "VAZIO": ""}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("%s: want %q, got %q", k, v, fields[k])
		}
	}

	for _, bad := range []string{"SEMIGUAL", "=valor", " =x"} {
		if _, err := parseFields([]string{bad}); err == nil {
			t.Errorf("parseFields(%q): ожидалась ошибка", bad)
		}
	}
}

// TestHashPasswordCmd проверяет вывод команды hash-password.
func TestHashPasswordCmd(t *testing.T) {
	cmd := newHashPasswordCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetIn(strings.NewReader("segredo\n"))
	cmd.SetArgs([]string{"ana", "--cost", "4"})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() вернул ошибку: %v", err)
	}

	login, hash, ok := strings.Cut(strings.TrimSpace(out.String()), ":")
	if !ok || login != "ana" {
		t.Fatalf("вывод: %q", out.String())
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte("segredo")); err != nil {
		t.Errorf("хэш не соответствует паролю: %v", err)
	}
}

// TestHashPasswordEmpty проверяет отказ для пустого пароля.
func TestHashPasswordEmpty(t *testing.T) {
	cmd := newHashPasswordCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader("\n"))
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err == nil {
		t.Error("ожидалась ошибка для пустого пароля")
	}
}

// TestMintToken проверяет, что выпущенный токен принимается middleware.
func TestMintToken(t *testing.T) {
	cfg := &config.Config{JWTSecret: "segredo", JWTIssuer: "senadocs"}

	token, err := mintToken(cfg, "", time.Hour, time.Now())
	if err != nil {
		t.Fatalf("mintToken() вернул ошибку: %v", err)
	}

	ja, err := middleware.NewJWTAuth(cfg.JWTSecret, cfg.JWTIssuer, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	claims, err := ja.Parse(token)
	if err != nil {
		t.Fatalf("Parse() вернул ошибку: %v", err)
	}
	if !claims.HasRole(middleware.RoleMaintenance) || !strings.HasPrefix(claims.Subject, "cron-") {
		t.Errorf("claims: %+v", claims)
	}

	if _, err := mintToken(&config.Config{}, "x", time.Hour, time.Now()); err == nil {
		t.Error("ожидалась ошибка без секрета")
	}
	if _, err := mintToken(cfg, "x", 0, time.Now()); err == nil {
		t.Error("ожидалась ошибка для нулевого ttl")
	}

	// Подпись HS256
	parsed, _, err := jwt.NewParser().ParseUnverified(token, &jwt.RegisteredClaims{})
	if err != nil {
		t.Fatal(err)
	}
	if parsed.Method.Alg() != "HS256" {
		t.Errorf("алгоритм: want HS256, got %s", parsed.Method.Alg())
	}
}
