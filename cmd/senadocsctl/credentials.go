package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/bigkaa/senadocs/internal/api/middleware"
	"github.com/bigkaa/senadocs/internal/config"
	"github.com/bigkaa/senadocs/internal/ui/auth"
)

// newHashPasswordCmd — bcrypt-хэш для SD_STAFF_USERS.
func newHashPasswordCmd() *cobra.Command {
	var cost int

	cmd := &cobra.Command{
		Use:   "hash-password [login]",
		Short: "Gera o hash bcrypt de uma senha para SD_STAFF_USERS",
		Long: `Lê a senha da entrada padrão (primeira linha) e imprime o hash bcrypt.
Com [login], imprime a entrada pronta "login:hash".`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readPassword(cmd.InOrStdin())
			if err != nil {
				return err
			}
			hash, err := auth.HashPassword(password, cost)
			if err != nil {
				return err
			}
			if len(args) == 1 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s:%s\n", args[0], hash)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}

	cmd.Flags().IntVar(&cost, "cost", 0, "custo bcrypt (0 = padrão)")
	return cmd
}

// readPassword читает первую строку; пустой пароль — ошибка.
func readPassword(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", fmt.Errorf("ошибка чтения пароля: %w", err)
	}
	password := strings.TrimRight(line, "\r\n")
	if password == "" {
		return "", fmt.Errorf("senha vazia")
	}
	return password, nil
}

// newTokenCmd — токен maintenance API, подписанный SD_JWT_SECRET.
func newTokenCmd() *cobra.Command {
	var (
		subject string
		ttl     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Emite um token JWT para a API de manutenção",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig()
			if err != nil {
				return err
			}
			token, err := mintToken(cfg, subject, ttl, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "sujeito do token (padrão: cron-<uuid>)")
	cmd.Flags().DurationVar(&ttl, "ttl", 24*time.Hour, "validade do token")
	return cmd
}

// mintToken выпускает токен с ролью maintenance.
func mintToken(cfg *config.Config, subject string, ttl time.Duration, now time.Time) (string, error) {
	if cfg.JWTSecret == "" {
		return "", fmt.Errorf("SD_JWT_SECRET não configurado")
	}
	if ttl <= 0 {
		return "", fmt.Errorf("--ttl deve ser positivo")
	}
	if subject == "" {
		subject = "cron-" + uuid.NewString()
	}
	return middleware.IssueToken(cfg.JWTSecret, cfg.JWTIssuer, subject, middleware.RoleMaintenance, ttl, now)
}
