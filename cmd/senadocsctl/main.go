// senadocsctl — CLI обслуживания senadocs: разовая очистка, формирование
// документа без веб-слоя, хэши паролей сотрудников, токены maintenance API.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/bigkaa/senadocs/internal/config"
	"github.com/bigkaa/senadocs/internal/database"
	"github.com/bigkaa/senadocs/internal/repository"
)

var (
	// Global flags
	verbose bool
)

// rootCmd — корневая команда.
var rootCmd = &cobra.Command{
	Use:   "senadocsctl",
	Short: "Ferramenta de manutenção do senadocs",
	Long: `senadocsctl executa tarefas de manutenção do senadocs fora do servidor web.

A configuração é lida das mesmas variáveis SD_* (e do arquivo .env) que o servidor usa.`,
	SilenceUsage: true,
	Version:      config.Version,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "logs detalhados (nível debug)")

	rootCmd.AddCommand(newSweepCmd())
	rootCmd.AddCommand(newRenderCmd())
	rootCmd.AddCommand(newHashPasswordCmd())
	rootCmd.AddCommand(newTokenCmd())
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig загружает конфигурацию и создаёт логгер (текстовый, в stderr).
func loadConfig() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}
	cfg.LogFormat = "text"
	if verbose {
		cfg.LogLevel = slog.LevelDebug
	}
	return cfg, config.SetupLogger(cfg), nil
}

// openRepository применяет миграции и открывает хранилище записей.
// Возвращаемая функция закрывает соединение.
func openRepository(ctx context.Context, cfg *config.Config, logger *slog.Logger) (repository.ProposalRepository, func(), error) {
	if err := database.Migrate(cfg, logger); err != nil {
		return nil, nil, err
	}

	if cfg.DBDriver == config.DriverPostgres {
		pool, err := database.Connect(ctx, cfg, logger)
		if err != nil {
			return nil, nil, err
		}
		return repository.NewPostgresProposalRepository(pool), pool.Close, nil
	}

	db, err := database.OpenSQLite(ctx, cfg.SQLitePath(), logger)
	if err != nil {
		return nil, nil, err
	}
	return repository.NewSQLiteProposalRepository(db), func() { db.Close() }, nil
}
