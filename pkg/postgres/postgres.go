package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shenikar/accident_dispatch_system/internal/config"
)

// NewPostgresDB создает новый пул соединений PostgreSQL и проверяет наличие PostGIS
func NewPostgresDB(ctx context.Context, appCfg *config.Config) (*pgxpool.Pool, error) {
	cfgPool, err := pgxpool.ParseConfig(appCfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка при разборе конфигурации postgres: %w", err)
	}
	if appCfg.DatabaseMaxConns > 0 {
		cfgPool.MaxConns = appCfg.DatabaseMaxConns
	}

	dbpool, err := pgxpool.NewWithConfig(ctx, cfgPool)
	if err != nil {
		return nil, fmt.Errorf("не удалось создать пул соединений: %w", err)
	}

	// Проверяем соединение с базой данных
	if err := dbpool.Ping(ctx); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("не удалось выполнить ping к postgres: %w", err)
	}

	// Поиск ближайших служб требует расширения PostGIS
	var version string
	if err := dbpool.QueryRow(ctx, "SELECT PostGIS_Version();").Scan(&version); err != nil {
		dbpool.Close()
		return nil, fmt.Errorf("расширение postgis недоступно: %w", err)
	}

	return dbpool, nil
}
