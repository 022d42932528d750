package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"copilot-gateway/internal/core"
	"copilot-gateway/internal/util"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

const redisOpTimeout = 5 * time.Second

// FileStorage keeps stats in a JSON file and the GitHub token in the config directory.
type FileStorage struct {
	statsPath string
	tokenDir  string
}

// NewFileStorage creates a file-backed storage. Empty arguments fall back to defaults.
func NewFileStorage(statsPath, tokenDir string) *FileStorage {
	if statsPath == "" {
		statsPath = core.StatsFilePath
	}
	return &FileStorage{statsPath: statsPath, tokenDir: tokenDir}
}

func (fs *FileStorage) SaveStats(stats *core.RequestStats) error {
	data, err := sonic.MarshalIndent(stats, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(fs.statsPath, data, core.FilePermissionReadWrite)
}

func (fs *FileStorage) LoadStats() (*core.RequestStats, error) {
	data, err := os.ReadFile(fs.statsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &core.RequestStats{RequestHistory: []core.RequestRecord{}}, nil
		}
		return nil, err
	}

	var stats core.RequestStats
	if err := sonic.Unmarshal(data, &stats); err != nil {
		return nil, err
	}

	if stats.RequestHistory == nil {
		stats.RequestHistory = []core.RequestRecord{}
	}

	return &stats, nil
}

func (fs *FileStorage) tokenPath() (string, error) {
	if fs.tokenDir == "" {
		return "", errors.New("token directory not configured")
	}
	return filepath.Join(fs.tokenDir, core.GitHubTokenFileName), nil
}

// SaveGitHubToken writes the token through a temp file so readers never see a partial write.
func (fs *FileStorage) SaveGitHubToken(token string) error {
	path, err := fs.tokenPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(fs.tokenDir, core.DirPermissionOwnerOnly); err != nil {
		return fmt.Errorf("create token directory: %w", err)
	}

	tmp, err := os.CreateTemp(fs.tokenDir, core.GitHubTokenFileName+".*")
	if err != nil {
		return fmt.Errorf("create temp token file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.WriteString(token); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write token: %w", err)
	}
	if err := tmp.Chmod(core.FilePermissionOwnerOnly); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close token file: %w", err)
	}
	return os.Rename(tmp.Name(), path)
}

func (fs *FileStorage) LoadGitHubToken() (string, error) {
	path, err := fs.tokenPath()
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path) //nolint:gosec // G304: path built from configured token dir
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read token file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}

func (fs *FileStorage) Close() error {
	return nil
}

// RedisStorage implements persistence using Redis
type RedisStorage struct {
	client   *redis.Client
	statsKey string
	tokenKey string
}

// RedisStorageConfig Redis storage config
type RedisStorageConfig struct {
	URL      string
	StatsKey string
	TokenKey string
}

func NewRedisStorage(config RedisStorageConfig) (*RedisStorage, error) {
	opts, err := redis.ParseURL(config.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	rs := &RedisStorage{client: client, statsKey: config.StatsKey, tokenKey: config.TokenKey}
	if rs.statsKey == "" {
		rs.statsKey = core.RedisStatsKey
	}
	if rs.tokenKey == "" {
		rs.tokenKey = core.RedisGitHubTokenKey
	}
	return rs, nil
}

func (rs *RedisStorage) SaveStats(stats *core.RequestStats) error {
	data, err := util.MarshalJSON(stats)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	return rs.client.Set(ctx, rs.statsKey, data, 0).Err()
}

func (rs *RedisStorage) LoadStats() (*core.RequestStats, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	val, err := rs.client.Get(ctx, rs.statsKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return &core.RequestStats{RequestHistory: []core.RequestRecord{}}, nil
		}
		return nil, err
	}

	var stats core.RequestStats
	if err := sonic.Unmarshal(val, &stats); err != nil {
		return nil, err
	}

	if stats.RequestHistory == nil {
		stats.RequestHistory = []core.RequestRecord{}
	}

	return &stats, nil
}

func (rs *RedisStorage) SaveGitHubToken(token string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	return rs.client.Set(ctx, rs.tokenKey, token, 0).Err()
}

func (rs *RedisStorage) LoadGitHubToken() (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()

	val, err := rs.client.Get(ctx, rs.tokenKey).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(val), nil
}

func (rs *RedisStorage) Close() error {
	return rs.client.Close()
}

// InitStorage selects Redis when REDIS_URL is set, falling back to files.
func InitStorage(logger core.Logger, tokenDir string) core.StorageInterface {
	statsPath := util.GetEnvWithDefault("STATS_FILE", core.StatsFilePath)

	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		redisStorage, err := NewRedisStorage(RedisStorageConfig{URL: redisURL})
		if err != nil {
			logger.Warn("Failed to initialize Redis storage: %v, falling back to file storage", err)
			return NewFileStorage(statsPath, tokenDir)
		}
		logger.Info("Using Redis storage")
		return redisStorage
	}

	logger.Info("Using file storage (stats: %s, token dir: %s)", statsPath, tokenDir)
	return NewFileStorage(statsPath, tokenDir)
}
