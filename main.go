package main

import (
	"fmt"

	"go.uber.org/zap"

	"midnight-be/internal/api/http"
	"midnight-be/internal/config"
	"midnight-be/internal/logger"
	"midnight-be/internal/service"
	"midnight-be/internal/service/words"
	"midnight-be/internal/state"
	"midnight-be/internal/store"
)

func main() {
	// 加载配置
	cfg := config.InitConfig()

	// 初始化日志器
	logger.InitLogger(cfg.LogLevel)

	// 按配置选择存储驱动
	st, err := newStore(cfg)
	if err != nil {
		panic(fmt.Errorf("初始化存储失败: %w", err))
	}
	defer st.Close()

	// 词语生成服务，没配密钥就只能用内置题库
	var wordSrc words.Source
	if apiKey := cfg.WordsAPIKey(); apiKey != "" {
		wordSrc = words.NewClient(cfg.Words.BaseURL, cfg.Words.Model, apiKey)
	} else {
		zap.S().Warn("未配置词语生成密钥，自定义主题不可用")
	}

	// 组装应用状态
	appState := state.NewAppState(
		cfg,
		st,
		service.NewRoomService(st, wordSrc, nil),
	)

	// 启动服务器
	http.RunServer(appState)
}

func newStore(cfg *config.AppConfig) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		return store.NewSQLiteStore(cfg.Store.Path)
	case "", "memory":
		return store.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("未知的存储驱动: %s", cfg.Store.Driver)
	}
}
