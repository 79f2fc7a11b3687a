package gateway

import (
	"os"
	"strings"
)

// EnvConfig 端点覆盖（用于代理或本地回放）。配置文件中的值优先于环境变量。
type EnvConfig struct {
	RestURL    string
	WSEndpoint string
}

// LoadEnvConfig 读取 BINANCE_REST_URL / BINANCE_WS_ENDPOINT，未设置则使用默认端点。
func LoadEnvConfig(def Endpoints) EnvConfig {
	return EnvConfig{
		RestURL:    pick(os.Getenv("BINANCE_REST_URL"), def.RestURL),
		WSEndpoint: pick(os.Getenv("BINANCE_WS_ENDPOINT"), def.WSURL),
	}
}

func pick(v, def string) string {
	if strings.TrimSpace(v) == "" {
		return def
	}
	return strings.TrimRight(v, "/")
}
