package internal

import (
	"fmt"

	"github.com/spf13/viper"
)

type PagebufConfig struct {
	AppName string `mapstructure:"app_name"`

	Storage struct {
		Mode     string `mapstructure:"mode"`
		Workdir  string `mapstructure:"workdir"`
		PageSize int    `mapstructure:"page_size"`
	} `mapstructure:"storage"`

	Cache struct {
		MaxSize  int    `mapstructure:"max_size"`
		SubQuota int    `mapstructure:"sub_quota"`
		Policy   string `mapstructure:"policy"`
		Debug    bool   `mapstructure:"debug"`
	} `mapstructure:"cache"`
}

func LoadConfig(path string) (*PagebufConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg PagebufConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}
