// Package autoload configures the global logger from LOG_* variables when
// blank-imported.
package autoload

import (
	configx "github.com/Yuvaramesh/sales-agent/pkg/config"
	logx "github.com/Yuvaramesh/sales-agent/pkg/logger"
)

func init() {
	cfg, err := configx.New[logx.Config]("LOG")
	if err != nil {
		logx.Init()
		return
	}
	logx.Init(*cfg)
}
