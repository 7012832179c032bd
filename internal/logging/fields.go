package logging

import (
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// BaseFields 构建 action + 配置路径等基础字段，便于不同子命令复用。
func BaseFields(action, configPath string) logrus.Fields {
	return logrus.Fields{
		"action":     action,
		"configPath": configPath,
	}
}

// ResolveFields 描述一次页面解析：请求地址、是否允许联网与最终走的分支。
func ResolveFields(url string, allowNetwork bool, outcome string) logrus.Fields {
	return logrus.Fields{
		"action":        "resolve",
		"url":           url,
		"allow_network": allowNetwork,
		"outcome":       outcome,
	}
}

// WithRun 为一次 CLI 运行生成 run_id，串联同一批次内的所有日志。
func WithRun(logger *logrus.Logger, command string) *logrus.Entry {
	return logger.WithFields(logrus.Fields{
		"run_id":  uuid.NewString(),
		"command": command,
	})
}
