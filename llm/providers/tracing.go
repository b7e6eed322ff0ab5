package providers

import (
	"context"
	"fmt"
	"log/slog"

	clc "github.com/cloudwego/eino-ext/callbacks/cozeloop"
	"github.com/cloudwego/eino/callbacks"
	"github.com/coze-dev/cozeloop-go"
)

// TracingConfig enables CozeLoop tracing when both fields are set
type TracingConfig struct {
	APIToken    string
	WorkspaceID string
}

// Enabled reports whether tracing is configured
func (c TracingConfig) Enabled() bool {
	return c.APIToken != "" && c.WorkspaceID != ""
}

// SetupCallbacks registers the global eino callback handlers: a slog
// handler always, and a CozeLoop handler when tracing is configured. The
// returned function flushes and closes the tracing client.
func SetupCallbacks(ctx context.Context, cfg TracingConfig, logger *slog.Logger) (func(), error) {
	if logger == nil {
		logger = slog.Default()
	}

	handlers := []callbacks.Handler{NewLogHandler(logger)}
	closeFn := func() {}

	if cfg.Enabled() {
		client, err := cozeloop.NewClient(
			cozeloop.WithAPIToken(cfg.APIToken),
			cozeloop.WithWorkspaceID(cfg.WorkspaceID),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create cozeloop client: %w", err)
		}
		handlers = append(handlers, clc.NewLoopHandler(client))
		closeFn = func() { client.Close(ctx) }
		logger.Info("cozeloop tracing enabled", "workspace", cfg.WorkspaceID)
	}

	callbacks.AppendGlobalHandlers(handlers...)
	return closeFn, nil
}

// NewLogHandler returns a callback handler that logs component starts and
// ends at debug level and failures at warn level.
func NewLogHandler(logger *slog.Logger) callbacks.Handler {
	return callbacks.NewHandlerBuilder().
		OnStartFn(func(ctx context.Context, info *callbacks.RunInfo, _ callbacks.CallbackInput) context.Context {
			if info != nil {
				logger.Debug("component start", "name", info.Name, "type", info.Type, "component", info.Component)
			}
			return ctx
		}).
		OnEndFn(func(ctx context.Context, info *callbacks.RunInfo, _ callbacks.CallbackOutput) context.Context {
			if info != nil {
				logger.Debug("component end", "name", info.Name, "type", info.Type, "component", info.Component)
			}
			return ctx
		}).
		OnErrorFn(func(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
			if info != nil {
				logger.Warn("component error", "name", info.Name, "type", info.Type, "component", info.Component, "error", err)
			}
			return ctx
		}).
		Build()
}
