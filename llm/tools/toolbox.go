package tools

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	"github.com/Data-Day-Solutions/bookworm-backend/llm"
)

// Toolbox is the closed set of tools offered to the model. Calls to any
// other name are rejected.
type Toolbox struct {
	tools map[string]tool.InvokableTool
	infos []*schema.ToolInfo
}

// NewToolbox collects the tools and their descriptors.
func NewToolbox(ctx context.Context, tools ...tool.InvokableTool) (*Toolbox, error) {
	b := &Toolbox{tools: make(map[string]tool.InvokableTool, len(tools))}
	for _, t := range tools {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to describe tool: %w", err)
		}
		if _, dup := b.tools[info.Name]; dup {
			return nil, llm.InvalidInput("duplicate tool %q", info.Name)
		}
		b.tools[info.Name] = t
		b.infos = append(b.infos, info)
	}
	return b, nil
}

// Infos returns the tool descriptors in registration order.
func (b *Toolbox) Infos() []*schema.ToolInfo {
	return b.infos
}

// Names returns the tool names in registration order.
func (b *Toolbox) Names() []string {
	names := make([]string, len(b.infos))
	for i, info := range b.infos {
		names[i] = info.Name
	}
	return names
}

// Has reports whether name is in the set.
func (b *Toolbox) Has(name string) bool {
	_, ok := b.tools[name]
	return ok
}

// Run invokes the named tool with JSON arguments.
func (b *Toolbox) Run(ctx context.Context, name, arguments string) (string, error) {
	t, ok := b.tools[name]
	if !ok {
		return "", llm.InvalidInput("unknown tool %q", name)
	}
	return t.InvokableRun(ctx, arguments)
}
