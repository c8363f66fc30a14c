// Package memorytool exposes long-term memory maintenance as tools for the
// memory agent: adding, updating and deleting stored facts about the user.
package memorytool

import (
	"context"
	"fmt"

	"github.com/conciergeai/concierge/core"
	"github.com/conciergeai/concierge/tool"
)

// New returns the memory maintenance toolset backed by store. None of the
// tools are sensitive; memory writes never leave the system.
func New(store core.MemoryStore) *tool.Toolset {
	return tool.NewToolset([]tool.Tool{
		addTool(store),
		updateTool(store),
		deleteTool(store),
	})
}

func addTool(store core.MemoryStore) tool.Tool {
	return tool.NewFunctionTool(
		"add_memory",
		"Store a new fact about the user for future conversations",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"content": map[string]any{
					"type":        "string",
					"description": "The fact to remember, phrased as a standalone statement",
				},
			},
			"required": []string{"content"},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			content, _ := args["content"].(string)
			if content == "" {
				return nil, tool.NewToolError("add_memory", "content must not be empty", "VALIDATION_ERROR")
			}
			id, err := store.Store(content, nil)
			if err != nil {
				return nil, err
			}
			return fmt.Sprintf("stored memory %s", id), nil
		},
	)
}

func updateTool(store core.MemoryStore) tool.Tool {
	return tool.NewFunctionTool(
		"update_memory",
		"Replace the content of an existing memory that is outdated or wrong",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id": map[string]any{
					"type":        "string",
					"description": "Identifier of the memory to replace",
				},
				"content": map[string]any{
					"type":        "string",
					"description": "The corrected fact",
				},
			},
			"required": []string{"id", "content"},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			id, _ := args["id"].(string)
			content, _ := args["content"].(string)
			if err := store.Update(id, content); err != nil {
				return nil, err
			}
			return fmt.Sprintf("updated memory %s", id), nil
		},
	)
}

func deleteTool(store core.MemoryStore) tool.Tool {
	return tool.NewFunctionTool(
		"delete_memory",
		"Remove a memory that no longer applies",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"id": map[string]any{
					"type":        "string",
					"description": "Identifier of the memory to remove",
				},
			},
			"required": []string{"id"},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			id, _ := args["id"].(string)
			if err := store.Delete(id); err != nil {
				return nil, err
			}
			return fmt.Sprintf("deleted memory %s", id), nil
		},
	)
}
