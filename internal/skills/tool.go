package skills

import (
	"context"
	"errors"

	"github.com/Jacky-ZJQ/mcp-gateway/mcpservice"
)

// ChatOnceHandler exposes SyncChat as the manual tool skill_chat_once. A
// missing chatId starts a new conversation.
func (s *Service) ChatOnceHandler() mcpservice.Handler {
	return mcpservice.HandlerFunc("skill_chat_once", func(ctx context.Context, args map[string]any) (any, error) {
		code, err := mcpservice.RequiredString(args, "skillCode")
		if err != nil {
			return nil, err
		}
		prompt, err := mcpservice.RequiredString(args, "prompt")
		if err != nil {
			return nil, err
		}
		chatID := mcpservice.OptionalString(args, "chatId")
		if chatID == "" {
			chatID = s.NextChatID(code)
		}

		content, err := s.SyncChat(ctx, code, prompt, chatID)
		if errors.Is(err, ErrCodeRequired) {
			return nil, mcpservice.NewArgumentError("skillCode is required")
		}
		if err != nil {
			return nil, err
		}
		return map[string]any{
			"skillCode": code,
			"chatId":    chatID,
			"content":   content,
		}, nil
	})
}
