package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"
	"go.uber.org/zap"

	"github.com/nsong/lingotalk/internal/config"
)

// ArkTranslator is the production Translator: an Ark chat model behind
// a fixed translation prompt, compiled once into an eino chain.
type ArkTranslator struct {
	chain compose.Runnable[map[string]any, *schema.Message]
	log   *zap.Logger
}

// NewArk compiles the translation chain against the configured model.
func NewArk(ctx context.Context, cfg config.Translation, log *zap.Logger) (*ArkTranslator, error) {
	if log == nil {
		log = zap.NewNop()
	}

	chatModel, err := cfg.NewChatModel(ctx)
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}

	promptTemplate := prompt.FromMessages(
		schema.FString,
		schema.SystemMessage("You are a translation engine. Translate the user's message from {source} to {target}. Reply with the translation only, no commentary."),
		schema.UserMessage("{text}"),
	)

	chain := compose.NewChain[map[string]any, *schema.Message]()
	chain.AppendChatTemplate(promptTemplate)
	chain.AppendChatModel(chatModel)

	runnable, err := chain.Compile(ctx)
	if err != nil {
		return nil, fmt.Errorf("compile translation chain: %w", err)
	}

	return &ArkTranslator{chain: runnable, log: log}, nil
}

// Translate runs one message through the chain.
func (t *ArkTranslator) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	response, err := t.chain.Invoke(ctx, map[string]any{
		"source": sourceLang,
		"target": targetLang,
		"text":   text,
	})
	if err != nil {
		t.log.Warn("translation failed",
			zap.String("source", sourceLang),
			zap.String("target", targetLang),
			zap.Error(err),
		)
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	translated := strings.TrimSpace(response.Content)
	if translated == "" {
		return "", ErrUnavailable
	}
	return translated, nil
}
