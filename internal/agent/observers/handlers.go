// Package observers logs eino component lifecycles (chat model, tool, prompt)
// through the structured logger.
package observers

import (
	einocb "github.com/cloudwego/eino/callbacks"
	callbackHelper "github.com/cloudwego/eino/utils/callbacks"
)

// NewAllCallbacks aggregates every observer into one callbacks.Handler.
// modelName selects the pricing used for cost logging.
func NewAllCallbacks(modelName string) einocb.Handler {
	return callbackHelper.NewHandlerHelper().
		ChatModel(newModelHandler(modelName)).
		Tool(newToolHandler()).
		Prompt(newPromptHandler()).
		Handler()
}
