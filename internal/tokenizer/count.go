package tokenizer

import (
	"errors"

	"github.com/temirov/treeweave/internal/utils"
)

var errNilCounter = errors.New("nil tokenizer counter")

// CountResult captures the outcome of counting a byte slice.
type CountResult struct {
	Tokens  int
	Counted bool
}

// CountBytes estimates tokens for data using counter. Binary data is not counted.
func CountBytes(counter Counter, data []byte) (CountResult, error) {
	if counter == nil {
		return CountResult{}, errNilCounter
	}
	if utils.IsBinary(data) {
		return CountResult{Counted: false}, nil
	}
	tokens, err := counter.CountString(string(data))
	if err != nil {
		return CountResult{}, err
	}
	return CountResult{Tokens: tokens, Counted: true}, nil
}

// CountPrompt estimates tokens for a prompt about to be sent.
func CountPrompt(counter Counter, prompt string) (int, error) {
	result, err := CountBytes(counter, []byte(prompt))
	if err != nil {
		return 0, err
	}
	return result.Tokens, nil
}
