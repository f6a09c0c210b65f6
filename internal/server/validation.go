package server

import (
	"fmt"
	"strings"
	"sync"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

const (
	maxGameNameLength  = 100
	maxStoryNameLength = 500
)

var validatorOnce sync.Once

func registerValidators() {
	validatorOnce.Do(func() {
		engine, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = engine.RegisterValidation("gamename", func(fl validator.FieldLevel) bool {
			_, err := validateGameName(fl.Field().String())
			return err == nil
		})
		_ = engine.RegisterValidation("storyname", func(fl validator.FieldLevel) bool {
			_, err := validateStoryName(fl.Field().String())
			return err == nil
		})
	})
}

func validateGameName(name string) (string, error) {
	return validateText("name", name, maxGameNameLength)
}

func validateStoryName(name string) (string, error) {
	return validateText("story name", name, maxStoryNameLength)
}

func validateText(label, text string, maxLen int) (string, error) {
	trimmed := normalizeText(text)
	if trimmed == "" {
		return "", fmt.Errorf("%s is required", label)
	}
	if len([]rune(trimmed)) > maxLen {
		return "", fmt.Errorf("%s must be %d characters or fewer", label, maxLen)
	}
	if !isSafeText(trimmed) {
		return "", fmt.Errorf("%s contains unsupported characters", label)
	}
	return trimmed, nil
}

func normalizeText(text string) string {
	fields := strings.Fields(strings.TrimSpace(text))
	return strings.Join(fields, " ")
}

// isSafeText rejects control and unassigned characters. Markup is escaped
// when the snapshot is built, so anything printable is allowed.
func isSafeText(text string) bool {
	for _, r := range text {
		if r == unicode.ReplacementChar || !unicode.IsPrint(r) {
			return false
		}
	}
	return true
}
