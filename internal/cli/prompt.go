package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// stdin is shared by every prompt so buffered input survives between
// questions when answers are piped in.
var stdin = bufio.NewReader(os.Stdin)

// Confirm asks a yes/no question on stdin. Anything but "y" or "yes",
// including a read failure, is a no.
func Confirm(question string) bool {
	return ConfirmFrom(stdin, os.Stdout, question)
}

func lineReader(in io.Reader) *bufio.Reader {
	if br, ok := in.(*bufio.Reader); ok {
		return br
	}
	return bufio.NewReader(in)
}

// ConfirmFrom is Confirm with explicit streams.
func ConfirmFrom(in io.Reader, out io.Writer, question string) bool {
	fmt.Fprintf(out, "%s (y/N): ", question)

	reader := lineReader(in)
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		log.Warn().Err(err).Msg("Failed to read input, treating as no")
		return false
	}

	switch strings.ToLower(strings.TrimSpace(input)) {
	case "y", "yes":
		return true
	}
	return false
}

// PromptForValue prompts for a value, returning def when the user enters
// nothing.
func PromptForValue(label, def string) string {
	return PromptFrom(stdin, os.Stdout, label, def)
}

// PromptFrom is PromptForValue with explicit streams.
func PromptFrom(in io.Reader, out io.Writer, label, def string) string {
	if def != "" {
		fmt.Fprintf(out, "%s [%s]: ", label, def)
	} else {
		fmt.Fprintf(out, "%s: ", label)
	}

	reader := lineReader(in)
	input, err := reader.ReadString('\n')
	if err != nil && input == "" {
		log.Warn().Err(err).Msg("Failed to read input, using default")
		return def
	}

	input = strings.TrimSpace(input)
	if input == "" {
		return def
	}
	return input
}
