// Package prompt runs the interactive wizards behind `capture init` and
// `capture setup`. Input and output are injected so the flows can be driven
// from tests.
package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Asker reads answers line by line from r and writes prompts to w.
type Asker struct {
	r *bufio.Reader
	w io.Writer
}

func New(r io.Reader, w io.Writer) *Asker {
	return &Asker{r: bufio.NewReader(r), w: w}
}

// Println writes a line to the prompt output.
func (a *Asker) Println(args ...any) {
	fmt.Fprintln(a.w, args...)
}

// Ask prints prompt and returns the trimmed answer, or defaultVal when the
// answer is blank.
func (a *Asker) Ask(prompt, defaultVal string) (string, error) {
	if defaultVal != "" {
		fmt.Fprintf(a.w, "%s [%s]: ", prompt, defaultVal)
	} else {
		fmt.Fprintf(a.w, "%s: ", prompt)
	}
	line, err := a.r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return defaultVal, nil
	}
	return line, nil
}

// AskRequired repeats the prompt until a non-blank answer is given.
func (a *Asker) AskRequired(prompt, defaultVal string) (string, error) {
	for {
		ans, err := a.Ask(prompt, defaultVal)
		if err != nil {
			return "", err
		}
		if ans != "" {
			return ans, nil
		}
		fmt.Fprintln(a.w, "  A value is required.")
	}
}

func (a *Asker) AskBool(prompt string, defaultVal bool) (bool, error) {
	def := "n"
	if defaultVal {
		def = "y"
	}
	ans, err := a.Ask(prompt+" (y/n)", def)
	if err != nil {
		return false, err
	}
	ans = strings.ToLower(ans)
	return ans == "y" || ans == "yes", nil
}

// Choose asks for one of options, matched case-insensitively. Any other
// answer falls back to defaultVal.
func (a *Asker) Choose(prompt string, options []string, defaultVal string) (string, error) {
	ans, err := a.Ask(fmt.Sprintf("%s (%s)", prompt, strings.Join(options, "/")), defaultVal)
	if err != nil {
		return "", err
	}
	for _, o := range options {
		if strings.EqualFold(ans, o) {
			return o, nil
		}
	}
	return defaultVal, nil
}
