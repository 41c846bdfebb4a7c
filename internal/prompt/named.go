package prompt

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
	"sync"
)

// Template names.
const (
	FlashcardSystem       = "flashcard/system"
	FlashcardRewrite      = "flashcard/rewrite"
	FlashcardEmptyContext = "flashcard/empty-context"
	FlashcardCondense     = "flashcard/condense"
	FlashcardUser         = "flashcard/user"
	QuizSystem            = "quiz/system"
	QuizUser              = "quiz/user"
	GradeSystem           = "grade/system"
	GradeUser             = "grade/user"
	ChatSystem            = "chat/system"
)

//go:embed templates
var templateFS embed.FS

var (
	loadOnce sync.Once
	named    map[string]*Template
	loadErr  error
)

func load() {
	named = make(map[string]*Template)
	loadErr = fs.WalkDir(templateFS, "templates", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || path.Ext(p) != ".txt" {
			return err
		}
		data, err := templateFS.ReadFile(p)
		if err != nil {
			return err
		}
		name := strings.TrimSuffix(strings.TrimPrefix(p, "templates/"), ".txt")
		named[name] = New(name, strings.TrimRight(string(data), "\n"))
		return nil
	})
}

// Lookup returns the embedded template with the given name.
func Lookup(name string) (*Template, error) {
	loadOnce.Do(load)
	if loadErr != nil {
		return nil, fmt.Errorf("load templates: %w", loadErr)
	}
	t, ok := named[name]
	if !ok {
		return nil, fmt.Errorf("unknown template %q", name)
	}
	return t, nil
}

// Names lists the embedded template names, sorted.
func Names() []string {
	loadOnce.Do(load)
	out := make([]string, 0, len(named))
	for n := range named {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Render looks up the named template and renders it.
func Render(name string, vars Vars) (string, error) {
	t, err := Lookup(name)
	if err != nil {
		return "", err
	}
	return t.Render(vars)
}
