package command

import (
	"context"
	"os/exec"
	"sort"
	"strings"
	"time"
)

// Language describes a script language runnable by ExecuteScriptFromFile.
type Language struct {
	Name        string `json:"name"`
	Interpreter string `json:"interpreter"`
	Extension   string `json:"extension"`
}

// probeTimeout bounds each interpreter version probe.
const probeTimeout = 5 * time.Second

var languages = map[string]Language{
	"python":     {Name: "python", Interpreter: "python3", Extension: ".py"},
	"javascript": {Name: "javascript", Interpreter: "node", Extension: ".js"},
	"typescript": {Name: "typescript", Interpreter: "ts-node", Extension: ".ts"},
	"bash":       {Name: "bash", Interpreter: "bash", Extension: ".sh"},
	"sh":         {Name: "sh", Interpreter: "sh", Extension: ".sh"},
	"zsh":        {Name: "zsh", Interpreter: "zsh", Extension: ".zsh"},
	"fish":       {Name: "fish", Interpreter: "fish", Extension: ".fish"},
	"ruby":       {Name: "ruby", Interpreter: "ruby", Extension: ".rb"},
	"php":        {Name: "php", Interpreter: "php", Extension: ".php"},
	"perl":       {Name: "perl", Interpreter: "perl", Extension: ".pl"},
	"r":          {Name: "r", Interpreter: "Rscript", Extension: ".R"},
	"lua":        {Name: "lua", Interpreter: "lua", Extension: ".lua"},
	"powershell": {Name: "powershell", Interpreter: "pwsh", Extension: ".ps1"},
}

// LookupLanguage finds a language by case-insensitive name.
func LookupLanguage(name string) (Language, bool) {
	lang, ok := languages[strings.ToLower(strings.TrimSpace(name))]
	return lang, ok
}

// AvailableLanguages returns the supported language names, sorted.
func AvailableLanguages() []string {
	names := make([]string, 0, len(languages))
	for name := range languages {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Languages returns every supported language, sorted by name.
func Languages() []Language {
	out := make([]Language, 0, len(languages))
	for _, name := range AvailableLanguages() {
		out = append(out, languages[name])
	}
	return out
}

// IsLanguageInstalled probes the language's interpreter with --version and
// then -v. Unknown languages report false.
func IsLanguageInstalled(ctx context.Context, name string) bool {
	lang, ok := LookupLanguage(name)
	if !ok {
		return false
	}
	if _, err := exec.LookPath(lang.Interpreter); err != nil {
		return false
	}
	for _, flag := range []string{"--version", "-v"} {
		probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
		err := exec.CommandContext(probeCtx, lang.Interpreter, flag).Run()
		cancel()
		if err == nil {
			return true
		}
	}
	return false
}
