package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/supervisor.txt
	supervisorRaw string

	//go:embed template/personal.txt
	personalRaw string

	//go:embed template/car.txt
	carRaw string

	//go:embed template/web.txt
	webRaw string

	//go:embed template/summarize_history.txt
	summarizeHistoryRaw string

	//go:embed template/summarize_session.txt
	summarizeSessionRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Supervisor string
	Personal   string
	Car        string
	Web        string

	SummarizeHistory string
	SummarizeSession string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Supervisor:       strings.TrimSpace(supervisorRaw),
		Personal:         strings.TrimSpace(personalRaw),
		Car:              strings.TrimSpace(carRaw),
		Web:              strings.TrimSpace(webRaw),
		SummarizeHistory: strings.TrimSpace(summarizeHistoryRaw),
		SummarizeSession: strings.TrimSpace(summarizeSessionRaw),
	}
}

// Render substitutes {{key}} placeholders.
func Render(tmpl string, vars map[string]string) string {
	if len(vars) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{{"+k+"}}", v)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}
