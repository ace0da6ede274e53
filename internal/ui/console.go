// Package ui renders recipes, errors and server activity on the terminal.
package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/dishcovery/dishcovery-client/internal/domain"
)

// ══════════════════════════════════════════════════════════════════════════════
// COLOR DEFINITIONS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// Badge colors
	successBadge = color.New(color.BgGreen, color.FgBlack, color.Bold)
	warningBadge = color.New(color.FgYellow, color.Bold)
	errorBadge   = color.New(color.BgRed, color.FgWhite, color.Bold)
	infoBadge    = color.New(color.FgCyan, color.Bold)
	debugBadge   = color.New(color.FgMagenta)

	// Text colors
	successText = color.New(color.FgGreen, color.Bold)
	warningText = color.New(color.FgYellow)
	errorText   = color.New(color.FgRed)
	infoText    = color.New(color.FgCyan)
	mutedText   = color.New(color.FgHiBlack)
	accentText  = color.New(color.FgMagenta, color.Bold)
	titleText   = color.New(color.FgHiGreen, color.Bold, color.Underline)

	// Method colors
	methodPOST   = color.New(color.BgHiMagenta, color.FgBlack, color.Bold)
	methodGET    = color.New(color.BgHiCyan, color.FgBlack, color.Bold)
	methodPUT    = color.New(color.BgHiYellow, color.FgBlack, color.Bold)
	methodDELETE = color.New(color.BgHiRed, color.FgBlack, color.Bold)
)

// Console writes styled output to Out.
type Console struct {
	Out io.Writer
}

// NewConsole creates a Console. A nil w writes to color.Output.
func NewConsole(w io.Writer) *Console {
	if w == nil {
		w = color.Output
	}
	return &Console{Out: w}
}

// ══════════════════════════════════════════════════════════════════════════════
// RECIPES
// ══════════════════════════════════════════════════════════════════════════════

// PrintRecipe renders a generated recipe.
func (c *Console) PrintRecipe(result *domain.GenerationResult) {
	if result == nil || result.Recipe == nil {
		return
	}
	r := result.Recipe
	w := c.Out

	fmt.Fprintln(w)
	titleText.Fprintln(w, r.Title)

	var facts []string
	for _, f := range []struct{ label, value string }{
		{"prep", r.PrepTime}, {"cook", r.CookTime}, {"serves", r.Servings}, {"difficulty", r.Difficulty},
	} {
		if f.value != "" {
			facts = append(facts, f.label+" "+f.value)
		}
	}
	if len(facts) > 0 {
		mutedText.Fprintln(w, strings.Join(facts, " · "))
	}

	if len(r.Ingredients) > 0 {
		fmt.Fprintln(w)
		infoBadge.Fprintln(w, "Ingredients")
		for _, ing := range r.Ingredients {
			fmt.Fprintf(w, "  • %s\n", ing)
		}
	}

	if len(r.Steps) > 0 {
		fmt.Fprintln(w)
		infoBadge.Fprintln(w, "Steps")
		for i, step := range r.Steps {
			accentText.Fprintf(w, "  %2d. ", i+1)
			fmt.Fprintln(w, step)
		}
	}

	if n := r.Nutrition; n != nil {
		fmt.Fprintln(w)
		infoBadge.Fprint(w, "Nutrition ")
		mutedText.Fprintf(w, "calories %s · protein %s · fat %s · carbs %s\n",
			orDash(n.Calories), orDash(n.Protein), orDash(n.Fat), orDash(n.Carbs))
	}

	if r.Tips != "" {
		fmt.Fprintln(w)
		warningBadge.Fprint(w, "Tip ")
		fmt.Fprintln(w, r.Tips)
	}
	if result.Warning != "" {
		warningText.Fprintf(w, "\n⚠️  %s\n", result.Warning)
	}
	if m := result.Meta; m != nil {
		mutedText.Fprintf(w, "\nvia %s %s\n", m.Provider, m.Model)
	}
}

// PrintRecipeList renders a saved collection, newest first.
func (c *Console) PrintRecipeList(records []domain.RecipeRecord) {
	if len(records) == 0 {
		mutedText.Fprintln(c.Out, "No saved recipes yet.")
		return
	}
	for _, rec := range records {
		star := "  "
		if rec.IsFavorite {
			star = "★ "
		}
		warningText.Fprint(c.Out, star)
		fmt.Fprintf(c.Out, "%-40s ", truncate(rec.Title, 40))
		mutedText.Fprintf(c.Out, "%s  %s\n", rec.CreatedAt.Local().Format("2006-01-02 15:04"), rec.ID)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// ERRORS, SETTINGS AND KEYS
// ══════════════════════════════════════════════════════════════════════════════

// PrintError renders a normalized error with its hint.
func (c *Console) PrintError(err *domain.APIError) {
	if err == nil {
		return
	}
	errorBadge.Fprintf(c.Out, " %s ", strings.ToUpper(err.Code))
	fmt.Fprint(c.Out, " ")
	errorText.Fprintln(c.Out, err.Message)
	if err.Hint != "" {
		mutedText.Fprintf(c.Out, "  hint: %s\n", err.Hint)
	}
	if err.RevealsSettings() {
		warningText.Fprintln(c.Out, "  Check your provider settings: dishcovery settings")
	}
}

// PrintSettings renders the settings view. The key must already be masked.
func (c *Console) PrintSettings(state domain.SettingsState) {
	s := state.Settings
	rows := []struct{ label, value string }{
		{domain.FieldProvider, string(s.Provider)},
		{domain.FieldAPIKey, s.APIKey},
		{domain.FieldAPIBaseURL, s.APIBaseURL},
		{domain.FieldModel, s.Model},
	}
	for _, row := range rows {
		mutedText.Fprintf(c.Out, "%-12s", row.label)
		fmt.Fprint(c.Out, orDash(row.value))
		if msg, ok := state.Errors[row.label]; ok {
			errorText.Fprintf(c.Out, "  ✗ %s", msg)
		}
		fmt.Fprintln(c.Out)
	}

	mutedText.Fprintf(c.Out, "%-12s", "key")
	if s.IsKeyValidated {
		successText.Fprintf(c.Out, "verified (%d models)\n", len(s.AvailableModels))
	} else {
		warningText.Fprintln(c.Out, "not verified")
	}
	if state.IsReady {
		successBadge.Fprint(c.Out, " READY ")
	} else {
		warningBadge.Fprint(c.Out, "[INCOMPLETE]")
	}
	fmt.Fprintln(c.Out)
}

// PrintKeyValidation renders the outcome of a key check.
func (c *Console) PrintKeyValidation(v *domain.KeyValidation) {
	if v == nil {
		return
	}
	if !v.Valid {
		errorBadge.Fprint(c.Out, " INVALID KEY ")
		fmt.Fprint(c.Out, " ")
		errorText.Fprintln(c.Out, orDash(v.Error))
		return
	}
	successBadge.Fprint(c.Out, " KEY OK ")
	fmt.Fprintf(c.Out, " %d models available\n", len(v.Models))
	for _, m := range v.Models {
		fmt.Fprint(c.Out, "  • ")
		accentText.Fprint(c.Out, m.ID)
		if m.Name != "" && m.Name != m.ID {
			mutedText.Fprintf(c.Out, "  %s", m.Name)
		}
		fmt.Fprintln(c.Out)
	}
}

// PrintSaved confirms a recipe was added to the collection.
func (c *Console) PrintSaved(id string) {
	successBadge.Fprint(c.Out, " SAVED ")
	fmt.Fprint(c.Out, " ")
	mutedText.Fprintln(c.Out, id)
}

// PrintProgress renders a state machine step.
func (c *Console) PrintProgress(state, phase string) {
	mutedText.Fprintf(c.Out, "%s ", time.Now().Format("15:04:05"))
	infoBadge.Fprint(c.Out, "[GENERATE]")
	if phase != "" {
		accentText.Fprintf(c.Out, " %s", phase)
	}
	infoText.Fprintf(c.Out, " %s\n", strings.ReplaceAll(state, "_", " "))
}

// ══════════════════════════════════════════════════════════════════════════════
// REQUEST LOGGING
// ══════════════════════════════════════════════════════════════════════════════

// PrintRequest logs a local API request with styled output.
// Color-codes status, method, and latency for quick visual parsing.
func (c *Console) PrintRequest(method, path string, status int, latency time.Duration) {
	mutedText.Fprintf(c.Out, "%s ", time.Now().Format("15:04:05"))

	c.printMethodBadge(method)
	fmt.Fprint(c.Out, " ")

	fmt.Fprintf(c.Out, "%-30s ", truncate(path, 30))

	c.printStatusBadge(status)
	fmt.Fprint(c.Out, " ")

	c.printLatency(latency)
	fmt.Fprintln(c.Out)
}

// printMethodBadge prints the HTTP method with appropriate color.
func (c *Console) printMethodBadge(method string) {
	switch method {
	case "POST":
		methodPOST.Fprintf(c.Out, " %s ", method)
	case "GET":
		methodGET.Fprintf(c.Out, " %s ", method)
	case "PUT":
		methodPUT.Fprintf(c.Out, " %s ", method)
	case "DELETE":
		methodDELETE.Fprintf(c.Out, " %s ", method)
	default:
		debugBadge.Fprintf(c.Out, " %s ", method)
	}
}

// printStatusBadge prints the status code with appropriate color.
func (c *Console) printStatusBadge(status int) {
	switch {
	case status >= 200 && status < 300:
		successBadge.Fprintf(c.Out, " %d ", status)
	case status >= 300 && status < 400:
		infoBadge.Fprintf(c.Out, " %d ", status)
	case status >= 400 && status < 500:
		warningBadge.Fprintf(c.Out, " %d ", status)
	default:
		errorBadge.Fprintf(c.Out, " %d ", status)
	}
}

// printLatency prints latency with color gradient.
// Vision models are slow: green under 5s, yellow under 20s, red beyond.
func (c *Console) printLatency(latency time.Duration) {
	ms := latency.Milliseconds()
	latencyStr := fmt.Sprintf("%6dms", ms)

	switch {
	case latency < 5*time.Second:
		successText.Fprint(c.Out, latencyStr)
	case latency < 20*time.Second:
		warningText.Fprint(c.Out, latencyStr)
	default:
		errorText.Fprint(c.Out, latencyStr)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// STARTUP MESSAGES
// ══════════════════════════════════════════════════════════════════════════════

// PrintStartupInfo prints the local API address and the backend it talks to.
func (c *Console) PrintStartupInfo(addr, backendURL string, ready bool) {
	fmt.Fprintln(c.Out)
	infoBadge.Fprint(c.Out, "[DISHCOVERY]")
	fmt.Fprint(c.Out, " Local API on ")
	infoText.Fprintf(c.Out, "http://%s\n", addr)

	infoBadge.Fprint(c.Out, "[DISHCOVERY]")
	fmt.Fprint(c.Out, " Recipe service: ")
	accentText.Fprint(c.Out, backendURL)
	fmt.Fprint(c.Out, " | Settings: ")
	if ready {
		successText.Fprintln(c.Out, "ready")
	} else {
		warningText.Fprintln(c.Out, "incomplete")
	}

	fmt.Fprintln(c.Out)
	c.printEndpoints()
}

// endpoints lists the routes shown at startup.
var endpoints = []struct{ method, path, desc string }{
	{"POST", "/api/generate", "Generate a recipe"},
	{"GET", "/api/state", "Current generation state"},
	{"GET", "/api/settings", "Provider settings"},
	{"POST", "/api/settings/validate-key", "Verify the API key"},
	{"GET", "/api/recipes", "Saved recipes"},
	{"GET", "/health", "Health check"},
}

// printEndpoints prints the available API endpoints.
func (c *Console) printEndpoints() {
	mutedText.Fprintln(c.Out, "  ┌──────────────────────────────────────────────────────────────────┐")
	for _, e := range endpoints {
		mutedText.Fprint(c.Out, "  │ ")
		c.printMethodBadge(e.method)
		fmt.Fprintf(c.Out, "%s %-28s ", strings.Repeat(" ", max(0, 4-len(e.method))), e.path)
		mutedText.Fprintf(c.Out, "%-26s", e.desc)
		mutedText.Fprintln(c.Out, " │")
	}
	mutedText.Fprintln(c.Out, "  └──────────────────────────────────────────────────────────────────┘")
	fmt.Fprintln(c.Out)
}

// PrintShutdown prints a styled shutdown message.
func (c *Console) PrintShutdown() {
	fmt.Fprintln(c.Out)
	warningBadge.Fprint(c.Out, "[SHUTDOWN]")
	warningText.Fprintln(c.Out, " Graceful shutdown initiated...")
}

// PrintGoodbye prints a styled goodbye message.
func (c *Console) PrintGoodbye() {
	successBadge.Fprint(c.Out, " OK ")
	fmt.Fprint(c.Out, " ")
	successText.Fprintln(c.Out, "Server stopped. Happy cooking! 🍳")
}

// ══════════════════════════════════════════════════════════════════════════════
// UTILITY FUNCTIONS
// ══════════════════════════════════════════════════════════════════════════════

// truncate shortens s to maxLen characters.
func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
