package tool

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	contractx "github.com/Yuvaramesh/sales-agent/agent/contract"
	"github.com/Yuvaramesh/sales-agent/agent/handlers"
	"github.com/Yuvaramesh/sales-agent/agent/inventory"
	"github.com/Yuvaramesh/sales-agent/agent/persistence"
	statex "github.com/Yuvaramesh/sales-agent/agent/state"
	"github.com/Yuvaramesh/sales-agent/agent/websearch"
)

type fakeSearcher struct {
	results []statex.WebResult
	err     error
	queries []string
}

func (f *fakeSearcher) Search(_ context.Context, query string, _ int) ([]statex.WebResult, error) {
	f.queries = append(f.queries, query)
	return f.results, f.err
}

func testCatalog() *Catalog {
	return NewCatalog(WithVehicleFinder(inventory.NewMemoryFinder(
		inventory.Car{Make: "Toyota", Model: "Corolla", Year: 2021, Price: 25000, Mileage: 15000, Style: "Sedan", FuelType: "Petrol"},
		inventory.Car{Make: "Honda", Model: "Civic", Year: 2022, Price: 22000, Mileage: 30000, Style: "Sedan", FuelType: "Petrol"},
	)))
}

func TestBuildForAgentCar(t *testing.T) {
	t.Parallel()

	infos, executor := testCatalog().BuildForAgent(contractx.AgentTypeCar)
	if len(infos) != 2 {
		t.Fatalf("expected 2 tool infos, got %d", len(infos))
	}
	if infos[0].Name != ToolFindCars {
		t.Fatalf("unexpected first tool: %s", infos[0].Name)
	}
	if infos[1].Name != ToolMathEvaluate {
		t.Fatalf("unexpected second tool: %s", infos[1].Name)
	}
	if executor == nil {
		t.Fatal("executor must not be nil")
	}
}

func TestInfosForSupervisorAreWrappers(t *testing.T) {
	t.Parallel()

	infos := InfosForAgent(contractx.AgentTypeSupervisor)
	want := []string{ToolPersonalWrapper, ToolCarWrapper, ToolWebWrapper}
	if len(infos) != len(want) {
		t.Fatalf("expected %d tool infos, got %d", len(want), len(infos))
	}
	for i, name := range want {
		if infos[i].Name != name {
			t.Fatalf("tool %d: expected %s, got %s", i, name, infos[i].Name)
		}
	}
}

func TestDefaultExecutorUnavailableMessage(t *testing.T) {
	t.Parallel()

	executor := DefaultExecutor(contractx.AgentTypeWeb)
	out, err := executor(context.Background(), ToolFindCars, map[string]any{"query": "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Tool != ToolFindCars {
		t.Fatalf("unexpected tool: %s", out.Tool)
	}
	if out.Error != "tool=find_cars is unavailable for agent=web" {
		t.Fatalf("unexpected error message: %q", out.Error)
	}
}

func TestNewExecutorRejectsToolOutsideAgentSet(t *testing.T) {
	t.Parallel()

	executor := testCatalog().NewExecutor(contractx.AgentTypePersonal)
	out, err := executor(context.Background(), ToolFindCars, map[string]any{"filters_json": "{}"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Error == "" {
		t.Fatal("expected unavailable error")
	}
}

func TestNewExecutorMathEvaluate(t *testing.T) {
	t.Parallel()

	executor := testCatalog().NewExecutor(contractx.AgentTypeCar)
	out, err := executor(context.Background(), ToolMathEvaluate, map[string]any{
		"expression": "2 + 3 * (4 - 1)",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Error != "" {
		t.Fatalf("unexpected tool error: %s", out.Error)
	}
	result, ok := out.Result.(MathEvaluateOutput)
	if !ok {
		t.Fatalf("unexpected result type: %T", out.Result)
	}
	if result.Result != 11 {
		t.Fatalf("unexpected result: %v", result.Result)
	}
}

func TestNewExecutorMathEvaluateInvalidExpression(t *testing.T) {
	t.Parallel()

	executor := testCatalog().NewExecutor(contractx.AgentTypeCar)
	for _, expression := range []string{"2 + abc", "", "1 / 0"} {
		out, err := executor(context.Background(), ToolMathEvaluate, map[string]any{
			"expression": expression,
		})
		if err != nil {
			t.Fatalf("%q: unexpected error: %v", expression, err)
		}
		if out.Error == "" {
			t.Fatalf("%q: expected validation error", expression)
		}
	}
}

func TestNewExecutorFindCars(t *testing.T) {
	t.Parallel()

	executor := testCatalog().NewExecutor(contractx.AgentTypeCar)
	out, err := executor(context.Background(), ToolFindCars, map[string]any{
		"filters_json": `{"make":"toyota","price_max":"30000"}`,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text, ok := out.Result.(string)
	if !ok {
		t.Fatalf("unexpected result type: %T", out.Result)
	}
	if !strings.HasPrefix(text, "I found 1 match.") {
		t.Fatalf("unexpected summary: %q", text)
	}
	if !strings.Contains(text, handlers.CarMarker) {
		t.Fatalf("expected car marker in %q", text)
	}

	s := statex.NewSession("s1", "a@b.com", time.Now())
	update, err := handlers.ApplyMarkers(s, text)
	if err != nil {
		t.Fatalf("unexpected marker error: %v", err)
	}
	if !update.Cars || len(s.LastResults) != 1 || s.LastResults[0].Str("model") != "Corolla" {
		t.Fatalf("unexpected marker payload: %+v %v", update, s.LastResults)
	}
}

func TestNewExecutorFindCarsNoMatches(t *testing.T) {
	t.Parallel()

	executor := testCatalog().NewExecutor(contractx.AgentTypeCar)
	out, err := executor(context.Background(), ToolFindCars, map[string]any{
		"filters_json": `{"make":"Ferrari"}`,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Result != noCarsMessage {
		t.Fatalf("unexpected result: %v", out.Result)
	}
}

func TestNewExecutorWebSearch(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{results: []statex.WebResult{
		{Title: "Corolla review", URL: "https://example.com/corolla", Snippet: "Reliable and frugal."},
	}}
	executor := NewCatalog(WithWebSearcher(searcher)).NewExecutor(contractx.AgentTypeWeb)
	out, err := executor(context.Background(), ToolWebSearch, map[string]any{"query": "corolla reliability"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	text := Content(out)
	if !strings.HasPrefix(text, "External search results:") {
		t.Fatalf("unexpected text: %q", text)
	}
	if !strings.Contains(text, handlers.WebMarker) || !strings.Contains(text, "https://example.com/corolla") {
		t.Fatalf("expected marker payload in %q", text)
	}
	if len(searcher.queries) != 1 || searcher.queries[0] != "corolla reliability" {
		t.Fatalf("unexpected queries: %v", searcher.queries)
	}
}

func TestNewExecutorWebSearchNotConfigured(t *testing.T) {
	t.Parallel()

	executor := NewCatalog().NewExecutor(contractx.AgentTypeWeb)
	out, err := executor(context.Background(), ToolWebSearch, map[string]any{"query": "anything"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(Content(out), websearch.ErrNotConfigured.Error()) {
		t.Fatalf("expected not configured message, got %q", Content(out))
	}
}

func TestNewExecutorWebSearchFailureIsRendered(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{err: errors.New("timeout")}
	executor := NewCatalog(WithWebSearcher(searcher)).NewExecutor(contractx.AgentTypeWeb)
	out, err := executor(context.Background(), ToolWebSearch, map[string]any{"query": "anything"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(Content(out), "web search request failed: timeout") {
		t.Fatalf("unexpected text: %q", Content(out))
	}
}

func TestNewExecutorProfile(t *testing.T) {
	t.Parallel()

	gw := persistence.NewMemoryGateway()
	ctx := context.Background()
	if err := gw.UpsertUserSession(ctx, "a@b.com", persistence.CurrentSession{
		SessionID: "s1",
		Collected: map[string]string{statex.FieldName: "Ann"},
	}); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if err := gw.UpdateUserSummary(ctx, "a@b.com", "s1", "Looked at SUVs."); err != nil {
		t.Fatalf("seed summary: %v", err)
	}

	executor := NewCatalog(WithUserLookup(gw)).NewExecutor(contractx.AgentTypePersonal)

	out, err := executor(ctx, ToolGetUserProfile, map[string]any{"email": "a@b.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Result != "Name: Ann\nEmail: a@b.com\nRecent summary: Looked at SUVs." {
		t.Fatalf("unexpected profile: %q", out.Result)
	}

	out, err = executor(ctx, ToolGetUserProfile, map[string]any{"email": "x@y.com"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Result != "No profile found for x@y.com." {
		t.Fatalf("unexpected result: %q", out.Result)
	}

	out, err = executor(ctx, ToolGetUserProfile, map[string]any{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.Result != "No email provided." {
		t.Fatalf("unexpected result: %q", out.Result)
	}
}

func TestParseFilters(t *testing.T) {
	t.Parallel()

	f := ParseFilters(`{"make":" Toyota ","year_min":2020,"price_max":"30000","fuel_type":"Hybrid"}`)
	if f.Make != "Toyota" || f.YearMin != 2020 || f.PriceMax != 30000 || f.FuelType != "Hybrid" {
		t.Fatalf("unexpected filters: %+v", f)
	}

	f = ParseFilters("cheap hatchback")
	if f.Query != "cheap hatchback" || f.Make != "" {
		t.Fatalf("expected free-text query, got %+v", f)
	}

	if f := ParseFilters("  "); f != (contractx.VehicleFilters{}) {
		t.Fatalf("expected empty filters, got %+v", f)
	}
}

func TestContent(t *testing.T) {
	t.Parallel()

	cases := []struct {
		res  contractx.ToolResult
		want string
	}{
		{contractx.ToolResult{Error: "boom"}, "error: boom"},
		{contractx.ToolResult{Result: "plain"}, "plain"},
		{contractx.ToolResult{}, ""},
		{contractx.ToolResult{Result: MathEvaluateOutput{Expression: "1+1", Result: 2}}, `{"expression":"1+1","result":2}`},
	}
	for _, tc := range cases {
		if got := Content(tc.res); got != tc.want {
			t.Fatalf("Content(%+v) = %q, want %q", tc.res, got, tc.want)
		}
	}
}
