package contract

type AgentType string

const (
	AgentTypeSupervisor AgentType = "supervisor"
	AgentTypePersonal   AgentType = "personal"
	AgentTypeCar        AgentType = "car"
	AgentTypeWeb        AgentType = "web"
	AgentTypeSummarizer AgentType = "summarizer"
)

// Handler names recorded as the agent of a turn.
const (
	HandlerOrder      = "order_handler"
	HandlerSelection  = "selection_handler"
	HandlerAddress    = "address_handler"
	HandlerSupervisor = "supervisor"
)

// VehicleFilters is the inventory query shape. Zero values mean "no constraint".
type VehicleFilters struct {
	Make       string  `json:"make,omitempty"`
	Model      string  `json:"model,omitempty"`
	YearMin    int     `json:"year_min,omitempty"`
	YearMax    int     `json:"year_max,omitempty"`
	PriceMin   float64 `json:"price_min,omitempty"`
	PriceMax   float64 `json:"price_max,omitempty"`
	MileageMax int     `json:"mileage_max,omitempty"`
	Style      string  `json:"style,omitempty"`
	FuelType   string  `json:"fuel_type,omitempty"`
	Query      string  `json:"query,omitempty"`
}

type DelegateRequest struct {
	SessionID string `json:"session_id"`
	UserEmail string `json:"user_email"`
	Prompt    string `json:"prompt"`
}

// DelegateReply carries the supervisor's final text and the raw outputs of
// every tool it called, newest last.
type DelegateReply struct {
	Text        string   `json:"text"`
	ToolOutputs []string `json:"tool_outputs,omitempty"`
}

// ToolRequest is one tool call decoded from a model reply.
type ToolRequest struct {
	CallID string         `json:"call_id,omitempty"`
	Tool   string         `json:"tool"`
	Args   map[string]any `json:"args,omitempty"`
}

// ToolResult is what a tool produced. Error is set instead of returning a Go
// error when the failure should be shown to the model.
type ToolResult struct {
	Tool   string `json:"tool"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}
