package tool

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/spf13/cast"

	contractx "github.com/Yuvaramesh/sales-agent/agent/contract"
)

// Accepts digits, whitespace, decimal points, operators, and parentheses.
var mathExpressionPattern = regexp.MustCompile(`^[\d\s\+\-\*/%\^\(\)\.]+$`)

type MathEvaluateOutput struct {
	Expression string  `json:"expression"`
	Result     float64 `json:"result"`
}

func executeMathTool(tool string, args map[string]any) (contractx.ToolResult, error) {
	expression, err := stringArg(args, "expression")
	if err != nil {
		return contractx.ToolResult{Tool: tool, Error: err.Error()}, nil
	}

	result, err := evaluateMathExpression(expression)
	if err != nil {
		return contractx.ToolResult{Tool: tool, Error: err.Error()}, nil
	}

	return contractx.ToolResult{
		Tool: tool,
		Result: MathEvaluateOutput{
			Expression: expression,
			Result:     result,
		},
	}, nil
}

func validateMathExpression(expression string) error {
	if expression == "" {
		return errors.New("expression is empty")
	}
	if !mathExpressionPattern.MatchString(expression) {
		return errors.New("expression contains invalid characters")
	}
	return nil
}

// evaluateMathExpression runs an arithmetic-only expression. The character
// whitelist keeps identifiers and function calls out of the expr program.
func evaluateMathExpression(expression string) (float64, error) {
	expression = strings.TrimSpace(expression)
	if err := validateMathExpression(expression); err != nil {
		return 0, err
	}

	program, err := expr.Compile(expression, expr.Env(map[string]any{}))
	if err != nil {
		return 0, fmt.Errorf("invalid expression: %w", err)
	}
	out, err := expr.Run(program, map[string]any{})
	if err != nil {
		return 0, fmt.Errorf("evaluate expression: %w", err)
	}
	value, err := cast.ToFloat64E(out)
	if err != nil {
		return 0, fmt.Errorf("expression result %v is not a number", out)
	}
	if math.IsInf(value, 0) || math.IsNaN(value) {
		return 0, errors.New("division by zero")
	}
	return value, nil
}
